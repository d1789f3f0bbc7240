package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type fakeMongo struct {
	err error
}

func (f fakeMongo) Ping(context.Context, *readpref.ReadPref) error {
	return f.err
}

type fakeConsumer struct {
	lag int64
}

func (f fakeConsumer) GetStats() kafka.ReaderStats {
	return kafka.ReaderStats{Lag: f.lag}
}

type healthFixture struct {
	handler *HealthCheckHandler
	sqlMock sqlmock.Sqlmock
	redis   *miniredis.Miniredis
	mux     *http.ServeMux
}

func newHealthFixture(t *testing.T, mongoErr error, lag int64) *healthFixture {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	catalogDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	h := NewHealthCheckHandler(catalogDB, redisClient, fakeMongo{err: mongoErr}, fakeConsumer{lag: lag})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &healthFixture{handler: h, sqlMock: sqlMock, redis: mr, mux: mux}
}

func (f *healthFixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	f := newHealthFixture(t, nil, 0)
	f.sqlMock.ExpectPing()

	w := f.get("/health")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeHealth(t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["catalog_database"])
	assert.Equal(t, "healthy", resp.Checks["redis"])
	assert.Equal(t, "healthy", resp.Checks["mongodb"])
	assert.Equal(t, "healthy", resp.Checks["kafka_consumer"])
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestHealthCheck_MongoDown(t *testing.T) {
	f := newHealthFixture(t, errors.New("server selection timeout"), 0)
	f.sqlMock.ExpectPing()

	w := f.get("/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeHealth(t, w)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy: server selection timeout", resp.Checks["mongodb"])
}

func TestHealthCheck_RedisDown(t *testing.T) {
	f := newHealthFixture(t, nil, 0)
	f.sqlMock.ExpectPing()
	f.redis.Close()

	w := f.get("/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeHealth(t, w)
	assert.Contains(t, resp.Checks["redis"], "unhealthy")
}

func TestHealthCheck_CatalogDown(t *testing.T) {
	f := newHealthFixture(t, nil, 0)
	f.sqlMock.ExpectPing().WillReturnError(errors.New("connection refused"))

	w := f.get("/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeHealth(t, w)
	assert.Equal(t, "unhealthy: connection refused", resp.Checks["catalog_database"])
}

func TestHealthCheck_ConsumerLagIsWarningOnly(t *testing.T) {
	f := newHealthFixture(t, nil, 5000)
	f.sqlMock.ExpectPing()

	w := f.get("/health")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeHealth(t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "warning: lag 5000", resp.Checks["kafka_consumer"])
}

func TestReadiness(t *testing.T) {
	f := newHealthFixture(t, nil, 0)
	f.sqlMock.ExpectPing()

	w := f.get("/health/readiness")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())
}

func TestReadiness_MongoNotReady(t *testing.T) {
	f := newHealthFixture(t, errors.New("no primary"), 0)
	f.sqlMock.ExpectPing()

	w := f.get("/health/readiness")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "mongodb not ready")
}

func TestLiveness(t *testing.T) {
	f := newHealthFixture(t, errors.New("ignored"), 0)

	w := f.get("/health/liveness")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", w.Body.String())
}
