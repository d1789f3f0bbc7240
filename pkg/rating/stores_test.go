package rating

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormProductStoreTestSuite тестовый suite для записи рейтинга в каталог
type GormProductStoreTestSuite struct {
	suite.Suite
	db    *gorm.DB
	mock  sqlmock.Sqlmock
	sqlDB *sql.DB
	store *GormProductStore
}

func TestGormProductStoreSuite(t *testing.T) {
	suite.Run(t, new(GormProductStoreTestSuite))
}

func (s *GormProductStoreTestSuite) SetupTest() {
	var err error
	s.sqlDB, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)

	dialector := postgres.New(postgres.Config{
		Conn:       s.sqlDB,
		DriverName: "postgres",
	})

	s.db, err = gorm.Open(dialector, &gorm.Config{})
	require.NoError(s.T(), err)

	s.store = NewGormProductStore(s.db, "test")
}

func (s *GormProductStoreTestSuite) TearDownTest() {
	s.sqlDB.Close()
}

func (s *GormProductStoreTestSuite) TestUpdateRating_Success() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "average_rating"=$1,"review_count"=$2 WHERE id = $3`)).
		WithArgs(4.5, 2, testProductID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := s.store.UpdateRating(context.Background(), testProductID, 4.5, 2)

	s.NoError(err)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *GormProductStoreTestSuite) TestUpdateRating_ZeroValuesWritten() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "average_rating"=$1,"review_count"=$2 WHERE id = $3`)).
		WithArgs(0.0, 0, testProductID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := s.store.UpdateRating(context.Background(), testProductID, 0, 0)

	s.NoError(err)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *GormProductStoreTestSuite) TestUpdateRating_ProductMissing() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	err := s.store.UpdateRating(context.Background(), testProductID, 3, 1)

	s.ErrorIs(err, ErrProductNotFound)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *GormProductStoreTestSuite) TestUpdateRating_DBError() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnError(sql.ErrConnDone)
	s.mock.ExpectRollback()

	err := s.store.UpdateRating(context.Background(), testProductID, 3, 1)

	s.Error(err)
	s.NotErrorIs(err, ErrProductNotFound)
	s.Contains(err.Error(), "failed to update product rating")
	s.NoError(s.mock.ExpectationsWereMet())
}
