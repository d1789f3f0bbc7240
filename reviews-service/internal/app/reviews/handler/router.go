package handler

import (
	"net/http"

	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/reviews-service/internal/app/reviews/entity"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "reviews-service"

func SetupRoutes(reviewHandler *ReviewHandler, authMiddleware *AuthMiddleware, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware(serviceName))

	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  allowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowHeaders:  []string{"Authorization", "Content-Type", logger.RequestIDHeader},
			ExposeHeaders: []string{logger.RequestIDHeader},
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reviews := router.Group("/reviews")
	{
		// Публичная страница товара
		reviews.GET("", reviewHandler.GetProductReviews)

		reviews.POST("", authMiddleware.Authenticate(), authMiddleware.RequireRole(entity.RoleCustomer), reviewHandler.CreateReview)

		admin := reviews.Group("")
		admin.Use(authMiddleware.Authenticate(), authMiddleware.RequireRole(entity.RoleAdmin))
		{
			admin.GET("/admin", reviewHandler.GetModerationQueue)
			admin.PATCH("", reviewHandler.ModerateReview)
			admin.DELETE("/:id", reviewHandler.DeleteReview)
		}
	}

	return router
}
