// Package api assembles the Gin engine for the notification engine's HTTP
// surface.
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/detectors"
	"github.com/batterybuildsog1/Project-manager/internal/handlers"
	"github.com/batterybuildsog1/Project-manager/internal/middleware"
	"github.com/batterybuildsog1/Project-manager/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, router *services.RouterService, digest *services.DigestService, mail *detectors.MailDetector) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if router == nil {
		return nil, fmt.Errorf("router service must be provided")
	}
	if digest == nil {
		return nil, fmt.Errorf("digest service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	api := r.Group("/api")

	notificationHandler := handlers.NewNotificationHandler(router, digest)
	notifications := api.Group("/notifications")
	{
		notifications.POST("", notificationHandler.Intake)
		notifications.GET("", notificationHandler.List)
		notifications.POST("/run/batch", notificationHandler.RunBatch)
		notifications.POST("/run/weekly", notificationHandler.RunWeekly)
	}

	if mail != nil {
		mailHandler := handlers.NewMailHandler(mail)
		api.POST("/mail/inbound", mailHandler.Inbound)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
