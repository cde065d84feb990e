// Command arithd serves the arithmetic capability over HTTP.
package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/zephyrtronium/calcpipe/arith"
	"github.com/zephyrtronium/calcpipe/internal/config"
	"github.com/zephyrtronium/calcpipe/internal/logging"
	"github.com/zephyrtronium/calcpipe/internal/middleware"
)

func main() {
	conf, err := config.Load("")
	if err != nil {
		slog.Error("Error loading config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.Init(conf.Logging)
	if !conf.Gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(), middleware.CORS(conf.Gin.AllowOrigins))
	router.GET("/", middleware.HealthCheck)

	h := &arith.Handler{
		Delay:   config.MustDuration(conf.Arithmetic.Delay),
		APIKeys: conf.Gin.APIKeys,
	}
	h.AddRoutes(&router.RouterGroup)

	slog.Info("Starting arithmetic service on port " + conf.Gin.Port)
	if err := router.Run(":" + conf.Gin.Port); err != nil {
		slog.Error("Exited arithmetic service", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
