// Command evald serves expression evaluation over HTTP using a remote
// arithmetic service.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zephyrtronium/calcpipe/arith"
	"github.com/zephyrtronium/calcpipe/history"
	"github.com/zephyrtronium/calcpipe/internal/config"
	"github.com/zephyrtronium/calcpipe/internal/logging"
	"github.com/zephyrtronium/calcpipe/internal/middleware"
	"github.com/zephyrtronium/calcpipe/service"
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

	h := &service.Handler{
		Arith: &arith.Client{
			URL:    conf.Arithmetic.URL,
			APIKey: conf.Arithmetic.APIKey,
			HTTP:   &http.Client{Timeout: config.MustDuration(conf.Arithmetic.Timeout)},
		},
		Timeout: config.MustDuration(conf.Evaluator.Timeout),
		Retry: service.Retry{
			Attempts:   conf.Evaluator.Retry.Attempts,
			Backoff:    config.MustDuration(conf.Evaluator.Retry.Backoff),
			MaxBackoff: config.MustDuration(conf.Evaluator.Retry.MaxBackoff),
		},
		APIKeys: conf.Gin.APIKeys,
	}
	if conf.History.DSN != "" {
		store, err := openHistory(conf.History.DSN)
		if err != nil {
			slog.Error("Error opening history", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()
		h.History = store
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(), middleware.CORS(conf.Gin.AllowOrigins))
	h.AddRoutes(&router.RouterGroup)

	slog.Info("Starting evaluation service on port "+conf.Gin.Port, slog.String("arithmetic", conf.Arithmetic.URL))
	if err := router.Run(":" + conf.Gin.Port); err != nil {
		slog.Error("Exited evaluation service", slog.String("error", err.Error()))
		return
	}
}

func openHistory(dsn string) (*history.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := history.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
