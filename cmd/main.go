package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/studyforge/studyforge-backend/internal/app"
	"github.com/studyforge/studyforge-backend/internal/observability"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	shutdown := observability.InitOTel(context.Background(), application.Log, observability.OtelConfig{
		ServiceName: "studyforge-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				application.Log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	application.Log.Info("Starting server", "port", application.Cfg.Port)
	if err := application.Run(); err != nil {
		application.Log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
