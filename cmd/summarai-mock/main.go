// Command summarai-mock serves an in-memory stand-in for the SummarAI
// backend so the client can be exercised without the real service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"summarai/internal/mockserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "Listen address")
	secret := flag.String("jwt-secret", "", "HS256 signing secret (default: $SUMMARAI_MOCK_SECRET or a dev value)")
	verbose := flag.Bool("verbose", false, "Log every request")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("SUMMARAI_MOCK_SECRET")
	}
	if *secret == "" {
		*secret = "summarai-dev-secret"
	}

	logCfg := zap.NewDevelopmentConfig()
	if !*verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mockserver.New(*secret, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("mock backend listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("mock backend stopped")
}
