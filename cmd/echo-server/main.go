package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/eazews/internal/config"
	"github.com/park285/eazews/internal/echoserver"
	"github.com/park285/eazews/internal/obslog"
	"github.com/park285/eazews/internal/statusapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	echo := echoserver.New(
		echoserver.WithWelcome(cfg.Welcome),
		echoserver.WithLogger(logger.Named("echo")),
		echoserver.WithReadLimit(cfg.ReadLimit),
	)

	mux := http.NewServeMux()
	mux.Handle("/", echo)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("echo_listen", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("echo_listen_failed", zap.Error(err))
		}
	}()

	var status *statusapi.Server
	if cfg.StatusAddr != "" {
		status = statusapi.NewServer(echo, logger.Named("status"))
		go func() {
			if err := status.ListenAndServe(cfg.StatusAddr); err != nil {
				logger.Error("status_listen_failed", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown")
	echo.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	if status != nil {
		_ = status.Shutdown()
	}
}
