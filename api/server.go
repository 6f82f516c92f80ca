package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eisenwinter/mdqd/config"
	"go.uber.org/zap"
)

type Server struct {
	server *http.Server
	log    *zap.Logger
}

func NewServer(cfg *config.Configuration, logger *zap.Logger, deps Dependencies) (*Server, error) {
	api, err := compose(logger.Named("api"), cfg, deps)
	if err != nil {
		return nil, err
	}
	bind := net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port))
	srv := http.Server{
		Addr:              bind,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{
		server: &srv,
		log:    logger,
	}, nil
}

// Handler returns the composed router
func (srv *Server) Handler() http.Handler {
	return srv.server.Handler
}

// Start runs ListenAndServe on the http.Server with graceful shutdown.
// It blocks until ctx is done or an interrupt is received.
func (srv *Server) Start(ctx context.Context) error {
	srv.log.Info("starting server")
	failed := make(chan error, 1)
	go func() {
		if err := srv.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()
	srv.log.Info("listening", zap.String("addr", srv.server.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case sig := <-quit:
		srv.log.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		srv.log.Info("shutting down", zap.Error(ctx.Err()))
	case err := <-failed:
		srv.log.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.server.Shutdown(shutdownCtx); err != nil {
		srv.log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	srv.log.Info("graceful shutdown completed")
	return nil
}
