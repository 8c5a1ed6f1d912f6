package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

// Server wraps http.Server with signal-driven graceful shutdown.
type Server struct {
	*http.Server
	Logger *slog.Logger
	// CleanUpFuncs are called after the server has successfully shut down.
	CleanUpFuncs []func(ctx context.Context)
	// ShutdownTimeout bounds the graceful shutdown. The default is 20s.
	ShutdownTimeout time.Duration
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully and runs the clean up functions.
func (s *Server) Start(ctx context.Context) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 20 * time.Second
	}

	s.Server.BaseContext = func(_ net.Listener) context.Context {
		return ctx
	}

	done := make(chan struct{})

	go func() {
		<-ctx.Done()

		logger.Info("server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				logger.Error("graceful shutdown timed out, forcing exit")
				os.Exit(1)
			}
		}()

		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("err", err))
			os.Exit(1)
		}

		for _, cf := range s.CleanUpFuncs {
			cf(shutdownCtx)
		}

		close(done)
	}()

	logger.Info("server started", slog.String("addr", s.Server.Addr))

	err := s.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("server exit", slog.Any("err", err))
		os.Exit(1)
	}

	<-done
}
