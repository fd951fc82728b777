package daemon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"reelflow/internal/logging"
	"reelflow/internal/metrics"
)

// debugServer exposes operational endpoints on a loopback listener:
// Prometheus metrics, a liveness probe, and the daemon status.
type debugServer struct {
	listener net.Listener
	server   *http.Server
	logger   *slog.Logger
}

func newDebugServer(bind string, d *Daemon, logger *slog.Logger) (*debugServer, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.Status())
	})

	return &debugServer{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "debug-http"),
	}, nil
}

func (s *debugServer) Serve() {
	s.logger.Info("debug endpoints listening", logging.String("addr", s.listener.Addr().String()))
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("debug server exited", logging.Error(err))
		}
	}()
}

func (s *debugServer) Close() {
	_ = s.server.Close()
}
