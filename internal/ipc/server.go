package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"reelflow/internal/api"
	"reelflow/internal/daemon"
	"reelflow/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Reelflow", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StorePath = status.StorePath
	resp.LockPath = status.LockPath
	resp.SocketPath = status.SocketPath
	resp.DebugBind = status.DebugBind
	return nil
}

func (s *service) StartRun(req StartRunRequest, resp *StartRunResponse) error {
	runID, err := s.daemon.Service().StartRun(s.ctx, req.Spec)
	if err != nil {
		return err
	}
	resp.RunID = runID
	s.log().Info("run submitted via IPC",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldEventType, "run_start"))
	return nil
}

func (s *service) RunStatus(req RunStatusRequest, resp *RunStatusResponse) error {
	status, err := s.daemon.Service().RunStatus(s.ctx, req.RunID)
	if err != nil {
		return err
	}
	resp.Run = status
	return nil
}

func (s *service) Confirm(req ConfirmRequest, resp *ConfirmResponse) error {
	s.log().Debug("confirm requested", logging.String(logging.FieldRunID, req.RunID))
	err := s.daemon.Service().Confirm(s.ctx, api.ConfirmRequest{RunID: req.RunID, Edits: req.Edits})
	if err != nil {
		resp.Confirmed = false
		resp.Message = err.Error()
		return err
	}
	resp.Confirmed = true
	s.log().Info("review confirmed via IPC",
		logging.String(logging.FieldRunID, req.RunID),
		logging.String(logging.FieldEventType, "run_confirm"))
	return nil
}

func (s *service) Regenerate(req RegenerateRequest, resp *RegenerateResponse) error {
	s.log().Debug("regenerate requested", logging.String(logging.FieldRunID, req.RunID))
	if err := s.daemon.Service().Regenerate(s.ctx, req.RunID); err != nil {
		resp.Accepted = false
		resp.Message = err.Error()
		return err
	}
	resp.Accepted = true
	s.log().Info("regeneration accepted via IPC",
		logging.String(logging.FieldRunID, req.RunID),
		logging.String(logging.FieldEventType, "run_regenerate"))
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if err := s.daemon.Service().Cancel(s.ctx, req.RunID); err != nil {
		return err
	}
	resp.Canceled = true
	s.log().Info("run canceled via IPC",
		logging.String(logging.FieldRunID, req.RunID),
		logging.String(logging.FieldEventType, "run_cancel"))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	ctx := s.ctx
	if req.Wait {
		wait := time.Duration(req.WaitMillis) * time.Millisecond
		if wait <= 0 {
			wait = time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.Service().Events(ctx, req.RunID, req.Since, req.Limit, req.Wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Events = events
	resp.Next = next
	return nil
}
