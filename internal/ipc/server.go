package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"plantcam/internal/daemon"
	"plantcam/internal/logging"
	"plantcam/internal/timelapse"
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
	svc := &service{daemon: d, logger: logging.WithComponent(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Plantcam", svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.WithComponent(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed", logging.Error(err))
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
		s.logger.Warn("failed to remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) CaptureNow(_ CaptureNowRequest, resp *CaptureNowResponse) error {
	if err := s.daemon.CaptureNow(s.ctx); err != nil {
		resp.Captured = false
		resp.Message = err.Error()
		return nil
	}
	resp.Captured = true
	resp.Message = "frame captured"
	return nil
}

func (s *service) ConvertNow(_ ConvertNowRequest, resp *ConvertNowResponse) error {
	result := s.daemon.ConvertNow()
	resp.Started = result == timelapse.ConvertStarted
	resp.Message = string(result)
	return nil
}

func (s *service) MergeVideos(_ MergeVideosRequest, resp *MergeVideosResponse) error {
	merged, err := s.daemon.MergeNow(s.ctx)
	if err != nil {
		return err
	}
	resp.Merged = merged
	return nil
}

func (s *service) ListVideos(_ ListVideosRequest, resp *ListVideosResponse) error {
	videos, err := s.daemon.Videos()
	if err != nil {
		return err
	}
	resp.Videos = videos
	return nil
}

func (s *service) DeleteVideo(req DeleteVideoRequest, resp *DeleteVideoResponse) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return errors.New("video name required")
	}
	if err := s.daemon.DeleteVideo(name); err != nil {
		return err
	}
	resp.Deleted = true
	s.logger.Info("video deleted via ipc", logging.String("name", name))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	events, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Events = events
	return nil
}

func (s *service) UpdateSettings(req UpdateSettingsRequest, resp *UpdateSettingsResponse) error {
	if err := s.daemon.UpdateSettings(req.Settings); err != nil {
		return err
	}
	resp.Settings = s.daemon.Status(s.ctx).Settings
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}
