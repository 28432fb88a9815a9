package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"docket/internal/api"
	"docket/internal/daemon"
	"docket/internal/logging"
	"docket/internal/logs"
)

// serviceName is the RPC service every method hangs off, e.g. Docket.Status.
const serviceName = "Docket"

// maxLogWait bounds how long a LogTail call may block waiting for new
// lines before returning an empty batch.
const maxLogWait = 5 * time.Second

// Server accepts unix socket connections and serves the Docket service.
type Server struct {
	socketPath string
	logger     *slog.Logger
	rpcServer  *rpc.Server

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// handlers carries the RPC method set. stop, when set, is invoked
// asynchronously by the Stop method after the reply is sent.
type handlers struct {
	daemon *daemon.Daemon
	stop   func()
}

// NewServer registers the Docket service around d. stop is what Stop
// triggers; pass nil to make Stop a no-op beyond its reply.
func NewServer(d *daemon.Daemon, socketPath string, stop func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc: daemon is required")
	}
	if socketPath == "" {
		return nil, errors.New("ipc: socket path is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &handlers{daemon: d, stop: stop}); err != nil {
		return nil, fmt.Errorf("register %s service: %w", serviceName, err)
	}
	return &Server{
		socketPath: socketPath,
		logger:     logger,
		rpcServer:  rpcServer,
	}, nil
}

// Serve binds the socket and starts accepting connections. It returns once
// the listener is up; Close tears it down.
func (s *Server) Serve(ctx context.Context) error {
	// A previous daemon that died uncleanly leaves the socket file behind.
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	serveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-serveCtx.Done()
		_ = listener.Close()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if serveCtx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				s.log().Warn("accept failed", logging.Error(err))
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			}()
		}
	}()

	s.log().Info("ipc listening", logging.String("socket", s.socketPath))
	return nil
}

// Close stops accepting, waits for in-flight connections, and removes the
// socket file.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	_ = os.RemoveAll(s.socketPath)
}

func (s *Server) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "ipc")
}

// Status returns the daemon view plus a statistics snapshot.
func (h *handlers) Status(_ StatusRequest, reply *StatusReply) error {
	reply.Status = statusPayload(h.daemon.Status(context.Background()))
	return nil
}

// RunPass executes one scheduling pass on behalf of the caller.
func (h *handlers) RunPass(req RunPassRequest, reply *RunPassReply) error {
	result := h.daemon.RunPass(context.Background(), req.SubmittedBy)
	if summary := api.FromPassResult(result); summary != nil {
		reply.Pass = *summary
	}
	return nil
}

// Requeue executes one retry sweep on behalf of the caller.
func (h *handlers) Requeue(_ RequeueRequest, reply *RequeueReply) error {
	result := h.daemon.Requeue(context.Background())
	if summary := api.FromRequeueResult(result); summary != nil {
		reply.Requeue = *summary
	}
	return nil
}

// Stop acknowledges, then triggers daemon shutdown out of band so the
// reply reaches the client before the socket goes away.
func (h *handlers) Stop(_ StopRequest, reply *StopReply) error {
	reply.Stopping = true
	if h.stop != nil {
		go h.stop()
	}
	return nil
}

// LogTail reads from the daemon log file on behalf of the caller.
func (h *handlers) LogTail(req LogTailRequest, reply *LogTailReply) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait > maxLogWait {
		wait = maxLogWait
	}
	result, err := logs.Tail(context.Background(), h.daemon.LogFilePath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Wait:   wait,
	})
	if err != nil {
		return err
	}
	reply.Lines = result.Lines
	reply.Offset = result.Offset
	return nil
}

func statusPayload(status daemon.Status) api.DaemonStatus {
	return api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		StartedAt:     api.FormatTime(status.StartedAt),
		Backend:       status.Backend,
		DatabasePath:  status.DatabasePath,
		LockFilePath:  status.LockFilePath,
		SocketPath:    status.SocketPath,
		LastPass:      api.FromPassResult(status.LastPass),
		LastPassAt:    api.FormatTime(status.LastPassAt),
		LastRequeue:   api.FromRequeueResult(status.LastRequeue),
		LastRequeueAt: api.FormatTime(status.LastRequeueAt),
		Statistics:    api.FromStatistics(status.Statistics),
	}
}
