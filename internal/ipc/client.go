package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"docket/internal/api"
)

// dialTimeout bounds the unix socket connect; a live daemon accepts
// immediately.
const dialTimeout = 2 * time.Second

// Client is a connection to a running daemon's socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket. Failure usually means no daemon is
// running.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Status fetches the daemon view.
func (c *Client) Status() (api.DaemonStatus, error) {
	var reply StatusReply
	if err := c.rpc.Call(serviceName+".Status", StatusRequest{}, &reply); err != nil {
		return api.DaemonStatus{}, fmt.Errorf("status: %w", err)
	}
	return reply.Status, nil
}

// RunPass asks the daemon for one scheduling pass.
func (c *Client) RunPass(submittedBy string) (api.PassSummary, error) {
	var reply RunPassReply
	req := RunPassRequest{SubmittedBy: submittedBy}
	if err := c.rpc.Call(serviceName+".RunPass", req, &reply); err != nil {
		return api.PassSummary{}, fmt.Errorf("run pass: %w", err)
	}
	return reply.Pass, nil
}

// Requeue asks the daemon for one retry sweep.
func (c *Client) Requeue() (api.RequeueSummary, error) {
	var reply RequeueReply
	if err := c.rpc.Call(serviceName+".Requeue", RequeueRequest{}, &reply); err != nil {
		return api.RequeueSummary{}, fmt.Errorf("requeue: %w", err)
	}
	return reply.Requeue, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (bool, error) {
	var reply StopReply
	if err := c.rpc.Call(serviceName+".Stop", StopRequest{}, &reply); err != nil {
		return false, fmt.Errorf("stop: %w", err)
	}
	return reply.Stopping, nil
}

// LogTail reads lines from the daemon log file.
func (c *Client) LogTail(req LogTailRequest) (LogTailReply, error) {
	var reply LogTailReply
	if err := c.rpc.Call(serviceName+".LogTail", req, &reply); err != nil {
		return LogTailReply{}, fmt.Errorf("log tail: %w", err)
	}
	return reply, nil
}
