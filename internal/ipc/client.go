package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Reelflow.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Reelflow.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartRun submits a new run specification.
func (c *Client) StartRun(req StartRunRequest) (*StartRunResponse, error) {
	var resp StartRunResponse
	if err := c.client.Call("Reelflow.StartRun", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunStatus retrieves the state of one run.
func (c *Client) RunStatus(runID string) (*RunStatusResponse, error) {
	var resp RunStatusResponse
	if err := c.client.Call("Reelflow.RunStatus", RunStatusRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Confirm resumes a run paused at a review checkpoint.
func (c *Client) Confirm(req ConfirmRequest) (*ConfirmResponse, error) {
	var resp ConfirmResponse
	if err := c.client.Call("Reelflow.Confirm", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Regenerate reruns the stage behind the current checkpoint.
func (c *Client) Regenerate(runID string) (*RegenerateResponse, error) {
	var resp RegenerateResponse
	if err := c.client.Call("Reelflow.Regenerate", RegenerateRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel aborts a run.
func (c *Client) Cancel(runID string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call("Reelflow.Cancel", CancelRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events fetches progress events after a sequence cursor.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.client.Call("Reelflow.Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
