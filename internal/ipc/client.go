package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"plantcam/internal/api"
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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Plantcam.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CaptureNow takes a frame immediately.
func (c *Client) CaptureNow() (*CaptureNowResponse, error) {
	var resp CaptureNowResponse
	if err := c.client.Call("Plantcam.CaptureNow", CaptureNowRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConvertNow triggers an encode of the current session.
func (c *Client) ConvertNow() (*ConvertNowResponse, error) {
	var resp ConvertNowResponse
	if err := c.client.Call("Plantcam.ConvertNow", ConvertNowRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MergeVideos merges the whole catalog into one artifact.
func (c *Client) MergeVideos() (*MergeVideosResponse, error) {
	var resp MergeVideosResponse
	if err := c.client.Call("Plantcam.MergeVideos", MergeVideosRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVideos lists the catalog, newest first.
func (c *Client) ListVideos() (*ListVideosResponse, error) {
	var resp ListVideosResponse
	if err := c.client.Call("Plantcam.ListVideos", ListVideosRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteVideo removes one video by name.
func (c *Client) DeleteVideo(name string) (*DeleteVideoResponse, error) {
	var resp DeleteVideoResponse
	if err := c.client.Call("Plantcam.DeleteVideo", DeleteVideoRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches recent journal events.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Plantcam.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSettings applies new runtime settings.
func (c *Client) UpdateSettings(settings api.Settings) (*UpdateSettingsResponse, error) {
	var resp UpdateSettingsResponse
	if err := c.client.Call("Plantcam.UpdateSettings", UpdateSettingsRequest{Settings: settings}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Plantcam.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
