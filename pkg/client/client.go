// Package client talks to the calib daemon over its unix socket.
package client

import (
	"github.com/calib-tools/calib/internal/client"
)

// Client wraps the unix socket transport with typed calls to the daemon API.
type Client struct {
	*client.Client
}

func NewClient(socketPath string) *Client {
	return &Client{Client: client.NewClient(socketPath)}
}
