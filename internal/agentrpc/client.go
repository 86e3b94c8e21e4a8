package agentrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nixlim/buzz/internal/notify"
)

// ErrClientClosed is returned after Close.
var ErrClientClosed = errors.New("agent client closed")

// Client sends show requests to a standalone agent. It satisfies the
// loop's Agent interface.
type Client struct {
	conn   *grpc.ClientConn
	logs   collogspb.LogsServiceClient
	origin string
	now    func() time.Time
}

// Dial creates a client for the agent at endpoint. The connection is
// established lazily; Ready waits for it.
func Dial(endpoint, origin string) (*Client, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("creating agent client for %s: %w", endpoint, err)
	}
	return &Client{
		conn:   conn,
		logs:   collogspb.NewLogsServiceClient(conn),
		origin: origin,
		now:    time.Now,
	}, nil
}

// Ready blocks until the connection is up.
func (c *Client) Ready(ctx context.Context) error {
	c.conn.Connect()
	for {
		s := c.conn.GetState()
		switch s {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return ErrClientClosed
		}
		if !c.conn.WaitForStateChange(ctx, s) {
			return ctx.Err()
		}
	}
}

func (c *Client) ShowNotification(ctx context.Context, n notify.Notification) error {
	resp, err := c.logs.Export(ctx, NewExportRequest(c.origin, c.now(), n))
	if err != nil {
		return fmt.Errorf("exporting show request: %w", err)
	}
	if ps := resp.GetPartialSuccess(); ps.GetRejectedLogRecords() > 0 {
		return fmt.Errorf("agent rejected notification: %s", ps.GetErrorMessage())
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
