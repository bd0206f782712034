package dummy

import (
	"context"

	"github.com/morezero/components/pkg/rpc"
)

// ServiceName prefixes the dummy methods, as in "dummy.get_dummies".
const ServiceName = "dummy"

// Client calls a remote dummy service.
type Client struct {
	*rpc.CommandableClient
}

// NewClient creates a client. Configure and Open it like any CommandableClient.
func NewClient() *Client {
	return &Client{CommandableClient: rpc.NewCommandableClient(ServiceName)}
}

// List returns one page of dummies matching filter.
func (c *Client) List(ctx context.Context, traceID string, filter Filter, paging Paging) (*Page, error) {
	return rpc.Call[*Page](ctx, c.CommandableClient, "get_dummies", traceID,
		map[string]any{"filter": filter, "paging": paging})
}

// GetByID returns the dummy with id, or nil when there is none.
func (c *Client) GetByID(ctx context.Context, traceID, id string) (*Dummy, error) {
	return rpc.Call[*Dummy](ctx, c.CommandableClient, "get_dummy_by_id", traceID,
		map[string]any{"dummy_id": id})
}

// Create stores d and returns it with its assigned id.
func (c *Client) Create(ctx context.Context, traceID string, d Dummy) (*Dummy, error) {
	return rpc.Call[*Dummy](ctx, c.CommandableClient, "create_dummy", traceID,
		map[string]any{"dummy": d})
}

// Update replaces the stored dummy with the same id.
func (c *Client) Update(ctx context.Context, traceID string, d Dummy) (*Dummy, error) {
	return rpc.Call[*Dummy](ctx, c.CommandableClient, "update_dummy", traceID,
		map[string]any{"dummy": d})
}

// Delete removes the dummy with id and returns it, or nil when there was none.
func (c *Client) Delete(ctx context.Context, traceID, id string) (*Dummy, error) {
	return rpc.Call[*Dummy](ctx, c.CommandableClient, "delete_dummy", traceID,
		map[string]any{"dummy_id": id})
}

// CheckTraceID returns the trace id the service saw for this call.
func (c *Client) CheckTraceID(ctx context.Context, traceID string) (string, error) {
	return rpc.Call[string](ctx, c.CommandableClient, "check_trace_id", traceID, nil)
}
