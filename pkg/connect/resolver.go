package connect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/refer"
)

const logPrefix = "connect:resolver"

// DiscoveryLocator matches every discovery component.
var DiscoveryLocator = locator.New("", "discovery", "", "", "")

// Discovery registers and looks up connections by key.
type Discovery interface {
	Register(ctx context.Context, traceID, key string, conn ConnectionParams) error
	// ResolveOne returns nil when nothing is registered under key.
	ResolveOne(ctx context.Context, traceID, key string) (*ConnectionParams, error)
	ResolveAll(ctx context.Context, traceID, key string) ([]ConnectionParams, error)
}

// Resolver holds configured connections and resolves discovery keys through
// every Discovery found in the references.
type Resolver struct {
	connections []ConnectionParams
	refs        refer.Referencer
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Configure reads connections from params.
func (r *Resolver) Configure(params config.Params) error {
	r.connections = append(r.connections, ConnectionsFromConfig(params)...)
	return nil
}

// SetReferences sets where discovery services are looked up.
func (r *Resolver) SetReferences(refs refer.Referencer) error {
	r.refs = refs
	return nil
}

// Add appends a connection.
func (r *Resolver) Add(conn ConnectionParams) {
	r.connections = append(r.connections, conn)
}

// All returns the configured connections.
func (r *Resolver) All() []ConnectionParams {
	out := make([]ConnectionParams, len(r.connections))
	copy(out, r.connections)
	return out
}

// Register publishes every connection with a discovery key and a concrete address.
func (r *Resolver) Register(ctx context.Context, traceID string) error {
	for _, conn := range r.connections {
		if err := r.RegisterConnection(ctx, traceID, conn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterConnection publishes conn under its discovery key in every discovery.
// Connections without a key or without an address are skipped.
func (r *Resolver) RegisterConnection(ctx context.Context, traceID string, conn ConnectionParams) error {
	if conn.DiscoveryKey == "" || conn.UseDiscovery() {
		return nil
	}
	for _, d := range r.discoveries() {
		if err := d.Register(ctx, traceID, conn.DiscoveryKey, conn); err != nil {
			return err
		}
		slog.Debug(fmt.Sprintf("%s - registered %s as %s", logPrefix, conn.URIString(), conn.DiscoveryKey))
	}
	return nil
}

// Resolve returns the first usable connection, looking up discovery keys as needed.
func (r *Resolver) Resolve(ctx context.Context, traceID string) (*ConnectionParams, error) {
	if len(r.connections) == 0 {
		return nil, nil
	}
	for _, conn := range r.connections {
		if !conn.UseDiscovery() {
			c := conn
			return &c, nil
		}
		resolved, err := r.resolveInDiscovery(ctx, traceID, conn)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			return resolved, nil
		}
	}
	return nil, apperr.NewConfigError(traceID, "CANNOT_RESOLVE", "Connection cannot be resolved through discovery").
		WithDetails("discovery_key", r.connections[0].DiscoveryKey)
}

// ResolveAll returns every connection, expanding discovery keys.
func (r *Resolver) ResolveAll(ctx context.Context, traceID string) ([]ConnectionParams, error) {
	var out []ConnectionParams
	for _, conn := range r.connections {
		if !conn.UseDiscovery() {
			out = append(out, conn)
			continue
		}
		for _, d := range r.discoveries() {
			found, err := d.ResolveAll(ctx, traceID, conn.DiscoveryKey)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
	}
	return out, nil
}

func (r *Resolver) resolveInDiscovery(ctx context.Context, traceID string, conn ConnectionParams) (*ConnectionParams, error) {
	discoveries := r.discoveries()
	if len(discoveries) == 0 {
		return nil, apperr.NewConfigError(traceID, "CANNOT_RESOLVE", "Discovery is required to resolve the connection").
			WithDetails("discovery_key", conn.DiscoveryKey)
	}
	for _, d := range discoveries {
		found, err := d.ResolveOne(ctx, traceID, conn.DiscoveryKey)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

func (r *Resolver) discoveries() []Discovery {
	if r.refs == nil {
		return nil
	}
	return refer.Optional[Discovery](r.refs, DiscoveryLocator)
}
