// Package discovery stores connections under discovery keys.
package discovery

import (
	"context"
	"sync"

	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/connect"
)

// MemoryDiscovery keeps registrations in process. Configuration maps each key
// to a connection uri, for example "dummies: http://localhost:8090".
type MemoryDiscovery struct {
	mu      sync.RWMutex
	entries map[string][]connect.ConnectionParams
}

// NewMemoryDiscovery creates an empty discovery.
func NewMemoryDiscovery() *MemoryDiscovery {
	return &MemoryDiscovery{entries: make(map[string][]connect.ConnectionParams)}
}

// Configure registers every key of params as a connection uri.
func (d *MemoryDiscovery) Configure(params config.Params) error {
	for _, key := range params.Keys() {
		conn, err := connect.ParseURI(params.GetString(key))
		if err != nil {
			return err
		}
		if err := d.Register(context.Background(), "", key, conn); err != nil {
			return err
		}
	}
	return nil
}

// Register appends conn to the entries under key.
func (d *MemoryDiscovery) Register(_ context.Context, _, key string, conn connect.ConnectionParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = appendUnique(d.entries[key], conn)
	return nil
}

// ResolveOne returns the first connection under key, or nil.
func (d *MemoryDiscovery) ResolveOne(_ context.Context, _, key string) (*connect.ConnectionParams, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	found := d.entries[key]
	if len(found) == 0 {
		return nil, nil
	}
	c := found[0]
	return &c, nil
}

// ResolveAll returns a copy of every connection under key.
func (d *MemoryDiscovery) ResolveAll(_ context.Context, _, key string) ([]connect.ConnectionParams, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]connect.ConnectionParams, len(d.entries[key]))
	copy(out, d.entries[key])
	return out, nil
}

func appendUnique(list []connect.ConnectionParams, conn connect.ConnectionParams) []connect.ConnectionParams {
	for _, existing := range list {
		if existing == conn {
			return list
		}
	}
	return append(list, conn)
}
