package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/morezero/components/pkg/commsutil"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/connect"
)

const logPrefix = "discovery:nats"

// NATSDiscovery stores registrations in a JetStream key-value bucket so every
// process attached to the same NATS cluster sees them.
//
// Configuration keys: url, bucket and ttl (0 keeps entries forever).
type NATSDiscovery struct {
	mu     sync.Mutex
	url    string
	bucket string
	ttl    time.Duration
	name   string

	nc     *nats.Conn
	ownsNC bool
	kv     nats.KeyValue
}

// NewNATSDiscovery creates a discovery that connects on Open.
func NewNATSDiscovery() *NATSDiscovery {
	return &NATSDiscovery{
		url:    nats.DefaultURL,
		bucket: commsutil.DiscoveryBucket,
		name:   "components-discovery",
	}
}

// NewNATSDiscoveryWithConn uses an existing connection. Close leaves it open.
func NewNATSDiscoveryWithConn(nc *nats.Conn) *NATSDiscovery {
	d := NewNATSDiscovery()
	d.nc = nc
	return d
}

// Configure reads url, bucket and ttl.
func (d *NATSDiscovery) Configure(params config.Params) error {
	d.url = params.GetStringWithDefault("url", d.url)
	d.bucket = params.GetStringWithDefault("bucket", d.bucket)
	d.ttl = params.GetDurationWithDefault("ttl", d.ttl)
	return nil
}

// IsOpen reports whether the bucket is bound.
func (d *NATSDiscovery) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kv != nil
}

// Open connects when needed and binds the bucket.
func (d *NATSDiscovery) Open(_ context.Context, traceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kv != nil {
		return nil
	}
	if d.nc == nil {
		nc, err := commsutil.Connect(d.url, d.name)
		if err != nil {
			return err
		}
		d.nc = nc
		d.ownsNC = true
	}
	kv, err := commsutil.KeyValue(d.nc, d.bucket, d.ttl)
	if err != nil {
		if d.ownsNC {
			d.nc.Close()
			d.nc = nil
			d.ownsNC = false
		}
		return err
	}
	d.kv = kv
	slog.Info(fmt.Sprintf("%s - discovery opened bucket=%s trace_id=%s", logPrefix, d.bucket, traceID))
	return nil
}

// Close drops the bucket and closes the connection.
func (d *NATSDiscovery) Close(_ context.Context, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kv = nil
	if d.ownsNC && d.nc != nil {
		d.nc.Close()
		d.nc = nil
		d.ownsNC = false
	}
	return nil
}

// Register adds conn to the list stored under key.
func (d *NATSDiscovery) Register(_ context.Context, _, key string, conn connect.ConnectionParams) error {
	kv, err := d.store()
	if err != nil {
		return err
	}
	k := commsutil.SanitizeKey(key)
	existing, revision, err := d.read(kv, k)
	if err != nil {
		return err
	}
	data, err := commsutil.EncodePayload(appendUnique(existing, conn))
	if err != nil {
		return err
	}
	if revision == 0 {
		_, err = kv.Put(k, data)
	} else {
		_, err = kv.Update(k, data, revision)
	}
	if err != nil {
		return fmt.Errorf("%s - failed to register %s: %w", logPrefix, key, err)
	}
	slog.Debug(fmt.Sprintf("%s - registered %s under %s", logPrefix, conn.URIString(), key))
	return nil
}

// ResolveOne returns the first connection under key, or nil.
func (d *NATSDiscovery) ResolveOne(ctx context.Context, traceID, key string) (*connect.ConnectionParams, error) {
	all, err := d.ResolveAll(ctx, traceID, key)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[0], nil
}

// ResolveAll reads the connection list stored under key.
func (d *NATSDiscovery) ResolveAll(_ context.Context, _, key string) ([]connect.ConnectionParams, error) {
	kv, err := d.store()
	if err != nil {
		return nil, err
	}
	found, _, err := d.read(kv, commsutil.SanitizeKey(key))
	return found, err
}

func (d *NATSDiscovery) store() (nats.KeyValue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kv == nil {
		return nil, fmt.Errorf("%s - discovery is not open", logPrefix)
	}
	return d.kv, nil
}

func (d *NATSDiscovery) read(kv nats.KeyValue, key string) ([]connect.ConnectionParams, uint64, error) {
	entry, err := kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s - failed to read %s: %w", logPrefix, key, err)
	}
	var conns []connect.ConnectionParams
	if err := commsutil.DecodePayload(entry.Value(), &conns); err != nil {
		return nil, 0, err
	}
	return conns, entry.Revision(), nil
}
