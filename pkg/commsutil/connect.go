// Package commsutil provides NATS connection, key-value and subject helpers.
package commsutil

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// Connect creates a NATS connection to the given URL. Extra options are applied after the defaults.
func Connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to NATS at %s as %s", logPrefix, url, name))

	all := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - NATS disconnected: %v", logPrefix, err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info(fmt.Sprintf("%s - NATS reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info(fmt.Sprintf("%s - NATS connection closed", logPrefix))
		}),
	}
	nc, err := nats.Connect(url, append(all, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}

// KeyValue binds to a JetStream key-value bucket, creating it when missing.
func KeyValue(nc *nats.Conn, bucket string, ttl time.Duration) (nats.KeyValue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to open JetStream: %w", logPrefix, err)
	}
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("%s - failed to bind bucket %s: %w", logPrefix, bucket, err)
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "component discovery",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create bucket %s: %w", logPrefix, bucket, err)
	}
	slog.Info(fmt.Sprintf("%s - Created key-value bucket %s", logPrefix, bucket))
	return kv, nil
}
