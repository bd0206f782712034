package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/morezero/components/pkg/commsutil"
	"github.com/morezero/components/pkg/config"
)

const natsPublisherLogPrefix = "events:nats_publisher"

// NATSPublisher publishes change events to a granular subject
// ("<prefix>.<entity>.<action>") and to the global change subject.
//
// Configuration keys: url, subject_prefix and global_subject.
type NATSPublisher struct {
	url           string
	subjectPrefix string
	globalSubject string

	nc     *nats.Conn
	ownsNC bool
}

// NewNATSPublisher creates a publisher that connects on Open.
func NewNATSPublisher() *NATSPublisher {
	return &NATSPublisher{
		url:           nats.DefaultURL,
		subjectPrefix: commsutil.SubjectChangeEvent,
		globalSubject: commsutil.SubjectChangeEvent,
	}
}

// NewNATSPublisherWithConn publishes on an existing connection. Close leaves it open.
func NewNATSPublisherWithConn(nc *nats.Conn) *NATSPublisher {
	p := NewNATSPublisher()
	p.nc = nc
	return p
}

// Configure reads url and the subject settings.
func (p *NATSPublisher) Configure(params config.Params) error {
	p.url = params.GetStringWithDefault("url", p.url)
	p.subjectPrefix = params.GetStringWithDefault("subject_prefix", p.subjectPrefix)
	p.globalSubject = params.GetStringWithDefault("global_subject", p.globalSubject)
	return nil
}

// IsOpen reports whether a connection is held.
func (p *NATSPublisher) IsOpen() bool {
	return p.nc != nil
}

// Open connects to NATS unless a connection was supplied.
func (p *NATSPublisher) Open(_ context.Context, traceID string) error {
	if p.nc != nil {
		return nil
	}
	nc, err := commsutil.Connect(p.url, "components-events")
	if err != nil {
		return err
	}
	p.nc = nc
	p.ownsNC = true
	slog.Info(fmt.Sprintf("%s - publisher opened url=%s trace_id=%s", natsPublisherLogPrefix, p.url, traceID))
	return nil
}

// Close drains the connection if this publisher opened it.
func (p *NATSPublisher) Close(_ context.Context, _ string) error {
	if p.ownsNC && p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - drain failed: %v", natsPublisherLogPrefix, err))
			p.nc.Close()
		}
	}
	p.nc = nil
	p.ownsNC = false
	return nil
}

// PublishChanged publishes event to its granular subject and the global subject.
func (p *NATSPublisher) PublishChanged(_ context.Context, event *ChangedEvent) error {
	if p.nc == nil {
		return fmt.Errorf("%s - publisher is not open", natsPublisherLogPrefix)
	}
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", natsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.BuildChangeSubject(p.subjectPrefix, event.Entity, event.Action)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", natsPublisherLogPrefix, granularSubject, err))
		return err
	}
	if err := p.nc.Publish(p.globalSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", natsPublisherLogPrefix, p.globalSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - published %s %s id=%s", natsPublisherLogPrefix, event.Entity, event.Action, event.ID))
	return nil
}
