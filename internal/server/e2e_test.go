package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/morezero/components/internal/dummy"
	"github.com/morezero/components/pkg/apperr"
	pcfg "github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/discovery"
	"github.com/morezero/components/pkg/events"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/refer"
)

const e2eTestPrefix = "server:e2e_test"

// e2eEnv is a running service wired to an embedded NATS server for discovery and events.
type e2eEnv struct {
	ns     *natsserver.Server
	nc     *nats.Conn
	server *Server
	client *dummy.Client
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create NATS server: %v", e2eTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - NATS server failed to start", e2eTestPrefix)
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL(), nats.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("%s - failed to connect: %v", e2eTestPrefix, err)
	}
	t.Cleanup(nc.Close)

	cfg := testConfig()
	cfg.NATSURL = ns.ClientURL()
	cfg.DiscoveryKey = "dummy"

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("%s - New failed: %v", e2eTestPrefix, err)
	}
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("%s - Open failed: %v", e2eTestPrefix, err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	// The client finds the service through its own discovery connection.
	clientDiscovery := discovery.NewNATSDiscovery()
	if err := clientDiscovery.Configure(pcfg.FromTuples("url", ns.ClientURL())); err != nil {
		t.Fatal(err)
	}
	if err := clientDiscovery.Open(ctx, "e2e"); err != nil {
		t.Fatalf("%s - discovery open failed: %v", e2eTestPrefix, err)
	}
	t.Cleanup(func() { _ = clientDiscovery.Close(context.Background(), "e2e") })

	refs := refer.NewReferences()
	if err := refs.Put(locator.New("test", "discovery", "nats", "client", "1.0"), clientDiscovery); err != nil {
		t.Fatal(err)
	}

	client := dummy.NewClient()
	if err := client.Configure(pcfg.FromTuples("connection.discovery_key", "dummy")); err != nil {
		t.Fatal(err)
	}
	if err := client.SetReferences(refs); err != nil {
		t.Fatal(err)
	}
	if err := client.Open(ctx, "e2e"); err != nil {
		t.Fatalf("%s - client open failed: %v", e2eTestPrefix, err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background(), "e2e") })

	return &e2eEnv{ns: ns, nc: nc, server: s, client: client}
}

func TestE2E_CreatePublishesChangeEvents(t *testing.T) {
	env := setupE2E(t)

	var (
		mu       sync.Mutex
		captured []*events.ChangedEvent
	)
	received := make(chan struct{}, 10)
	sub, err := env.nc.Subscribe("components.changed.dummy.>", func(msg *nats.Msg) {
		var e events.ChangedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return
		}
		mu.Lock()
		captured = append(captured, &e)
		mu.Unlock()
		received <- struct{}{}
	})
	if err != nil {
		t.Fatalf("%s - subscribe failed: %v", e2eTestPrefix, err)
	}
	defer sub.Unsubscribe()
	if err := env.nc.Flush(); err != nil {
		t.Fatal(err)
	}

	created, err := env.client.Create(context.Background(), "e2e-create", dummy.Dummy{Key: "k", Content: "v"})
	if err != nil {
		t.Fatalf("%s - create failed: %v", e2eTestPrefix, err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - no change event received", e2eTestPrefix)
	}
	mu.Lock()
	defer mu.Unlock()
	e := captured[0]
	if e.Entity != "dummy" || e.Action != events.ActionCreated || e.ID != created.ID || e.TraceID != "e2e-create" {
		t.Errorf("%s - unexpected event %+v", e2eTestPrefix, e)
	}
}

func TestE2E_UnknownMethod(t *testing.T) {
	env := setupE2E(t)

	_, err := env.client.CallCommand(context.Background(), "no_such_command", "e2e-unknown", nil)
	if !apperr.HasCode(err, "METHOD_NOT_FOUND") {
		t.Fatalf("%s - err = %v, want METHOD_NOT_FOUND", e2eTestPrefix, err)
	}
	if !apperr.IsCategory(err, apperr.CategoryFailedInvocation) {
		t.Errorf("%s - err = %v, want FailedInvocation", e2eTestPrefix, err)
	}
}

func TestE2E_TraceIDPreservation(t *testing.T) {
	env := setupE2E(t)

	got, err := env.client.CheckTraceID(context.Background(), "trace-preserved-1")
	if err != nil {
		t.Fatalf("%s - check_trace_id failed: %v", e2eTestPrefix, err)
	}
	if got != "trace-preserved-1" {
		t.Errorf("%s - trace id = %q", e2eTestPrefix, got)
	}
}

func TestE2E_ConcurrentRequests(t *testing.T) {
	env := setupE2E(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.client.Create(ctx, fmt.Sprintf("e2e-%d", i), dummy.Dummy{Key: "concurrent", Content: fmt.Sprint(i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("%s - concurrent create failed: %v", e2eTestPrefix, err)
		}
	}

	page, err := env.client.List(ctx, "e2e-list", dummy.Filter{Key: "concurrent"}, dummy.Paging{Total: true})
	if err != nil {
		t.Fatalf("%s - list failed: %v", e2eTestPrefix, err)
	}
	if page.Total == nil || *page.Total != n {
		t.Errorf("%s - total = %v, want %d", e2eTestPrefix, page.Total, n)
	}
}
