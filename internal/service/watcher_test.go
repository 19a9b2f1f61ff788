package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

type proberStub struct {
	mu     sync.Mutex
	online bool
}

func (p *proberStub) set(online bool) {
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

func (p *proberStub) Ping(ctx context.Context, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func TestOnlineProbesSynchronouslyBeforeFirstTick(t *testing.T) {
	prober := &proberStub{online: true}
	w := NewConnectivityWatcher(prober, "/api/etapas/", time.Hour)

	if !w.Online(context.Background()) {
		t.Error("Online should probe and report reachable")
	}

	prober.set(false)
	// The first probe already ran, so the cached observation is served.
	if !w.Online(context.Background()) {
		t.Error("Online should serve the last observation between probes")
	}
}

func TestSubscriberFiresOnReconnect(t *testing.T) {
	prober := &proberStub{online: false}
	w := NewConnectivityWatcher(prober, "/api/etapas/", 10*time.Millisecond)

	fired := make(chan struct{}, 1)
	w.Subscribe(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	w.Start()
	defer w.Stop()

	// Let the watcher observe the offline state first.
	time.Sleep(30 * time.Millisecond)
	prober.set(true)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never fired on the offline-to-online transition")
	}
}

func TestSubscriberNotFiredWhenAlreadyOnline(t *testing.T) {
	prober := &proberStub{online: true}
	w := NewConnectivityWatcher(prober, "/api/etapas/", 10*time.Millisecond)

	fired := make(chan struct{}, 8)
	w.Subscribe(func() { fired <- struct{}{} })

	w.Start()
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-fired:
		t.Error("subscriber fired without an offline-to-online transition")
	default:
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewConnectivityWatcher(&proberStub{online: true}, "/", time.Hour)
	w.Start()
	w.Stop()
	w.Stop()
}
