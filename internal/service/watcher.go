package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// Prober answers whether the backend is reachable right now.
type Prober interface {
	Ping(ctx context.Context, path string) bool
}

// ConnectivityWatcher polls the backend and tracks reachability. When a
// probe succeeds after a failure it notifies subscribers, which is how
// the engine gets its automatic drain on reconnect.
type ConnectivityWatcher struct {
	prober    Prober
	probePath string
	interval  time.Duration

	mu        sync.Mutex
	online    bool
	probed    bool
	listeners []func()

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	running  bool
}

// NewConnectivityWatcher creates a watcher that probes the given path.
func NewConnectivityWatcher(prober Prober, probePath string, interval time.Duration) *ConnectivityWatcher {
	if interval == 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityWatcher{
		prober:    prober,
		probePath: probePath,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Online reports the last observed reachability. Before the first probe
// completes it probes synchronously so callers never act on a guess.
func (w *ConnectivityWatcher) Online(ctx context.Context) bool {
	w.mu.Lock()
	probed := w.probed
	online := w.online
	w.mu.Unlock()

	if probed {
		return online
	}
	return w.probe(ctx)
}

// Subscribe registers a callback fired on every offline-to-online
// transition. Callbacks run on the watcher goroutine and should return
// quickly or spawn their own work.
func (w *ConnectivityWatcher) Subscribe(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins periodic probing.
func (w *ConnectivityWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ticker = time.NewTicker(w.interval)
	w.mu.Unlock()

	log.Printf("[ConnectivityWatcher] Started - probe %s every %v", w.probePath, w.interval)

	go w.run()
}

// Stop halts probing. Safe to call more than once.
func (w *ConnectivityWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		if w.ticker != nil {
			w.ticker.Stop()
		}
		w.running = false
		w.mu.Unlock()
		close(w.stopCh)
		log.Printf("[ConnectivityWatcher] Stopped")
	})
}

func (w *ConnectivityWatcher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	w.probe(ctx)
	cancel()

	for {
		select {
		case <-w.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.probe(ctx)
			cancel()
		case <-w.stopCh:
			return
		}
	}
}

func (w *ConnectivityWatcher) probe(ctx context.Context) bool {
	online := w.prober.Ping(ctx, w.probePath)

	w.mu.Lock()
	wasOnline := w.online
	wasProbed := w.probed
	w.online = online
	w.probed = true
	var listeners []func()
	if online && wasProbed && !wasOnline {
		listeners = append(listeners, w.listeners...)
	}
	w.mu.Unlock()

	if online && wasProbed && !wasOnline {
		log.Printf("[ConnectivityWatcher] Backend reachable again")
	}
	if !online && (wasOnline || !wasProbed) {
		log.Printf("[ConnectivityWatcher] Backend unreachable")
	}

	for _, fn := range listeners {
		fn()
	}
	return online
}
