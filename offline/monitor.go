// ABOUTME: Connectivity monitor maintaining a scoped subscription to the
// ABOUTME: remote health signal, with edge-triggered up/down reporting.
package offline

import (
	"context"
	"log"
	"sync"
	"time"
)

// ConnectivityHandler receives edge-triggered reachability transitions.
// *Engine implements it.
type ConnectivityHandler interface {
	ConnectivityChanged(connected bool, cause error)
}

// Monitor probes the remote store's authenticated health endpoint and drives
// the handler through reachable/unreachable transitions. It is a scoped
// resource: Open starts the subscription, Close releases it on every exit
// path. A principal change takes effect on the next probe; call Refresh to
// force one immediately.
type Monitor struct {
	client     *Client
	principals PrincipalProvider
	handler    ConnectivityHandler
	logger     Logger
	interval   time.Duration
	backoff    Backoff

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}
}

// NewMonitor builds a monitor over the client's health probe. The handler
// must be non-nil; a nil logger falls back to the standard logger.
func NewMonitor(client *Client, principals PrincipalProvider, handler ConnectivityHandler, logger Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		client:     client,
		principals: principals,
		handler:    handler,
		logger:     logger,
		interval:   client.cfg.heartbeat(),
		backoff:    DefaultBackoff(),
	}
}

// Open starts the subscription. The handler immediately learns the initial
// state: offline until the first successful probe. Opening an already-open
// monitor is a no-op.
func (m *Monitor) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.refresh = make(chan struct{}, 1)
	go m.run(ctx, m.done, m.refresh)
}

// Close tears the subscription down and waits for the probe loop to exit.
// Closing a closed monitor is a no-op.
func (m *Monitor) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.refresh = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh forces an immediate probe, typically after the signed-in principal
// changes. No-op when the monitor is closed.
func (m *Monitor) Refresh() {
	m.mu.Lock()
	refresh := m.refresh
	m.mu.Unlock()
	if refresh == nil {
		return
	}
	select {
	case refresh <- struct{}{}:
	default:
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}, refresh chan struct{}) {
	defer close(done)

	connected := false
	for {
		up, cause := m.probe(ctx)
		if up != connected {
			connected = up
			m.handler.ConnectivityChanged(up, cause)
		}

		var wait time.Duration
		if up {
			m.backoff.Reset()
			wait = m.interval
		} else {
			wait = m.backoff.Next()
		}

		select {
		case <-ctx.Done():
			return
		case <-refresh:
		case <-time.After(wait):
		}
	}
}

// probe checks reachability once. An absent principal or unconfigured client
// counts as unreachable without touching the network.
func (m *Monitor) probe(ctx context.Context) (bool, error) {
	if !m.client.Configured() {
		return false, ErrNotConfigured
	}
	if _, ok := m.principals.Principal(); !ok {
		return false, ErrNoPrincipal
	}
	status := m.client.Health(ctx)
	if !status.OK {
		return false, status.Err
	}
	return true, nil
}
