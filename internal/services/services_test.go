package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/relief-network/coordinator/internal/cache"
	"github.com/relief-network/coordinator/internal/observability"
	"github.com/relief-network/coordinator/internal/storage/memory"
)

type broadcast struct {
	event   string
	payload any
}

// recordingNotifier keeps every broadcast for inspection.
type recordingNotifier struct {
	mu     sync.Mutex
	events []broadcast
}

func (n *recordingNotifier) Broadcast(_ context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, broadcast{event: event, payload: payload})
}

func (n *recordingNotifier) all() []broadcast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]broadcast(nil), n.events...)
}

type fixture struct {
	clock    *clockwork.FakeClock
	store    *memory.Store
	cache    *cache.Cache
	notifier *recordingNotifier
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func newFixture() *fixture {
	clock := clockwork.NewFakeClock()
	store := memory.New(clock)
	metrics := observability.NewMetricsForTesting()
	logger := observability.NewDiscardLogger()
	return &fixture{
		clock:    clock,
		store:    store,
		cache:    cache.New(store, clock, metrics, logger),
		notifier: &recordingNotifier{},
		metrics:  metrics,
		logger:   logger,
	}
}

func (f *fixture) disasters() *DisasterService {
	return NewDisasterService(f.store, f.notifier, f.clock, "reliefAdmin", f.metrics, f.logger)
}
