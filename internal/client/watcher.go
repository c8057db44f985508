package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/relief-network/coordinator/internal/models"
)

// Snapshot is an immutable view of the disaster list at one point in time.
// Watchers replace it wholesale; it is never modified after publication.
type Snapshot struct {
	Disasters []models.Disaster
	FetchedAt time.Time
}

// Find returns the disaster with id, if present
func (s *Snapshot) Find(id uuid.UUID) (models.Disaster, bool) {
	if s == nil {
		return models.Disaster{}, false
	}
	for _, d := range s.Disasters {
		if d.ID == id {
			return d, true
		}
	}
	return models.Disaster{}, false
}

// Event is a push frame as received from the server
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Watcher mirrors the disaster list: on every push event it discards its
// snapshot and refetches.
type Watcher struct {
	client    *Client
	tag       string
	clock     clockwork.Clock
	logger    *slog.Logger
	retry     time.Duration
	snapshot  atomic.Pointer[Snapshot]
	onChange  func(*Snapshot, Event)
	dialer    *websocket.Dialer
	connected chan struct{}
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithTag limits the mirrored list to disasters carrying tag
func WithTag(tag string) WatcherOption {
	return func(w *Watcher) { w.tag = tag }
}

// WithClock sets the clock used for timestamps and reconnect delays
func WithClock(clock clockwork.Clock) WatcherOption {
	return func(w *Watcher) { w.clock = clock }
}

// WithRetryDelay sets the wait between reconnect attempts
func WithRetryDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.retry = d }
}

// OnChange registers a callback invoked after every reload
func OnChange(fn func(*Snapshot, Event)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher creates a watcher over client
func NewWatcher(client *Client, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		client:    client,
		clock:     clockwork.NewRealClock(),
		logger:    logger.With("component", "watcher"),
		retry:     2 * time.Second,
		dialer:    websocket.DefaultDialer,
		connected: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Snapshot returns the current snapshot, nil before the first load
func (w *Watcher) Snapshot() *Snapshot {
	return w.snapshot.Load()
}

// Connected is signalled each time the push channel is (re)established
func (w *Watcher) Connected() <-chan struct{} {
	return w.connected
}

// Reload fetches the list and publishes a new snapshot
func (w *Watcher) Reload(ctx context.Context) (*Snapshot, error) {
	disasters, err := w.client.ListDisasters(ctx, w.tag)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Disasters: disasters, FetchedAt: w.clock.Now()}
	w.snapshot.Store(snap)
	return snap, nil
}

// Run loads the list, then reloads on every push event until ctx ends.
// A dropped push connection is re-dialled after the retry delay, with a
// reload so events missed in between are not lost.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		w.logger.WarnContext(ctx, "push channel lost, reconnecting", "error", err, "delay", w.retry)

		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.retry):
		}
	}
}

func (w *Watcher) session(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.pushURL(), w.headers())
	if err != nil {
		return fmt.Errorf("dial push channel: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	select {
	case w.connected <- struct{}{}:
	default:
	}

	if err := w.publish(ctx, Event{Event: "connected"}); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read push channel: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			w.logger.WarnContext(ctx, "ignoring malformed push frame", "error", err)
			continue
		}
		if err := w.publish(ctx, ev); err != nil {
			return err
		}
	}
}

func (w *Watcher) publish(ctx context.Context, ev Event) error {
	snap, err := w.Reload(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			w.logger.WarnContext(ctx, "reload rejected", "event", ev.Event, "error", err)
			return nil
		}
		return fmt.Errorf("reload after %s: %w", ev.Event, err)
	}
	if w.onChange != nil {
		w.onChange(snap, ev)
	}
	return nil
}

func (w *Watcher) pushURL() string {
	base := w.client.BaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

func (w *Watcher) headers() http.Header {
	h := http.Header{}
	w.client.authorize(h)
	return h
}
