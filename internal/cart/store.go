package cart

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mercatolabs/cartsync/pkg/logger"
	"github.com/mercatolabs/cartsync/pkg/metrics"
	"go.uber.org/multierr"
)

// Options fixes a store's configuration for its lifetime.
type Options struct {
	// StorageKey names the persisted envelope and derives the broadcast
	// channel. Stores sharing a key converge; stores with distinct keys
	// never touch each other's data.
	StorageKey string
	// APIEndpoint is the server sync path, or an absolute URL.
	APIEndpoint string
	// ServerBaseURL is prepended when APIEndpoint is a bare path.
	ServerBaseURL string
	// DisableBroadcast turns off cross-context publishing and subscribing.
	DisableBroadcast bool
	// SyncTimeout bounds one server sync round trip.
	SyncTimeout time.Duration
	// HTTPClient overrides the transport used for server sync.
	HTTPClient *http.Client
	// Clock supplies the logical clock in epoch milliseconds.
	Clock func() int64

	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
}

func (o *Options) applyDefaults() {
	if o.StorageKey == "" {
		o.StorageKey = DefaultStorageKey
	}
	if o.APIEndpoint == "" {
		o.APIEndpoint = DefaultAPIEndpoint
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = func() int64 { return time.Now().UnixMilli() }
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.SyncTimeout}
	}
}

func (o Options) syncURL() string {
	if strings.HasPrefix(o.APIEndpoint, "http://") || strings.HasPrefix(o.APIEndpoint, "https://") {
		return o.APIEndpoint
	}
	return strings.TrimSuffix(o.ServerBaseURL, "/") + o.APIEndpoint
}

// Store owns one cart's state: line items, the UI open flag and the logical
// clock. All writes go through its methods; persistence and broadcast ride
// along as fire-and-forget side effects that never fail the caller.
type Store struct {
	mu       sync.RWMutex
	items    []LineItem
	lastSync int64
	isOpen   bool

	opts        Options
	storage     Storage
	broadcaster Broadcaster
	unsubscribe func()
	listeners   []func(State)

	logg *logger.Logger
	mtr  *metrics.CartMetrics
}

// New builds a store and hydrates it from storage. A nil storage means pure
// in-memory operation; a nil broadcaster means single-context operation.
// Construction never fails on adapter problems: corrupt or missing envelopes
// hydrate an empty cart.
func New(ctx context.Context, opts Options, storage Storage, broadcaster Broadcaster) *Store {
	opts.applyDefaults()

	s := &Store{
		items:       []LineItem{},
		opts:        opts,
		storage:     storage,
		broadcaster: broadcaster,
		logg:        opts.Logger,
		mtr:         opts.Metrics,
	}

	s.hydrate(ctx)

	if broadcaster != nil && !opts.DisableBroadcast {
		cancel, err := broadcaster.Subscribe(ctx, s.handleMessage)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(ctx, "cart broadcast unavailable, running single-context")
			}
		} else {
			s.unsubscribe = cancel
		}
	}

	return s
}

func (s *Store) hydrate(ctx context.Context) {
	if s.storage == nil {
		return
	}
	payload, err := s.storage.Load(ctx, s.opts.StorageKey)
	if err != nil {
		if err != ErrNotFound && s.logg != nil {
			s.logg.Warn(ctx, "cart storage unreadable, starting empty")
		}
		return
	}
	state, ok := DecodeEnvelope(payload)
	if !ok {
		if s.logg != nil {
			s.logg.Warn(ctx, "cart envelope corrupt, starting empty")
		}
		return
	}
	s.mu.Lock()
	s.items = cloneItems(state.Items)
	s.lastSync = state.LastSyncTimestamp
	s.mu.Unlock()
}

// Close drops the broadcast subscription. The store keeps working as a
// single-context store afterwards.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// OnChange registers a listener invoked with a state snapshot after every
// applied change, local or remote. Listeners run on their own goroutine.
func (s *Store) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// AddItem inserts a line item or, when the product is already present,
// increments its quantity, clamped to the available ceiling. Missing optional
// fields are stored as provided; a missing quantity defaults to 1.
func (s *Store) AddItem(ctx context.Context, input ItemInput) {
	if input.ProductID == "" {
		if s.logg != nil {
			s.logg.Warn(ctx, "cart add ignored: product id missing")
		}
		return
	}

	qty := input.Quantity
	if qty <= 0 {
		qty = 1
	}

	s.mu.Lock()
	if idx := s.indexOfLocked(input.ProductID); idx >= 0 {
		existing := s.items[idx]
		if next := clampQuantity(existing.Quantity+qty, existing.AvailableQuantity); next >= 1 {
			s.items[idx].Quantity = next
		}
	} else {
		item := LineItem{
			ID:                uuid.NewString(),
			ProductID:         input.ProductID,
			Title:             input.Title,
			Price:             input.Price,
			ImageURL:          input.ImageURL,
			SellerID:          input.SellerID,
			SellerName:        input.SellerName,
			Condition:         input.Condition,
			Size:              input.Size,
			Color:             input.Color,
			Quantity:          clampQuantity(qty, input.AvailableQuantity),
			AvailableQuantity: input.AvailableQuantity,
		}
		if item.Quantity >= 1 {
			s.items = append(s.items, item)
		}
	}
	snap := s.commitLocked(ctx)
	s.mu.Unlock()
	s.notify(snap)
}

// RemoveItem deletes the line item for the product. Absent products are
// ignored without side effects.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mu.Lock()
	idx := s.indexOfLocked(productID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	snap := s.commitLocked(ctx)
	s.mu.Unlock()
	s.notify(snap)
}

// UpdateQuantity sets the product's quantity, clamped to [1, available].
// A target of zero or below removes the line item; absent products are
// ignored without side effects.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.mu.Lock()
	idx := s.indexOfLocked(productID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	if quantity <= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	} else {
		next := clampQuantity(quantity, s.items[idx].AvailableQuantity)
		if next < 1 {
			next = 1
		}
		s.items[idx].Quantity = next
	}
	snap := s.commitLocked(ctx)
	s.mu.Unlock()
	s.notify(snap)
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.items = []LineItem{}
	snap := s.commitLocked(ctx)
	s.mu.Unlock()
	s.notify(snap)
}

// ToggleCart flips the UI visibility flag. UI-local: no clock bump, no
// persistence, no broadcast.
func (s *Store) ToggleCart() {
	s.mu.Lock()
	s.isOpen = !s.isOpen
	snap := s.stateLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) OpenCart() {
	s.mu.Lock()
	s.isOpen = true
	snap := s.stateLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) CloseCart() {
	s.mu.Lock()
	s.isOpen = false
	snap := s.stateLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// IsOpen reports the UI visibility flag.
func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOpen
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

// State returns a snapshot of items and clock.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// LastSyncTimestamp returns the current logical clock value.
func (s *Store) LastSyncTimestamp() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// TotalItems sums quantities across all line items.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums price times quantity across all line items, exactly.
func (s *Store) TotalPrice() Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := Money{}
	for _, item := range s.items {
		line := item.Price.Mul(decimalFromInt(item.Quantity))
		total = Money{Decimal: total.Add(line)}
	}
	return total
}

// Item returns the line item for the product, if present.
func (s *Store) Item(productID string) (LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOfLocked(productID); idx >= 0 {
		return s.items[idx], true
	}
	return LineItem{}, false
}

// IsInCart reports whether the product has a line item.
func (s *Store) IsInCart(productID string) bool {
	_, ok := s.Item(productID)
	return ok
}

// ItemCount returns the product's quantity, zero when absent.
func (s *Store) ItemCount(productID string) int {
	item, ok := s.Item(productID)
	if !ok {
		return 0
	}
	return item.Quantity
}

// handleMessage merges an inbound broadcast. Strictly newer snapshots replace
// local state and are persisted; stale or equal ones are dropped and nothing
// is re-broadcast, which also absorbs our own echoes.
func (s *Store) handleMessage(msg Message) {
	if msg.Type != MessageTypeCartUpdated {
		return
	}
	ctx := context.Background()

	s.mu.Lock()
	if msg.Timestamp <= s.lastSync {
		s.mu.Unlock()
		if s.mtr != nil {
			s.mtr.IncBroadcast(s.opts.StorageKey, "stale")
		}
		return
	}
	s.items = cloneItems(msg.Items)
	s.lastSync = msg.Timestamp
	snap := s.stateLocked()
	s.persistLocked(ctx, snap)
	s.mu.Unlock()

	if s.mtr != nil {
		s.mtr.IncBroadcast(s.opts.StorageKey, "adopted")
	}
	s.notify(snap)
}

// commitLocked bumps the clock and runs the persistence and broadcast side
// effects, persist first. Failures are aggregated and logged, never returned.
func (s *Store) commitLocked(ctx context.Context) State {
	s.bumpClockLocked()
	snap := s.stateLocked()

	var errs error
	if err := s.persistLocked(ctx, snap); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.publishLocked(ctx, snap); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil && s.logg != nil {
		s.logg.Error(ctx, "cart side effects failed", errs)
	}
	return snap
}

func (s *Store) persistLocked(ctx context.Context, snap State) error {
	if s.storage == nil {
		return nil
	}
	payload, err := EncodeEnvelope(snap)
	if err != nil {
		return err
	}
	return s.storage.Save(ctx, s.opts.StorageKey, payload)
}

func (s *Store) publishLocked(ctx context.Context, snap State) error {
	if s.broadcaster == nil || s.opts.DisableBroadcast {
		return nil
	}
	err := s.broadcaster.Publish(ctx, Message{
		Type:      MessageTypeCartUpdated,
		Items:     snap.Items,
		Timestamp: snap.LastSyncTimestamp,
	})
	if err == nil && s.mtr != nil {
		s.mtr.IncBroadcast(s.opts.StorageKey, "published")
	}
	return err
}

// bumpClockLocked advances the logical clock to now, or one past the held
// value when the wall clock has not moved, so local mutations always win a
// strict comparison against the state they replaced.
func (s *Store) bumpClockLocked() {
	now := s.opts.Clock()
	if now <= s.lastSync {
		now = s.lastSync + 1
	}
	s.lastSync = now
}

func (s *Store) stateLocked() State {
	return State{Items: cloneItems(s.items), LastSyncTimestamp: s.lastSync}
}

func (s *Store) indexOfLocked(productID string) int {
	for i, item := range s.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) notify(snap State) {
	s.mu.RLock()
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		go fn(snap)
	}
}
