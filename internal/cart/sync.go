package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultSyncInterval paces EnableAutoSync when no interval is supplied.
const DefaultSyncInterval = 30 * time.Second

// SyncResult is the resolved outcome of one server sync. Failures land in Err
// instead of being returned as an error: a failed sync leaves local state
// untouched and is not an exceptional condition for callers.
type SyncResult struct {
	// OK reports that the round trip completed and the response parsed.
	OK bool
	// Adopted reports that the server's copy replaced local state.
	Adopted bool
	// Err carries the cause when OK is false.
	Err error
}

// SyncWithServer posts the current snapshot to the configured endpoint and
// merges the authoritative response through the same logical-clock rule used
// for broadcasts. Network errors, non-2xx statuses and malformed bodies all
// leave local state untouched.
func (s *Store) SyncWithServer(ctx context.Context) SyncResult {
	snap := s.State()
	start := time.Now()

	body, err := json.Marshal(SyncPayload{Items: snap.Items, Timestamp: snap.LastSyncTimestamp})
	if err != nil {
		return s.syncFailed(ctx, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.syncURL(), bytes.NewReader(body))
	if err != nil {
		return s.syncFailed(ctx, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return s.syncFailed(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return s.syncFailed(ctx, fmt.Errorf("cart sync: unexpected status %d", resp.StatusCode))
	}

	var payload SyncPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return s.syncFailed(ctx, fmt.Errorf("cart sync: decoding response: %w", err))
	}

	adopted := s.adoptServer(ctx, payload)

	if s.mtr != nil {
		s.mtr.IncSyncSuccess(s.opts.StorageKey)
		s.mtr.ObserveSyncDuration(s.opts.StorageKey, time.Since(start))
	}
	return SyncResult{OK: true, Adopted: adopted}
}

// adoptServer applies a strictly newer server snapshot, persisting and
// re-broadcasting it so peers converge without their own round trip.
func (s *Store) adoptServer(ctx context.Context, payload SyncPayload) bool {
	s.mu.Lock()
	if payload.Timestamp <= s.lastSync {
		s.mu.Unlock()
		return false
	}
	s.items = cloneItems(payload.Items)
	s.lastSync = payload.Timestamp
	snap := s.stateLocked()
	s.persistLocked(ctx, snap)
	s.publishLocked(ctx, snap)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Store) syncFailed(ctx context.Context, err error) SyncResult {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "cart sync failed, keeping local state")
	}
	if s.mtr != nil {
		s.mtr.IncSyncFailure(s.opts.StorageKey)
	}
	return SyncResult{Err: err}
}

// EnableAutoSync starts a ticker that calls SyncWithServer until the returned
// cancel runs or ctx is done. The cancel is idempotent and safe to call after
// the loop has already stopped.
func (s *Store) EnableAutoSync(ctx context.Context, interval time.Duration) func() {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(stop) })
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SyncWithServer(ctx)
			}
		}
	}()

	return cancel
}
