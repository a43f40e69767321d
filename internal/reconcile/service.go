package reconcile

import (
	"context"
	"fmt"

	"github.com/mercatolabs/cartsync/internal/cart"
	pkgerrors "github.com/mercatolabs/cartsync/pkg/errors"
	"github.com/mercatolabs/cartsync/pkg/logger"
)

// Service holds the authoritative copy of each cart and resolves submitted
// snapshots against it with the same last-writer-wins logical clock the
// client stores use.
type Service interface {
	Reconcile(ctx context.Context, cartID string, incoming cart.SyncPayload) (cart.SyncPayload, error)
	Get(ctx context.Context, cartID string) (cart.SyncPayload, error)
}

type service struct {
	storage cart.Storage
	logg    *logger.Logger
}

// NewService builds a reconcile service over the provided envelope storage.
func NewService(storage cart.Storage, logg *logger.Logger) (Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("cart storage required")
	}
	return &service{storage: storage, logg: logg}, nil
}

// Reconcile merges the submitted snapshot into the stored cart. A strictly
// newer submission replaces the stored copy; otherwise the stored copy stands.
// Either way the authoritative snapshot is returned. Submitted items are
// sanitized first so a misbehaving client cannot park duplicate rows or
// out-of-range quantities server-side.
func (s *service) Reconcile(ctx context.Context, cartID string, incoming cart.SyncPayload) (cart.SyncPayload, error) {
	if cartID == "" {
		return cart.SyncPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}

	stored := s.loadState(ctx, cartID)

	if incoming.Timestamp > stored.LastSyncTimestamp {
		stored = cart.State{
			Items:             cart.SanitizeItems(incoming.Items),
			LastSyncTimestamp: incoming.Timestamp,
		}
		payload, err := cart.EncodeEnvelope(stored)
		if err != nil {
			return cart.SyncPayload{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart envelope")
		}
		if err := s.storage.Save(ctx, cartID, payload); err != nil {
			return cart.SyncPayload{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting cart envelope")
		}
	}

	return cart.SyncPayload{Items: stored.Items, Timestamp: stored.LastSyncTimestamp}, nil
}

// Get returns the stored authoritative snapshot; unknown carts come back
// empty with a zero clock, mirroring client hydration.
func (s *service) Get(ctx context.Context, cartID string) (cart.SyncPayload, error) {
	if cartID == "" {
		return cart.SyncPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	state := s.loadState(ctx, cartID)
	return cart.SyncPayload{Items: state.Items, Timestamp: state.LastSyncTimestamp}, nil
}

func (s *service) loadState(ctx context.Context, cartID string) cart.State {
	payload, err := s.storage.Load(ctx, cartID)
	if err != nil {
		if err != cart.ErrNotFound && s.logg != nil {
			s.logg.Warn(s.logg.WithCartID(ctx, cartID), "stored cart unreadable, treating as empty")
		}
		return cart.State{Items: []cart.LineItem{}}
	}
	state, ok := cart.DecodeEnvelope(payload)
	if !ok && s.logg != nil {
		s.logg.Warn(s.logg.WithCartID(ctx, cartID), "stored cart envelope corrupt, treating as empty")
	}
	return state
}
