package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercatolabs/cartsync/api/responses"
	"github.com/mercatolabs/cartsync/api/validators"
	cartsvc "github.com/mercatolabs/cartsync/internal/cart"
	"github.com/mercatolabs/cartsync/internal/reconcile"
	pkgerrors "github.com/mercatolabs/cartsync/pkg/errors"
	"github.com/mercatolabs/cartsync/pkg/logger"
)

// Sync reconciles a submitted cart snapshot against the authoritative copy
// and answers with the winner. The body is the bare sync contract, not the
// enveloped API shape, because client stores parse it directly.
func Sync(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var payload SyncRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cartID := cartIDFromRequest(r)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartID(ctx, cartID)
		}

		merged, err := svc.Reconcile(ctx, cartID, cartsvc.SyncPayload{
			Items:     payload.Items,
			Timestamp: payload.Timestamp,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, merged)
	}
}

// Fetch returns the stored authoritative snapshot for a cart.
func Fetch(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		cartID := chi.URLParam(r, "cartID")
		snapshot, err := svc.Get(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}

// cartIDFromRequest resolves which cart a sync targets. The sync path is a
// fixed default for clients, so the cart identity rides in a query parameter
// and falls back to the shared default key.
func cartIDFromRequest(r *http.Request) string {
	if id := r.URL.Query().Get("cart_id"); id != "" {
		return id
	}
	return cartsvc.DefaultStorageKey
}
