package cart

import (
	cartsvc "github.com/mercatolabs/cartsync/internal/cart"
)

// SyncRequest is the wire body of POST /api/cart/sync.
type SyncRequest struct {
	Items     []cartsvc.LineItem `json:"items"`
	Timestamp int64              `json:"timestamp" validate:"gte=0"`
}
