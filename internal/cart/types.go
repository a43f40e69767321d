package cart

import (
	"github.com/shopspring/decimal"
)

const (
	// DefaultStorageKey is the envelope key used when no override is configured.
	DefaultStorageKey = "marketplace-cart"
	// DefaultAPIEndpoint is the server sync path used when no override is configured.
	DefaultAPIEndpoint = "/api/cart/sync"

	// MessageTypeCartUpdated tags broadcast payloads carrying a full cart snapshot.
	MessageTypeCartUpdated = "CART_UPDATED"

	envelopeVersion = 1
)

// Money is an exact decimal amount that serializes as a bare JSON number, so
// line totals survive the wire without binary-float drift.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal amount such as "799.99".
func NewMoney(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// MustMoney is NewMoney that panics on malformed input. Intended for tests and
// static fixtures.
func MustMoney(value string) Money {
	m, err := NewMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// LineItem is one row in a cart: a single product and its quantity. The
// descriptive attributes are snapshots taken at add time and are not refreshed
// if the catalog changes afterwards.
type LineItem struct {
	ID                string `json:"id"`
	ProductID         string `json:"productId"`
	Title             string `json:"title,omitempty"`
	Price             Money  `json:"price"`
	ImageURL          string `json:"imageUrl,omitempty"`
	SellerID          string `json:"sellerId,omitempty"`
	SellerName        string `json:"sellerName,omitempty"`
	Condition         string `json:"condition,omitempty"`
	Size              string `json:"size,omitempty"`
	Color             string `json:"color,omitempty"`
	Quantity          int    `json:"quantity"`
	AvailableQuantity *int   `json:"availableQuantity,omitempty"`
}

// ItemInput is the boundary payload accepted by AddItem. Optional descriptive
// fields may be absent; defaulting happens at the boundary, after which every
// stored LineItem is fully formed.
type ItemInput struct {
	ProductID         string `json:"productId"`
	Title             string `json:"title,omitempty"`
	Price             Money  `json:"price"`
	ImageURL          string `json:"imageUrl,omitempty"`
	SellerID          string `json:"sellerId,omitempty"`
	SellerName        string `json:"sellerName,omitempty"`
	Condition         string `json:"condition,omitempty"`
	Size              string `json:"size,omitempty"`
	Color             string `json:"color,omitempty"`
	Quantity          int    `json:"quantity,omitempty"`
	AvailableQuantity *int   `json:"availableQuantity,omitempty"`
}

// State is the aggregate persisted and broadcast for a cart. LastSyncTimestamp
// is the logical clock: every item mutation bumps it and it is the sole
// arbiter when merging concurrent copies.
type State struct {
	Items             []LineItem `json:"items"`
	LastSyncTimestamp int64      `json:"lastSyncTimestamp"`
}

// Envelope is the versioned wrapper written to storage.
type Envelope struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// Message is the payload published to peers after a qualifying mutation.
type Message struct {
	Type      string     `json:"type"`
	Items     []LineItem `json:"items"`
	Timestamp int64      `json:"timestamp"`
}

// SyncPayload is the request and response body of the server sync contract.
type SyncPayload struct {
	Items     []LineItem `json:"items"`
	Timestamp int64      `json:"timestamp"`
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// clampQuantity pins qty into [1, available]; available nil means unbounded
// above. A result of 0 signals the line item should not exist.
func clampQuantity(qty int, available *int) int {
	if available != nil && qty > *available {
		qty = *available
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// SanitizeItems enforces the cart invariants on an untrusted item list:
// duplicates collapse onto the first occurrence (quantities summed), every
// quantity is clamped to its ceiling, and non-positive rows are dropped.
// Insertion order of first occurrences is preserved.
func SanitizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if at, ok := index[item.ProductID]; ok {
			merged := out[at]
			merged.Quantity = clampQuantity(merged.Quantity+item.Quantity, merged.AvailableQuantity)
			if merged.Quantity < 1 {
				continue
			}
			out[at] = merged
			continue
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		item.Quantity = clampQuantity(qty, item.AvailableQuantity)
		if item.Quantity < 1 {
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}
