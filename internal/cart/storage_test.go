package cart

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	state := State{
		Items: []LineItem{
			{ID: "li-1", ProductID: "p1", Price: MustMoney("799.99"), Quantity: 2, AvailableQuantity: intPtr(5)},
			{ID: "li-2", ProductID: "p2", Price: MustMoney("129.99"), Quantity: 1},
		},
		LastSyncTimestamp: 1234,
	}

	payload, err := EncodeEnvelope(state)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, ok := DecodeEnvelope(payload)
	if !ok {
		t.Fatalf("expected valid envelope")
	}
	if decoded.LastSyncTimestamp != 1234 {
		t.Fatalf("timestamp mismatch: %d", decoded.LastSyncTimestamp)
	}
	if len(decoded.Items) != 2 {
		t.Fatalf("item count mismatch: %d", len(decoded.Items))
	}
	if !decoded.Items[0].Price.Equal(MustMoney("799.99").Decimal) {
		t.Fatalf("price did not survive the round trip: %s", decoded.Items[0].Price)
	}
	if decoded.Items[0].AvailableQuantity == nil || *decoded.Items[0].AvailableQuantity != 5 {
		t.Fatalf("available quantity did not survive the round trip")
	}
}

func TestDecodeEnvelopeDegradesToEmpty(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"not json":      "{oops",
		"wrong shape":   `{"foo":"bar"}`,
		"wrong version": `{"state":{"items":[],"lastSyncTimestamp":9},"version":99}`,
	}
	for name, payload := range cases {
		state, ok := DecodeEnvelope(payload)
		if ok {
			t.Fatalf("%s: expected degraded decode", name)
		}
		if len(state.Items) != 0 || state.LastSyncTimestamp != 0 {
			t.Fatalf("%s: expected empty state, got %+v", name, state)
		}
	}
}

func TestEnvelopePriceSerializesAsNumber(t *testing.T) {
	payload, err := EncodeEnvelope(State{
		Items: []LineItem{{ID: "li", ProductID: "p1", Price: MustMoney("799.99"), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if want := `"price":799.99`; !strings.Contains(payload, want) {
		t.Fatalf("expected %s in payload %s", want, payload)
	}
}

func TestMemoryStorageMissingKey(t *testing.T) {
	storage := NewMemoryStorage()
	if _, err := storage.Load(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeKV struct {
	data map[string]string
	err  error
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	payload, ok := f.data[key]
	if !ok {
		return "", errStorageDown
	}
	return payload, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value.(string)
	return nil
}

func (f *fakeKV) CartKey(storageKey string) string {
	return "cs:cart:" + storageKey
}

func TestRedisStorageUsesNamespacedKey(t *testing.T) {
	kv := &fakeKV{data: map[string]string{}}
	storage := &RedisStorage{kv: kv}

	if err := storage.Save(context.Background(), "session-1", "payload"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, ok := kv.data["cs:cart:session-1"]; !ok {
		t.Fatalf("expected namespaced key, got %v", kv.data)
	}

	payload, err := storage.Load(context.Background(), "session-1")
	if err != nil || payload != "payload" {
		t.Fatalf("load mismatch: %q %v", payload, err)
	}
}
