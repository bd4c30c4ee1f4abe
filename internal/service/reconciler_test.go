package service

import (
	"context"
	"errors"
	"testing"

	"ecommerce-service/internal/gateway"
	"ecommerce-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconcileStore struct {
	orders        map[int64]*models.Order
	clearedCarts  []int64
	processed     map[string]string
	markPaidCalls int
	deleteCalls   int
}

func newFakeReconcileStore(orders ...*models.Order) *fakeReconcileStore {
	m := map[int64]*models.Order{}
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeReconcileStore{orders: m, processed: map[string]string{}}
}

func (f *fakeReconcileStore) MarkOrderPaid(ctx context.Context, orderID int64) error {
	f.markPaidCalls++
	if o, ok := f.orders[orderID]; ok {
		o.IsPaid = true
	}
	// Missing order is a benign no-op, matching the UPDATE semantics
	return nil
}

func (f *fakeReconcileStore) DeleteOrder(ctx context.Context, orderID int64) error {
	f.deleteCalls++
	delete(f.orders, orderID)
	return nil
}

func (f *fakeReconcileStore) ClearUserCart(ctx context.Context, userID int64) error {
	f.clearedCarts = append(f.clearedCarts, userID)
	return nil
}

func (f *fakeReconcileStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeReconcileStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.processed[eventID] = eventType
	return nil
}

func singleSessionGateway(event *gateway.Event, metadata map[string]string) *fakeGateway {
	return &fakeGateway{
		constructEventFunc: func(payload []byte, sigHeader string) (*gateway.Event, error) {
			return event, nil
		},
		sessionsFunc: func(ctx context.Context, paymentIntentID string) ([]gateway.Session, error) {
			return []gateway.Session{{ID: "cs_1", Metadata: metadata}}, nil
		},
	}
}

func TestHandleEvent_PaymentSucceeded(t *testing.T) {
	store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7, PaymentType: models.PaymentTypeOnline})
	publisher := &fakePublisher{}
	gw := singleSessionGateway(
		&gateway.Event{ID: "evt_1", Type: gateway.EventPaymentSucceeded, PaymentIntentID: "pi_1"},
		map[string]string{"order_id": "10", "user_id": "7"},
	)

	rs := NewReconciliationService(store, gw, publisher)

	err := rs.HandleEvent(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)

	assert.True(t, store.orders[10].IsPaid)
	assert.Equal(t, []int64{7}, store.clearedCarts)
	require.Len(t, publisher.paid, 1)
	assert.Equal(t, int64(10), publisher.paid[0].OrderID)
}

func TestHandleEvent_PaymentSucceededRedelivered(t *testing.T) {
	store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7, PaymentType: models.PaymentTypeOnline})
	publisher := &fakePublisher{}
	gw := singleSessionGateway(
		&gateway.Event{ID: "evt_1", Type: gateway.EventPaymentSucceeded, PaymentIntentID: "pi_1"},
		map[string]string{"order_id": "10", "user_id": "7"},
	)

	rs := NewReconciliationService(store, gw, publisher)

	require.NoError(t, rs.HandleEvent(context.Background(), []byte(`{}`), "sig"))
	require.NoError(t, rs.HandleEvent(context.Background(), []byte(`{}`), "sig"))

	// Same observable state, only one effective change
	assert.True(t, store.orders[10].IsPaid)
	assert.Equal(t, 1, store.markPaidCalls)
	assert.Len(t, publisher.paid, 1)
}

func TestHandleEvent_PaymentFailedRemovesOrder(t *testing.T) {
	store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7, PaymentType: models.PaymentTypeOnline})
	publisher := &fakePublisher{}
	gw := singleSessionGateway(
		&gateway.Event{ID: "evt_2", Type: gateway.EventPaymentFailed, PaymentIntentID: "pi_1"},
		map[string]string{"order_id": "10", "user_id": "7"},
	)

	rs := NewReconciliationService(store, gw, publisher)

	require.NoError(t, rs.HandleEvent(context.Background(), []byte(`{}`), "sig"))

	assert.NotContains(t, store.orders, int64(10))
	assert.Empty(t, store.clearedCarts)
	require.Len(t, publisher.cancelled, 1)
	assert.Equal(t, "payment_failed", publisher.cancelled[0].Reason)
}

func TestHandleEvent_SucceededAfterRemovalIsBenign(t *testing.T) {
	store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7, PaymentType: models.PaymentTypeOnline})
	publisher := &fakePublisher{}
	metadata := map[string]string{"order_id": "10", "user_id": "7"}

	failed := singleSessionGateway(
		&gateway.Event{ID: "evt_fail", Type: gateway.EventPaymentFailed, PaymentIntentID: "pi_1"},
		metadata,
	)
	require.NoError(t, NewReconciliationService(store, failed, publisher).
		HandleEvent(context.Background(), []byte(`{}`), "sig"))

	// A late duplicate success for the removed order acknowledges cleanly
	succeeded := singleSessionGateway(
		&gateway.Event{ID: "evt_late", Type: gateway.EventPaymentSucceeded, PaymentIntentID: "pi_1"},
		metadata,
	)
	err := NewReconciliationService(store, succeeded, publisher).
		HandleEvent(context.Background(), []byte(`{}`), "sig")

	require.NoError(t, err)
	assert.NotContains(t, store.orders, int64(10))
}

func TestHandleEvent_InvalidSignature(t *testing.T) {
	store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7, PaymentType: models.PaymentTypeOnline})
	gw := &fakeGateway{
		constructEventFunc: func(payload []byte, sigHeader string) (*gateway.Event, error) {
			return nil, errors.New("signature mismatch")
		},
	}

	rs := NewReconciliationService(store, gw, &fakePublisher{})

	err := rs.HandleEvent(context.Background(), []byte(`{}`), "bad-sig")
	assert.ErrorIs(t, err, models.ErrSignatureVerification)

	// No state mutation of any kind
	assert.False(t, store.orders[10].IsPaid)
	assert.Equal(t, 0, store.markPaidCalls)
	assert.Equal(t, 0, store.deleteCalls)
	assert.Empty(t, store.processed)
}

func TestHandleEvent_UnhandledTypeAcknowledged(t *testing.T) {
	store := newFakeReconcileStore()
	resolutionCalled := false
	gw := &fakeGateway{
		constructEventFunc: func(payload []byte, sigHeader string) (*gateway.Event, error) {
			return &gateway.Event{ID: "evt_3", Type: "charge.refunded", PaymentIntentID: "pi_1"}, nil
		},
		sessionsFunc: func(ctx context.Context, paymentIntentID string) ([]gateway.Session, error) {
			resolutionCalled = true
			return nil, nil
		},
	}

	rs := NewReconciliationService(store, gw, &fakePublisher{})

	err := rs.HandleEvent(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.False(t, resolutionCalled, "unhandled types skip session resolution")
}

func TestHandleEvent_SessionResolutionFailure(t *testing.T) {
	tests := []struct {
		name     string
		sessions []gateway.Session
	}{
		{name: "zero_sessions", sessions: nil},
		{name: "multiple_sessions", sessions: []gateway.Session{
			{ID: "cs_1", Metadata: map[string]string{"order_id": "10", "user_id": "7"}},
			{ID: "cs_2", Metadata: map[string]string{"order_id": "11", "user_id": "7"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7})
			gw := &fakeGateway{
				constructEventFunc: func(payload []byte, sigHeader string) (*gateway.Event, error) {
					return &gateway.Event{ID: "evt_4", Type: gateway.EventPaymentSucceeded, PaymentIntentID: "pi_1"}, nil
				},
				sessionsFunc: func(ctx context.Context, paymentIntentID string) ([]gateway.Session, error) {
					return tt.sessions, nil
				},
			}

			rs := NewReconciliationService(store, gw, &fakePublisher{})

			err := rs.HandleEvent(context.Background(), []byte(`{}`), "sig")
			assert.ErrorIs(t, err, models.ErrSessionResolution)
			assert.False(t, store.orders[10].IsPaid)
		})
	}
}

func TestHandleEvent_BadMetadata(t *testing.T) {
	store := newFakeReconcileStore(&models.Order{ID: 10, UserID: 7})
	gw := singleSessionGateway(
		&gateway.Event{ID: "evt_5", Type: gateway.EventPaymentSucceeded, PaymentIntentID: "pi_1"},
		map[string]string{"order_id": "not-a-number", "user_id": "7"},
	)

	rs := NewReconciliationService(store, gw, &fakePublisher{})

	err := rs.HandleEvent(context.Background(), []byte(`{}`), "sig")
	assert.ErrorIs(t, err, models.ErrSessionResolution)
}
