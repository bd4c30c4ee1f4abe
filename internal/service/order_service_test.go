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

type fakeOrderStore struct {
	orders    []*models.Order
	items     []*models.OrderItem
	addresses map[int64]models.Address
	nextID    int64
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.nextID++
	order.ID = f.nextID
	saved := *order
	f.orders = append(f.orders, &saved)
	return nil
}

func (f *fakeOrderStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	saved := *item
	f.items = append(f.items, &saved)
	return nil
}

func (f *fakeOrderStore) ListPlacedOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID && (o.PaymentType == models.PaymentTypeCOD || o.IsPaid) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListPlacedOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.PaymentType == models.PaymentTypeCOD || o.IsPaid {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetOrderItemViews(ctx context.Context, orderID int64) ([]models.OrderItemView, error) {
	return nil, nil
}

func (f *fakeOrderStore) GetAddressByID(ctx context.Context, id int64) (*models.Address, error) {
	if a, ok := f.addresses[id]; ok {
		return &a, nil
	}
	return &models.Address{ID: id}, nil
}

type fakeGateway struct {
	createSessionFunc  func(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error)
	constructEventFunc func(payload []byte, sigHeader string) (*gateway.Event, error)
	sessionsFunc       func(ctx context.Context, paymentIntentID string) ([]gateway.Session, error)
}

func (f *fakeGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	if f.createSessionFunc == nil {
		return &gateway.Session{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
	}
	return f.createSessionFunc(ctx, req)
}

func (f *fakeGateway) ConstructEvent(payload []byte, sigHeader string) (*gateway.Event, error) {
	return f.constructEventFunc(payload, sigHeader)
}

func (f *fakeGateway) SessionsByPaymentIntent(ctx context.Context, paymentIntentID string) ([]gateway.Session, error) {
	return f.sessionsFunc(ctx, paymentIntentID)
}

type fakePublisher struct {
	placed    []*models.OrderPlacedEvent
	paid      []*models.OrderPaidEvent
	cancelled []*models.OrderCancelledEvent
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	f.placed = append(f.placed, e)
	return nil
}

func (f *fakePublisher) PublishOrderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	f.paid = append(f.paid, e)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func newTestOrderService(products map[int64]models.Product, gw *fakeGateway) (*OrderService, *fakeOrderStore, *fakePublisher) {
	store := &fakeOrderStore{}
	publisher := &fakePublisher{}
	pricing, _, _ := newTestPricing(products)
	svc := NewOrderService(store, pricing, gw, publisher, "/loader?next=my-orders", "/cart")
	return svc, store, publisher
}

func TestPlaceCOD(t *testing.T) {
	svc, store, publisher := newTestOrderService(map[int64]models.Product{
		1: {ID: 1, Name: "Widget", Price: 100},
		2: {ID: 2, Name: "Gadget", Price: 250},
	}, &fakeGateway{})

	order, err := svc.PlaceCOD(context.Background(), 7, &PlaceOrderRequest{
		Items: []OrderItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		AddressID: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(459), order.Amount)
	assert.Equal(t, models.PaymentTypeCOD, order.PaymentType)
	require.Len(t, store.orders, 1)
	assert.Len(t, store.items, 2)
	require.Len(t, publisher.placed, 1)
	assert.Equal(t, models.PaymentTypeCOD, publisher.placed[0].PaymentType)
}

func TestPlaceCOD_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  *PlaceOrderRequest
	}{
		{name: "no_items", req: &PlaceOrderRequest{AddressID: 3}},
		{name: "no_address", req: &PlaceOrderRequest{
			Items: []OrderItemRequest{{ProductID: 1, Quantity: 1}},
		}},
		{name: "zero_quantity", req: &PlaceOrderRequest{
			Items:     []OrderItemRequest{{ProductID: 1, Quantity: 0}},
			AddressID: 3,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestOrderService(map[int64]models.Product{
				1: {ID: 1, Price: 100},
			}, &fakeGateway{})

			_, err := svc.PlaceCOD(context.Background(), 7, tt.req)
			assert.ErrorIs(t, err, models.ErrInvalidOrder)
			assert.Empty(t, store.orders, "no partial writes on invalid input")
		})
	}
}

func TestPlaceCOD_UnknownProductCreatesNothing(t *testing.T) {
	svc, store, publisher := newTestOrderService(map[int64]models.Product{
		1: {ID: 1, Price: 100},
	}, &fakeGateway{})

	_, err := svc.PlaceCOD(context.Background(), 7, &PlaceOrderRequest{
		Items:     []OrderItemRequest{{ProductID: 99, Quantity: 1}},
		AddressID: 3,
	})

	assert.ErrorIs(t, err, models.ErrProductNotFound)
	assert.Empty(t, store.orders)
	assert.Empty(t, publisher.placed)
}

func TestPlaceOnline(t *testing.T) {
	var sessionReq gateway.SessionRequest
	var ordersAtSessionCreation int
	var store *fakeOrderStore

	gw := &fakeGateway{
		createSessionFunc: func(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
			sessionReq = req
			ordersAtSessionCreation = len(store.orders)
			return &gateway.Session{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		},
	}

	svc, st, _ := newTestOrderService(map[int64]models.Product{
		1: {ID: 1, Name: "Widget", Price: 100},
	}, gw)
	store = st

	url, err := svc.PlaceOnline(context.Background(), 7, &PlaceOrderRequest{
		Items:     []OrderItemRequest{{ProductID: 1, Quantity: 2}},
		AddressID: 3,
	}, "https://shop.example")
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.example/cs_1", url)

	// The pending row exists before the session is requested
	assert.Equal(t, 1, ordersAtSessionCreation)
	require.Len(t, store.orders, 1)
	assert.Equal(t, models.PaymentTypeOnline, store.orders[0].PaymentType)
	assert.False(t, store.orders[0].IsPaid)

	require.Len(t, sessionReq.LineItems, 1)
	assert.Equal(t, int64(102), sessionReq.LineItems[0].UnitAmount, "unit amount embeds tax")
	assert.Equal(t, int64(2), sessionReq.LineItems[0].Quantity)
	assert.Equal(t, "https://shop.example/loader?next=my-orders&order=1", sessionReq.SuccessURL)
	assert.Equal(t, "https://shop.example/cart", sessionReq.CancelURL)
	assert.Equal(t, "1", sessionReq.Metadata["order_id"])
	assert.Equal(t, "7", sessionReq.Metadata["user_id"])
}

func TestPlaceOnline_SessionFailureLeavesPendingOrder(t *testing.T) {
	gw := &fakeGateway{
		createSessionFunc: func(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
			return nil, errors.New("gateway unavailable")
		},
	}

	svc, store, _ := newTestOrderService(map[int64]models.Product{
		1: {ID: 1, Price: 100},
	}, gw)

	_, err := svc.PlaceOnline(context.Background(), 7, &PlaceOrderRequest{
		Items:     []OrderItemRequest{{ProductID: 1, Quantity: 1}},
		AddressID: 3,
	}, "https://shop.example")

	assert.Error(t, err)

	// No rollback: the webhook path is the system of record for resolving
	// this ambiguity.
	require.Len(t, store.orders, 1)
	assert.False(t, store.orders[0].IsPaid)
}

func TestListUserOrders_ExcludesUnpaidOnline(t *testing.T) {
	svc, store, _ := newTestOrderService(map[int64]models.Product{
		1: {ID: 1, Price: 100},
	}, &fakeGateway{})

	ctx := context.Background()
	req := &PlaceOrderRequest{
		Items:     []OrderItemRequest{{ProductID: 1, Quantity: 1}},
		AddressID: 3,
	}

	_, err := svc.PlaceCOD(ctx, 7, req)
	require.NoError(t, err)
	_, err = svc.PlaceOnline(ctx, 7, req, "https://shop.example")
	require.NoError(t, err)

	orders, err := svc.ListUserOrders(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.PaymentTypeCOD, orders[0].PaymentType)

	// Once paid, the online order appears
	store.orders[1].IsPaid = true
	orders, err = svc.ListUserOrders(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
