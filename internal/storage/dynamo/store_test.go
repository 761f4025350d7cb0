package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/notify"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

const (
	ordersTable        = "orders"
	productsTable      = "products"
	couponsTable       = "coupons"
	notificationsTable = "notifications"
)

func newTestTables() *mockDynamo {
	m := newMockDynamo()
	m.createTable(ordersTable, "order_id")
	m.createTable(productsTable, "product_id")
	m.createTable(couponsTable, "code")
	m.createTable(notificationsTable, "user_id", "notification_id")
	return m
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fullOrder(id, user string, created time.Time) orders.Order {
	override := dec("2.5")
	return orders.Order{
		ID:        id,
		UserID:    user,
		CreatedAt: created,
		UpdatedAt: created,
		Items: []orders.LineItem{{
			Line: cart.Line{
				ProductID:    "p1",
				Title:        "Poster",
				Price:        dec("19.99"),
				Quantity:     3,
				ShippingCost: &override,
				Variants:     map[string]string{"size": "A2"},
				CustomFields: map[string]string{"dedication": "for Sam"},
			},
			Fulfillment: &orders.Fulfillment{ProofImageURL: "https://cdn/p.png", UpdatedAt: created},
		}},
		Subtotal:     dec("59.97"),
		ShippingCost: dec("7.5"),
		Tax:          dec("4.95"),
		Discount:     dec("5"),
		Total:        dec("67.42"),
		CouponCode:   "SAVE5",
		Status:       orders.StatusPending,
		StatusHistory: []orders.HistoryEntry{{
			ID: "h1", Status: orders.StatusPending, Timestamp: created, Note: "Order placed",
		}},
		ShippingAddress: &orders.Address{Name: "Sam", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		PaymentMethod:   "card",
		StockApplied:    true,
		StockTaken:      []inventory.Line{{ProductID: "p1", Quantity: 3}},
		Version:         1,
	}
}

func seedProduct(t *testing.T, m *mockDynamo, id string, stock int) {
	t.Helper()
	require.NoError(t, NewProductStore(m, productsTable).Put(context.Background(), catalog.Product{ID: id, Title: id, Price: dec("10"), Stock: stock}))
}

func TestOrderStore_InsertAppliesStockAtomically(t *testing.T) {
	m := newTestTables()
	seedProduct(t, m, "p1", 5)
	store := NewOrderStore(m, ordersTable, productsTable)
	products := NewProductStore(m, productsTable)
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	o := fullOrder("o1", "u1", created)

	err := store.Insert(ctx, o, []inventory.Adjustment{{ProductID: "p1", Expected: 4, New: 1}})
	require.ErrorIs(t, err, inventory.ErrStockConflict)
	_, err = store.Get(ctx, "o1")
	require.ErrorIs(t, err, orders.ErrNotFound)

	require.NoError(t, store.Insert(ctx, o, []inventory.Adjustment{{ProductID: "p1", Expected: 5, New: 2}}))
	p, err := products.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	err = store.Insert(ctx, o, []inventory.Adjustment{{ProductID: "p1", Expected: 2, New: 0}})
	assert.ErrorIs(t, err, orders.ErrConflict)
	err = store.Insert(ctx, o, nil)
	assert.ErrorIs(t, err, orders.ErrConflict)
	p, _ = products.Get(ctx, "p1")
	assert.Equal(t, 2, p.Stock)
}

func TestOrderStore_RecordRoundTrip(t *testing.T) {
	m := newTestTables()
	store := NewOrderStore(m, ordersTable, productsTable)
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 9, 30, 0, 123, time.UTC)
	o := fullOrder("o1", "u1", created)
	require.NoError(t, store.Insert(ctx, o, nil))

	got, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.Total.Equal(dec("67.42")))
	assert.True(t, got.Items[0].Price.Equal(dec("19.99")))
	require.NotNil(t, got.Items[0].ShippingCost)
	assert.True(t, got.Items[0].ShippingCost.Equal(dec("2.5")))
	assert.Nil(t, got.Items[0].TaxRate)
	assert.Equal(t, "A2", got.Items[0].Variants["size"])
	assert.Equal(t, "https://cdn/p.png", got.Items[0].Fulfillment.ProofImageURL)
	assert.Equal(t, "Springfield", got.ShippingAddress.City)
	assert.Nil(t, got.BillingAddress)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, "Order placed", got.StatusHistory[0].Note)
	assert.True(t, got.StockApplied)
	assert.False(t, got.StockRestored)
	assert.Equal(t, []inventory.Line{{ProductID: "p1", Quantity: 3}}, got.StockTaken)
	assert.Equal(t, 1, got.Version)
}

func TestOrderStore_LegacyRecordDefaultsAmountsToZero(t *testing.T) {
	m := newTestTables()
	m.tables[ordersTable].items["legacy"] = map[string]types.AttributeValue{
		"order_id":   &types.AttributeValueMemberS{Value: "legacy"},
		"user_id":    &types.AttributeValueMemberS{Value: "u1"},
		"created_at": &types.AttributeValueMemberS{Value: "2023-05-01T10:00:00Z"},
		"status":     &types.AttributeValueMemberS{Value: "delivered"},
		"total":      &types.AttributeValueMemberS{Value: "12.50"},
	}
	got, err := NewOrderStore(m, ordersTable, productsTable).Get(context.Background(), "legacy")
	require.NoError(t, err)
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Total.Equal(dec("12.5")))
	assert.Equal(t, 2023, got.CreatedAt.Year())
	assert.Equal(t, orders.StatusDelivered, got.Status)
	assert.Nil(t, got.StockTaken)
	assert.Zero(t, got.Version)

	store := NewOrderStore(m, ordersTable, productsTable)
	got.Carrier = "UPS"
	got.Version = 1
	require.NoError(t, store.Save(context.Background(), got, nil))
	assert.ErrorIs(t, store.Save(context.Background(), got, nil), orders.ErrStale)
}

func TestOrderStore_SaveAndDelete(t *testing.T) {
	m := newTestTables()
	store := NewOrderStore(m, ordersTable, productsTable)
	ctx := context.Background()
	o := fullOrder("o1", "u1", time.Now().UTC())

	assert.ErrorIs(t, store.Save(ctx, o, nil), orders.ErrNotFound)
	require.NoError(t, store.Insert(ctx, o, nil))
	o.Status = orders.StatusShipped
	o.Version = 2
	require.NoError(t, store.Save(ctx, o, nil))
	got, _ := store.Get(ctx, "o1")
	assert.Equal(t, orders.StatusShipped, got.Status)
	assert.Equal(t, 2, got.Version)

	// a writer still holding version 1
	o.Status = orders.StatusPending
	assert.ErrorIs(t, store.Save(ctx, o, nil), orders.ErrStale)
	got, _ = store.Get(ctx, "o1")
	assert.Equal(t, orders.StatusShipped, got.Status)

	require.NoError(t, store.Delete(ctx, "o1"))
	assert.ErrorIs(t, store.Delete(ctx, "o1"), orders.ErrNotFound)
}

func TestOrderStore_SaveWithReversalConflict(t *testing.T) {
	m := newTestTables()
	seedProduct(t, m, "p1", 2)
	store := NewOrderStore(m, ordersTable, productsTable)
	ctx := context.Background()
	o := fullOrder("o1", "u1", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, o, nil))

	o.Status = orders.StatusCancelled
	o.Version = 2
	err := store.Save(ctx, o, []inventory.Adjustment{{ProductID: "p1", Expected: 3, New: 6}})
	assert.ErrorIs(t, err, inventory.ErrStockConflict)
	got, _ := store.Get(ctx, "o1")
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestOrderStore_StaleSaveWithReversalWritesNothing(t *testing.T) {
	m := newTestTables()
	seedProduct(t, m, "p1", 2)
	store := NewOrderStore(m, ordersTable, productsTable)
	products := NewProductStore(m, productsTable)
	ctx := context.Background()
	o := fullOrder("o1", "u1", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, o, nil))

	first := o
	first.Status, first.StockRestored, first.Version = orders.StatusCancelled, true, 2
	require.NoError(t, store.Save(ctx, first, []inventory.Adjustment{{ProductID: "p1", Expected: 2, New: 5}}))

	// second writer planned against the same read and a stock value it re-fetched
	err := store.Save(ctx, first, []inventory.Adjustment{{ProductID: "p1", Expected: 5, New: 8}})
	assert.ErrorIs(t, err, orders.ErrStale)
	p, _ := products.Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
}

func TestOrderStore_ListPaginatesNewestFirst(t *testing.T) {
	m := newTestTables()
	m.pageSize = 1
	store := NewOrderStore(m, ordersTable, productsTable)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, fullOrder("a1", "alice", base), nil))
	require.NoError(t, store.Insert(ctx, fullOrder("b1", "bob", base.Add(time.Hour)), nil))
	require.NoError(t, store.Insert(ctx, fullOrder("a2", "alice", base.Add(2*time.Hour)), nil))

	list, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "a1", list[1].ID)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOrderStore_SurfacesClientErrors(t *testing.T) {
	m := newTestTables()
	m.err = errors.New("throttled")
	_, err := NewOrderStore(m, ordersTable, productsTable).Get(context.Background(), "o1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, orders.ErrNotFound)
}

func TestOrderLifecycle_OverDynamo(t *testing.T) {
	m := newTestTables()
	seedProduct(t, m, "p1", 5)
	products := NewProductStore(m, productsTable)
	svc, err := orders.NewStore(orders.StoreDeps{
		Orders: NewOrderStore(m, ordersTable, productsTable),
		Stock:  inventory.NewLedger(products, nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	o, err := svc.Create(ctx, orders.Order{
		UserID:   "u1",
		Items:    []orders.LineItem{{Line: cart.Line{ProductID: "p1", Price: dec("10"), Quantity: 3}}},
		Subtotal: dec("30"),
	})
	require.NoError(t, err)
	p, _ := products.Get(ctx, "p1")
	assert.Equal(t, 2, p.Stock)

	_, err = svc.Refund(ctx, o.ID)
	require.NoError(t, err)
	p, _ = products.Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)

	_, err = svc.Refund(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrAlreadyCancelled)
	p, _ = products.Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
}

func TestOrderLifecycle_TwoStoresOverDynamoCreditOnce(t *testing.T) {
	m := newTestTables()
	seedProduct(t, m, "p1", 5)
	products := NewProductStore(m, productsTable)
	newStore := func() *orders.Store {
		st, err := orders.NewStore(orders.StoreDeps{
			Orders: NewOrderStore(m, ordersTable, productsTable),
			Stock:  inventory.NewLedger(products, nil),
		})
		require.NoError(t, err)
		return st
	}
	a, b := newStore(), newStore()
	ctx := context.Background()

	o, err := a.Create(ctx, orders.Order{
		UserID:   "u1",
		Items:    []orders.LineItem{{Line: cart.Line{ProductID: "p1", Price: dec("10"), Quantity: 3}}},
		Subtotal: dec("30"),
	})
	require.NoError(t, err)

	cancelled := orders.StatusCancelled
	_, err = b.Update(ctx, o.ID, orders.Patch{Status: &cancelled})
	require.NoError(t, err)
	_, err = a.Refund(ctx, o.ID)
	require.NoError(t, err)
	_, err = b.Refund(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrAlreadyCancelled)

	p, _ := products.Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
	got, err := NewOrderStore(m, ordersTable, productsTable).Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.True(t, got.StockRestored)
}

func TestProductStore_GetMissingAndList(t *testing.T) {
	m := newTestTables()
	products := NewProductStore(m, productsTable)
	ctx := context.Background()
	_, err := products.Get(ctx, "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	launch := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rate := dec("0.2")
	require.NoError(t, products.Put(ctx, catalog.Product{
		ID: "b", Price: dec("3"), TaxRate: &rate, LaunchAt: &launch,
		Variants:       []catalog.Variant{{Name: "color", Options: []string{"red", "blue"}}},
		RequiredFields: []string{"engraving"},
	}))
	require.NoError(t, products.Put(ctx, catalog.Product{ID: "a", Price: dec("1")}))

	list, err := products.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.True(t, list[1].TaxRate.Equal(rate))
	assert.Equal(t, []string{"red", "blue"}, list[1].Variants[0].Options)
	assert.True(t, list[1].LaunchAt.Equal(launch))
}

func TestCouponStore_CRUD(t *testing.T) {
	m := newTestTables()
	repo := NewCouponStore(m, couponsTable)
	ctx := context.Background()
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	c := coupons.Coupon{Code: "summer", Type: coupons.DiscountFixed, Value: dec("20"), MinOrder: dec("50"), EndsAt: &end}

	require.NoError(t, repo.Create(ctx, c))
	assert.ErrorIs(t, repo.Create(ctx, c), coupons.ErrCodeConflict)

	got, err := repo.FindByCode(ctx, "Summer")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER", got.Code)
	assert.True(t, got.MinOrder.Equal(dec("50")))
	assert.True(t, got.EndsAt.Equal(end))

	assert.ErrorIs(t, repo.Update(ctx, coupons.Coupon{Code: "nope"}), coupons.ErrNotFound)
	c.Value = dec("25")
	require.NoError(t, repo.Update(ctx, c))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Value.Equal(dec("25")))

	require.NoError(t, repo.Delete(ctx, "SUMMER"))
	assert.ErrorIs(t, repo.Delete(ctx, "SUMMER"), coupons.ErrNotFound)
	_, err = repo.FindByCode(ctx, "SUMMER")
	assert.ErrorIs(t, err, coupons.ErrNotFound)
}

func TestNotificationStore(t *testing.T) {
	m := newTestTables()
	repo := NewNotificationStore(m, notificationsTable)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, notify.Notification{ID: "01A", UserID: "u1", Type: notify.TypeOrderPlaced, Message: "first", CreatedAt: at}))
	require.NoError(t, repo.Insert(ctx, notify.Notification{ID: "01B", UserID: "u1", Type: notify.TypeOrderRefunded, Message: "second", CreatedAt: at}))
	require.NoError(t, repo.Insert(ctx, notify.Notification{ID: "01A", UserID: "u1", Message: "redelivered"}))
	require.NoError(t, repo.Insert(ctx, notify.Notification{ID: "01C", UserID: "u2", Message: "other"}))

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01B", list[0].ID)
	assert.Equal(t, "first", list[1].Message)

	require.NoError(t, repo.MarkRead(ctx, "u1", "01A"))
	assert.ErrorIs(t, repo.MarkRead(ctx, "u2", "01A"), notify.ErrNotFound)
	list, _ = repo.ListByUser(ctx, "u1")
	assert.True(t, list[1].Read)
}

func TestAmount_DecodesStringsAndRejectsGarbage(t *testing.T) {
	var a amount
	require.NoError(t, a.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberS{Value: "4.20"}))
	assert.True(t, a.Decimal().Equal(dec("4.2")))
	assert.Error(t, a.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberS{Value: "abc"}))
	assert.Error(t, a.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberBOOL{Value: true}))
}
