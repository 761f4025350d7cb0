// Package memory keeps every repository in process behind one lock so order
// and stock writes stay atomic. It backs local mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/notify"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

type Store struct {
	mu            sync.RWMutex
	orders        map[string]orders.Order
	products      map[string]catalog.Product
	coupons       map[string]coupons.Coupon
	notifications map[string]map[string]notify.Notification // user id -> notification id
}

func New() *Store {
	return &Store{
		orders:        map[string]orders.Order{},
		products:      map[string]catalog.Product{},
		coupons:       map[string]coupons.Coupon{},
		notifications: map[string]map[string]notify.Notification{},
	}
}

func (s *Store) Orders() *Orders               { return &Orders{s: s} }
func (s *Store) Products() *Products           { return &Products{s: s} }
func (s *Store) Coupons() *Coupons             { return &Coupons{s: s} }
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

// applyStock must be called with the write lock held.
func (s *Store) applyStock(adjustments []inventory.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	stock := make(map[string]int, len(adjustments))
	for _, a := range adjustments {
		if p, ok := s.products[a.ProductID]; ok {
			stock[a.ProductID] = p.Stock
		}
	}
	if err := inventory.Apply(stock, adjustments); err != nil {
		return err
	}
	for id, v := range stock {
		p := s.products[id]
		p.Stock = v
		s.products[id] = p
	}
	return nil
}

// Orders implements orders.Repository.
type Orders struct{ s *Store }

var _ orders.Repository = (*Orders)(nil)

func (r *Orders) Insert(_ context.Context, o orders.Order, adjustments []inventory.Adjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s exists", orders.ErrConflict, o.ID)
	}
	if err := r.s.applyStock(adjustments); err != nil {
		return err
	}
	r.s.orders[o.ID] = o.Clone()
	return nil
}

func (r *Orders) Save(_ context.Context, o orders.Order, adjustments []inventory.Adjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.orders[o.ID]
	if !ok {
		return orders.ErrNotFound
	}
	if stored.Version != o.Version-1 {
		return fmt.Errorf("%w: order %s is at version %d", orders.ErrStale, o.ID, stored.Version)
	}
	if err := r.s.applyStock(adjustments); err != nil {
		return err
	}
	r.s.orders[o.ID] = o.Clone()
	return nil
}

func (r *Orders) Get(_ context.Context, id string) (orders.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *Orders) List(_ context.Context, userID string) ([]orders.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]orders.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		out = append(out, o.Clone())
	}
	return out, nil
}

func (r *Orders) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[id]; !ok {
		return orders.ErrNotFound
	}
	delete(r.s.orders, id)
	return nil
}

// Products implements catalog.Repository.
type Products struct{ s *Store }

var _ catalog.Repository = (*Products)(nil)

func (r *Products) Get(_ context.Context, id string) (catalog.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (r *Products) List(context.Context) ([]catalog.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Products) Put(_ context.Context, p catalog.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products[p.ID] = p
	return nil
}

// Coupons implements coupons.Repository.
type Coupons struct{ s *Store }

var _ coupons.Repository = (*Coupons)(nil)

func (r *Coupons) FindByCode(_ context.Context, code string) (coupons.Coupon, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.coupons[coupons.NormalizeCode(code)]
	if !ok {
		return coupons.Coupon{}, coupons.ErrNotFound
	}
	return c, nil
}

func (r *Coupons) List(context.Context) ([]coupons.Coupon, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]coupons.Coupon, 0, len(r.s.coupons))
	for _, c := range r.s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *Coupons) Create(_ context.Context, c coupons.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := coupons.NormalizeCode(c.Code)
	if _, ok := r.s.coupons[key]; ok {
		return coupons.ErrCodeConflict
	}
	r.s.coupons[key] = c
	return nil
}

func (r *Coupons) Update(_ context.Context, c coupons.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := coupons.NormalizeCode(c.Code)
	if _, ok := r.s.coupons[key]; !ok {
		return coupons.ErrNotFound
	}
	r.s.coupons[key] = c
	return nil
}

func (r *Coupons) Delete(_ context.Context, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := coupons.NormalizeCode(code)
	if _, ok := r.s.coupons[key]; !ok {
		return coupons.ErrNotFound
	}
	delete(r.s.coupons, key)
	return nil
}

// Notifications implements notify.Repository.
type Notifications struct{ s *Store }

var _ notify.Repository = (*Notifications)(nil)

func (r *Notifications) Insert(_ context.Context, n notify.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inbox, ok := r.s.notifications[n.UserID]
	if !ok {
		inbox = map[string]notify.Notification{}
		r.s.notifications[n.UserID] = inbox
	}
	if _, dup := inbox[n.ID]; !dup {
		inbox[n.ID] = n
	}
	return nil
}

func (r *Notifications) ListByUser(_ context.Context, userID string) ([]notify.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inbox := r.s.notifications[userID]
	out := make([]notify.Notification, 0, len(inbox))
	for _, n := range inbox {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Notifications) MarkRead(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[userID][id]
	if !ok {
		return notify.ErrNotFound
	}
	n.Read = true
	r.s.notifications[userID][id] = n
	return nil
}
