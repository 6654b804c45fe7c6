package repos

import (
	"context"
	"fmt"
	"sort"

	"onsalenow/internal/domain"
)

const ordersCollection = "orders"

type OrderRepo struct{ gw Gateway }

func NewOrderRepo(gw Gateway) *OrderRepo { return &OrderRepo{gw: gw} }

func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	ok, err := r.gw.Get(ctx, Path(ordersCollection, id), &o)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (r *OrderRepo) Put(ctx context.Context, o domain.Order) error {
	return r.gw.Set(ctx, Path(ordersCollection, o.ID), o)
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at string) error {
	return r.gw.Update(ctx, Path(ordersCollection, id), map[string]any{"status": status, "updatedAt": at})
}

// ListLatest returns every order, newest first.
func (r *OrderRepo) ListLatest(ctx context.Context) ([]domain.Order, error) {
	recs, err := r.gw.List(ctx, ordersCollection)
	if err != nil {
		return nil, err
	}
	return newestFirst(recs)
}

func (r *OrderRepo) ByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	recs, err := r.gw.QueryByField(ctx, ordersCollection, "userId", userID)
	if err != nil {
		return nil, err
	}
	return newestFirst(recs)
}

// BySeller returns orders whose sellerIds set contains sellerID.
func (r *OrderRepo) BySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	recs, err := r.gw.QueryByField(ctx, ordersCollection, "sellerIds."+sellerID, true)
	if err != nil {
		return nil, err
	}
	return newestFirst(recs)
}

func newestFirst(recs []Record) ([]domain.Order, error) {
	out, err := Decode[domain.Order](recs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderDate > out[j].OrderDate })
	return out, nil
}
