package repos

import (
	"context"
	"fmt"

	"onsalenow/internal/domain"
)

const productsCollection = "products"

type ProductRepo struct{ gw Gateway }

func NewProductRepo(gw Gateway) *ProductRepo { return &ProductRepo{gw: gw} }

func (r *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	ok, err := r.gw.Get(ctx, Path(productsCollection, id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (r *ProductRepo) Put(ctx context.Context, p domain.Product) error {
	return r.gw.Set(ctx, Path(productsCollection, p.ID), p)
}

func (r *ProductRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	return r.gw.Update(ctx, Path(productsCollection, id), fields)
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	return r.gw.Remove(ctx, Path(productsCollection, id))
}

// All returns every product ordered by id.
func (r *ProductRepo) All(ctx context.Context) ([]domain.Product, error) {
	recs, err := r.gw.List(ctx, productsCollection)
	if err != nil {
		return nil, err
	}
	return Decode[domain.Product](recs)
}

func (r *ProductRepo) BySeller(ctx context.Context, sellerID string) ([]domain.Product, error) {
	recs, err := r.gw.QueryByField(ctx, productsCollection, "sellerId", sellerID)
	if err != nil {
		return nil, err
	}
	return Decode[domain.Product](recs)
}
