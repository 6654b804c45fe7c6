package repos

import (
	"context"
	"fmt"

	"onsalenow/internal/domain"
)

const (
	buyersCollection  = "Buyer"
	sellersCollection = "Seller"
	adminsCollection  = "admin"
)

// ProfileRepo reads and writes the Buyer, Seller and admin profile records.
type ProfileRepo struct{ gw Gateway }

func NewProfileRepo(gw Gateway) *ProfileRepo { return &ProfileRepo{gw: gw} }

func (r *ProfileRepo) Buyer(ctx context.Context, uid string) (*domain.Buyer, error) {
	var b domain.Buyer
	if err := r.get(ctx, Path(buyersCollection, uid), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *ProfileRepo) PutBuyer(ctx context.Context, b domain.Buyer) error {
	return r.gw.Set(ctx, Path(buyersCollection, b.UID), b)
}

func (r *ProfileRepo) UpdateBuyer(ctx context.Context, uid string, fields map[string]any) error {
	return r.gw.Update(ctx, Path(buyersCollection, uid), fields)
}

func (r *ProfileRepo) RemoveBuyer(ctx context.Context, uid string) error {
	return r.gw.Remove(ctx, Path(buyersCollection, uid))
}

func (r *ProfileRepo) Buyers(ctx context.Context) ([]domain.Buyer, error) {
	recs, err := r.gw.List(ctx, buyersCollection)
	if err != nil {
		return nil, err
	}
	return Decode[domain.Buyer](recs)
}

func (r *ProfileRepo) Seller(ctx context.Context, uid string) (*domain.Seller, error) {
	var s domain.Seller
	if err := r.get(ctx, Path(sellersCollection, uid), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ProfileRepo) PutSeller(ctx context.Context, s domain.Seller) error {
	return r.gw.Set(ctx, Path(sellersCollection, s.UID), s)
}

func (r *ProfileRepo) UpdateSeller(ctx context.Context, uid string, fields map[string]any) error {
	return r.gw.Update(ctx, Path(sellersCollection, uid), fields)
}

// Sellers lists sellers, optionally only those with the given status.
func (r *ProfileRepo) Sellers(ctx context.Context, status domain.SellerStatus) ([]domain.Seller, error) {
	var (
		recs []Record
		err  error
	)
	if status == "" {
		recs, err = r.gw.List(ctx, sellersCollection)
	} else {
		recs, err = r.gw.QueryByField(ctx, sellersCollection, "status", string(status))
	}
	if err != nil {
		return nil, err
	}
	return Decode[domain.Seller](recs)
}

func (r *ProfileRepo) Admin(ctx context.Context, email string) (*domain.Admin, error) {
	var a domain.Admin
	if err := r.get(ctx, Path(adminsCollection, EmailKey(email)), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ProfileRepo) PutAdmin(ctx context.Context, a domain.Admin) error {
	return r.gw.Set(ctx, Path(adminsCollection, EmailKey(a.Email)), a)
}

func (r *ProfileRepo) UpdateAdmin(ctx context.Context, email string, fields map[string]any) error {
	return r.gw.Update(ctx, Path(adminsCollection, EmailKey(email)), fields)
}

func (r *ProfileRepo) get(ctx context.Context, path string, dest any) error {
	ok, err := r.gw.Get(ctx, path, dest)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}
