package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/mail"
	"onsalenow/internal/metrics"
	"onsalenow/internal/repos"
	"onsalenow/internal/validate"
)

type Mailer interface {
	Send(ctx context.Context, m mail.Message) error
}

// SellerService is the admin side: seller and buyer status, and the
// propagation of a seller's block flag onto their products.
type SellerService struct {
	Profiles *repos.ProfileRepo
	Products *repos.ProductRepo
	Accounts *repos.AccountRepo
	Orders   *repos.OrderRepo
	Mail     Mailer
	// Concurrency bounds the product writes of one reconciliation.
	Concurrency int
	now         func() time.Time
}

func NewSellerService(profiles *repos.ProfileRepo, products *repos.ProductRepo, accounts *repos.AccountRepo, orders *repos.OrderRepo, mailer Mailer) *SellerService {
	return &SellerService{
		Profiles: profiles, Products: products, Accounts: accounts, Orders: orders,
		Mail: mailer, Concurrency: 8, now: time.Now,
	}
}

type BatchResult struct {
	SellerID string   `json:"sellerId"`
	Checked  int      `json:"checked"`
	Updated  int      `json:"updated"`
	Failed   []string `json:"failed"`
}

type Dashboard struct {
	Products       int `json:"products"`
	BlockedProds   int `json:"blockedProducts"`
	Buyers         int `json:"buyers"`
	BlockedBuyers  int `json:"blockedBuyers"`
	Sellers        int `json:"sellers"`
	PendingSellers int `json:"pendingSellers"`
	BlockedSellers int `json:"blockedSellers"`
	Orders         int `json:"orders"`
}

// SetStatus writes the seller's status, then reconciles their products.
// The status write stands even when reconciliation is incomplete.
func (s *SellerService) SetStatus(ctx context.Context, uid string, status domain.SellerStatus) (*domain.Seller, BatchResult, error) {
	if !status.Valid() {
		return nil, BatchResult{}, validate.Errors{"status": "must be pending, approved or blocked"}
	}
	seller, err := s.Profiles.Seller(ctx, uid)
	if err != nil {
		return nil, BatchResult{}, err
	}
	if err := s.Profiles.UpdateSeller(ctx, uid, map[string]any{"status": status, "updatedAt": s.stamp()}); err != nil {
		return nil, BatchResult{}, err
	}
	seller.Status = status

	res, rerr := s.Reconcile(ctx, uid)
	if s.Mail != nil && seller.Email != "" {
		msg := mail.Message{
			ToName:  seller.OwnerName,
			ToEmail: seller.Email,
			Subject: "Your On Sale Now seller account is " + string(status),
			Text:    fmt.Sprintf("Hello %s, the account for %s is now %s.", seller.OwnerName, seller.BrandName, status),
		}
		if err := s.Mail.Send(ctx, msg); err != nil {
			applog.L().Warn("seller.status.mail.fail", zap.String("seller_id", uid), zap.Error(err))
		}
	}
	return seller, res, rerr
}

// Reconcile sets isSellerBlocked on every product of the seller to match the
// seller's status. Only differing products are written; writes run
// concurrently and failures are collected. Running it again converges.
func (s *SellerService) Reconcile(ctx context.Context, uid string) (BatchResult, error) {
	res := BatchResult{SellerID: uid, Failed: []string{}}
	seller, err := s.Profiles.Seller(ctx, uid)
	if err != nil {
		return res, err
	}
	want := seller.Status == domain.SellerBlocked

	products, err := s.Products.BySeller(ctx, uid)
	if err != nil {
		return res, err
	}
	res.Checked = len(products)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	limit := s.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	stamp := s.stamp()
	for _, p := range products {
		if p.IsSellerBlocked == want {
			continue
		}
		id := p.ID
		g.Go(func() error {
			err := s.Products.Update(ctx, id, map[string]any{"isSellerBlocked": want, "updatedAt": stamp})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, id)
				metrics.ReconcileUpdates.WithLabelValues("failed").Inc()
				applog.L().Warn("reconcile.product.fail", zap.String("seller_id", uid), zap.String("product_id", id), zap.Error(err))
				return nil
			}
			res.Updated++
			metrics.ReconcileUpdates.WithLabelValues("updated").Inc()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(res.Failed)
	applog.L().Info("reconcile.done",
		zap.String("seller_id", uid), zap.Bool("blocked", want),
		zap.Int("checked", res.Checked), zap.Int("updated", res.Updated), zap.Int("failed", len(res.Failed)))
	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: %d of %d products", ErrReconcileIncomplete, len(res.Failed), res.Checked)
	}
	return res, nil
}

// ReconcileAll reconciles every seller and joins the per-seller errors.
func (s *SellerService) ReconcileAll(ctx context.Context) ([]BatchResult, error) {
	sellers, err := s.Profiles.Sellers(ctx, "")
	if err != nil {
		return nil, err
	}
	var (
		out  []BatchResult
		errs []error
	)
	for _, sl := range sellers {
		res, err := s.Reconcile(ctx, sl.UID)
		out = append(out, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("seller %s: %w", sl.UID, err))
		}
	}
	return out, errors.Join(errs...)
}

// SetBuyerStatus blocks or unblocks a buyer. Blocking signs out every
// session of the buyer.
func (s *SellerService) SetBuyerStatus(ctx context.Context, uid string, status domain.BuyerStatus) (*domain.Buyer, error) {
	if !status.Valid() {
		return nil, validate.Errors{"status": "must be blocked or unblocked"}
	}
	b, err := s.Profiles.Buyer(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.Profiles.UpdateBuyer(ctx, uid, map[string]any{"status": status, "updatedAt": s.stamp()}); err != nil {
		return nil, err
	}
	b.Status = status
	if status == domain.BuyerBlocked && s.Accounts != nil {
		n, err := s.Accounts.UnbindUser(ctx, uid)
		if err != nil {
			applog.L().Warn("buyer.block.unbind.fail", zap.String("user_id", uid), zap.Error(err))
		} else {
			applog.L().Info("buyer.block.sessions_dropped", zap.String("user_id", uid), zap.Int64("sessions", n))
		}
	}
	return b, nil
}

func (s *SellerService) ListSellers(ctx context.Context, status domain.SellerStatus) ([]domain.Seller, error) {
	if status != "" && !status.Valid() {
		return nil, validate.Errors{"status": "must be pending, approved or blocked"}
	}
	return s.Profiles.Sellers(ctx, status)
}

func (s *SellerService) ListBuyers(ctx context.Context) ([]domain.Buyer, error) {
	return s.Profiles.Buyers(ctx)
}

func (s *SellerService) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	products, err := s.Products.All(ctx)
	if err != nil {
		return d, err
	}
	d.Products = len(products)
	for _, p := range products {
		if p.IsSellerBlocked {
			d.BlockedProds++
		}
	}
	buyers, err := s.Profiles.Buyers(ctx)
	if err != nil {
		return d, err
	}
	d.Buyers = len(buyers)
	for _, b := range buyers {
		if b.Status == domain.BuyerBlocked {
			d.BlockedBuyers++
		}
	}
	sellers, err := s.Profiles.Sellers(ctx, "")
	if err != nil {
		return d, err
	}
	d.Sellers = len(sellers)
	for _, sl := range sellers {
		switch sl.Status {
		case domain.SellerPending:
			d.PendingSellers++
		case domain.SellerBlocked:
			d.BlockedSellers++
		}
	}
	if s.Orders != nil {
		orders, err := s.Orders.ListLatest(ctx)
		if err != nil {
			return d, err
		}
		d.Orders = len(orders)
	}
	return d, nil
}

func (s *SellerService) stamp() string { return s.now().UTC().Format(time.RFC3339) }
