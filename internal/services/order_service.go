package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onsalenow/internal/catalog"
	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/mail"
	"onsalenow/internal/repos"
	"onsalenow/internal/validate"
)

type OrderService struct {
	Orders   *repos.OrderRepo
	Products *repos.ProductRepo
	Mail     Mailer
	now      func() time.Time
}

func NewOrderService(orders *repos.OrderRepo, products *repos.ProductRepo, mailer Mailer) *OrderService {
	return &OrderService{Orders: orders, Products: products, Mail: mailer, now: time.Now}
}

// CheckoutItem is one requested line. Any client-side price is ignored.
type CheckoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Checkout places an order for the signed-in buyer. Prices come from the
// stored products. Stock and sold counters are adjusted after the order is
// written, each as an independent write.
func (s *OrderService) Checkout(ctx context.Context, sess domain.Session, items []CheckoutItem, address string) (*domain.Order, error) {
	if sess.Kind != domain.KindBuyer {
		return nil, ErrForbidden
	}
	ve := validate.Errors{}
	if len(items) == 0 {
		ve.Add("items", "at least one item")
	}
	address = strings.TrimSpace(address)
	if address == "" && sess.Buyer != nil {
		address = sess.Buyer.Address
	}
	if address == "" {
		ve.Add("shippingAddress", "required")
	}
	for i, it := range items {
		if _, ok := validate.ID(it.ProductID); !ok {
			ve.Add(fmt.Sprintf("items[%d].productId", i), "invalid id")
		}
		if !validate.Qty(it.Quantity) {
			ve.Add(fmt.Sprintf("items[%d].quantity", i), "must be 1-50")
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	// Merge repeated lines so the stock check sees the full quantity.
	wanted := map[string]int{}
	products := map[string]*domain.Product{}
	for _, it := range items {
		wanted[it.ProductID] += it.Quantity
		if _, seen := products[it.ProductID]; seen {
			continue
		}
		p, err := s.Products.Get(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if !catalog.Visible(*p) {
			return nil, fmt.Errorf("product %s: %w", p.ID, repos.ErrNotFound)
		}
		products[it.ProductID] = p
	}
	for id, qty := range wanted {
		if products[id].Stock < qty {
			return nil, fmt.Errorf("%w: %s has %d left", ErrOutOfStock, products[id].Name, products[id].Stock)
		}
	}

	now := s.stamp()
	o := domain.Order{
		ID:              uuid.NewString(),
		UserID:          sess.UID,
		Status:          domain.OrderPending,
		SellerIDs:       map[string]bool{},
		ShippingAddress: address,
		OrderDate:       now,
		UpdatedAt:       now,
	}
	total := 0.0
	for _, it := range items {
		p := products[it.ProductID]
		price := catalog.ParsePrice(string(p.Price))
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: p.ID, SellerID: p.SellerID, Name: p.Name,
			Quantity: it.Quantity, Price: price, Size: it.Size, Color: it.Color,
		})
		o.SellerIDs[p.SellerID] = true
		total += price * float64(it.Quantity)
	}
	o.TotalAmount = math.Round(total*100) / 100

	if err := s.Orders.Put(ctx, o); err != nil {
		return nil, err
	}
	for id, qty := range wanted {
		p := products[id]
		fields := map[string]any{"stock": p.Stock - qty, "sold": p.Sold + qty, "updatedAt": now}
		if err := s.Products.Update(ctx, id, fields); err != nil {
			applog.L().Warn("order.stock.update.fail", zap.String("order_id", o.ID), zap.String("product_id", id), zap.Error(err))
		}
	}
	s.confirm(ctx, sess, o)
	return &o, nil
}

func (s *OrderService) confirm(ctx context.Context, sess domain.Session, o domain.Order) {
	if s.Mail == nil || sess.Email == "" {
		return
	}
	name := sess.DisplayName()
	msg := mail.Message{
		ToName:  name,
		ToEmail: sess.Email,
		Subject: "Order " + o.ID + " received",
		Text:    fmt.Sprintf("Thanks %s, we received your order of %d item(s) totalling %.2f.", name, len(o.Items), o.TotalAmount),
	}
	if err := s.Mail.Send(ctx, msg); err != nil {
		applog.L().Warn("order.mail.fail", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *OrderService) ForBuyer(ctx context.Context, uid string) ([]domain.Order, error) {
	return s.Orders.ByUser(ctx, uid)
}

func (s *OrderService) ForSeller(ctx context.Context, uid string) ([]domain.Order, error) {
	return s.Orders.BySeller(ctx, uid)
}

func (s *OrderService) All(ctx context.Context) ([]domain.Order, error) {
	return s.Orders.ListLatest(ctx)
}

// Get returns an order visible to the session: its buyer, a seller in it, or an admin.
func (s *OrderService) Get(ctx context.Context, sess domain.Session, id string) (*domain.Order, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(sess, o) {
		return nil, ErrForbidden
	}
	return o, nil
}

// UpdateStatus lets an admin, or a seller with items in the order, move its
// status. Delivered and cancelled orders are closed.
func (s *OrderService) UpdateStatus(ctx context.Context, sess domain.Session, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, validate.Errors{"status": "must be pending, processing, shipped, delivered or cancelled"}
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case sess.Kind == domain.KindAdmin:
	case sess.Kind == domain.KindSeller && o.SellerIDs[sess.UID]:
	default:
		return nil, ErrForbidden
	}
	if o.Status.Closed() {
		return nil, fmt.Errorf("%w: %s", ErrOrderClosed, o.Status)
	}
	at := s.stamp()
	if err := s.Orders.UpdateStatus(ctx, id, status, at); err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	o.Status, o.UpdatedAt = status, at
	return o, nil
}

func canSee(sess domain.Session, o *domain.Order) bool {
	switch sess.Kind {
	case domain.KindAdmin:
		return true
	case domain.KindBuyer:
		return o.UserID == sess.UID
	case domain.KindSeller:
		return o.SellerIDs[sess.UID]
	}
	return false
}

// orderStamp has a fixed width so order dates sort as strings.
const orderStamp = "2006-01-02T15:04:05.000000Z07:00"

func (s *OrderService) stamp() string { return s.now().UTC().Format(orderStamp) }
