package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onsalenow/internal/catalog"
	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/media"
	"onsalenow/internal/repos"
	"onsalenow/internal/validate"
)

// Dispatcher receives every newly created product. It is the only place a
// product-created notification is triggered from.
type Dispatcher interface {
	ProductCreated(ctx context.Context, p domain.Product) error
}

type MediaStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type CatalogService struct {
	Products *repos.ProductRepo
	Dispatch Dispatcher
	Media    MediaStore
	now      func() time.Time
}

func NewCatalogService(products *repos.ProductRepo, dispatch Dispatcher, store MediaStore) *CatalogService {
	return &CatalogService{Products: products, Dispatch: dispatch, Media: store, now: time.Now}
}

type ProductInput struct {
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Brand           string        `json:"brand"`
	Category        string        `json:"category"`
	Price           domain.Amount `json:"price"`
	OriginalPrice   domain.Amount `json:"originalPrice"`
	DiscountPercent domain.Amount `json:"discountPercent"`
	Stock           int           `json:"stock"`
	Sizes           []string      `json:"sizes"`
	Keywords        []string      `json:"keywords"`
	Image           string        `json:"image"`
}

// ProductPatch carries the fields a seller may change; nil means unchanged.
type ProductPatch struct {
	Name            *string        `json:"name"`
	Description     *string        `json:"description"`
	Category        *string        `json:"category"`
	Price           *domain.Amount `json:"price"`
	OriginalPrice   *domain.Amount `json:"originalPrice"`
	DiscountPercent *domain.Amount `json:"discountPercent"`
	Stock           *int           `json:"stock"`
	Sizes           []string       `json:"sizes"`
	Keywords        []string       `json:"keywords"`
}

// List returns visible products, optionally only those on sale.
func (s *CatalogService) List(ctx context.Context, onSaleOnly bool) ([]domain.Product, error) {
	ps, err := s.Products.All(ctx)
	if err != nil {
		return nil, err
	}
	ps = catalog.FilterVisible(ps)
	if onSaleOnly {
		ps = catalog.FilterOnSale(ps)
	}
	return ps, nil
}

// Get hides seller-blocked products behind ErrNotFound.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !catalog.Visible(*p) {
		return nil, fmt.Errorf("product %s: %w", id, repos.ErrNotFound)
	}
	return p, nil
}

func (s *CatalogService) ByCategory(ctx context.Context, name string) (catalog.Result, error) {
	ps, err := s.List(ctx, false)
	if err != nil {
		return catalog.Result{}, err
	}
	return catalog.Match(ps, name, []catalog.Field{catalog.FieldCategory}, false), nil
}

func (s *CatalogService) ByBrand(ctx context.Context, name string, allowPartial bool) (catalog.Result, error) {
	ps, err := s.List(ctx, false)
	if err != nil {
		return catalog.Result{}, err
	}
	return catalog.Match(ps, name, []catalog.Field{catalog.FieldWebsite, catalog.FieldBrand}, allowPartial), nil
}

// Topics lists the brands or categories present in the visible catalog.
func (s *CatalogService) Topics(ctx context.Context, kind domain.TopicKind) ([]catalog.Topic, error) {
	field := catalog.FieldCategory
	switch kind {
	case domain.TopicBrand:
		field = catalog.FieldBrand
	case domain.TopicCategory:
	default:
		return nil, validate.Errors{"kind": "must be brand or category"}
	}
	ps, err := s.List(ctx, false)
	if err != nil {
		return nil, err
	}
	return catalog.Topics(ps, field), nil
}

func (s *CatalogService) Search(ctx context.Context, term, priceRange string, sizes, categories []string) ([]domain.Product, error) {
	pr, err := catalog.ParsePriceRange(priceRange)
	if err != nil {
		return nil, validate.Errors{"priceRange": "must be one of " + strings.Join(catalog.PriceRangeNames(), ", ")}
	}
	ps, err := s.Products.All(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Search(ps, validate.Q(term), catalog.Filters{PriceRange: pr, Sizes: sizes, Categories: categories}), nil
}

// ForSeller lists a seller's own products, blocked or not.
func (s *CatalogService) ForSeller(ctx context.Context, sellerUID string) ([]domain.Product, error) {
	return s.Products.BySeller(ctx, sellerUID)
}

// Create stores a product for an approved seller and hands it to the
// dispatcher. A dispatch failure is logged; the product stays.
func (s *CatalogService) Create(ctx context.Context, sess domain.Session, in ProductInput) (*domain.Product, error) {
	if sess.Kind != domain.KindSeller || sess.Seller == nil {
		return nil, ErrForbidden
	}
	if sess.Seller.Status != domain.SellerApproved {
		return nil, ErrSellerNotApproved
	}
	if err := checkProduct(in); err != nil {
		return nil, err
	}

	now := s.stamp()
	brand := strings.TrimSpace(in.Brand)
	if brand == "" {
		brand = sess.Seller.BrandName
	}
	website := sess.Seller.Website
	if website == "" {
		website = domain.TopicSlug(brand)
	}
	p := domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Brand:       brand,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Stock:       in.Stock,
		SellerID:    sess.UID,
		Website:     website,
		Sizes:       in.Sizes,
		Keywords:    in.Keywords,
		Image:       in.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.OriginalPrice, p.DiscountPercent = pricing(in.Price, in.OriginalPrice, in.DiscountPercent)

	if ct, ext, data, ok := media.DecodeDataURI(in.Image); ok && s.Media != nil {
		url, err := s.Media.Upload(ctx, "products/"+p.ID+"/image."+ext, ct, data)
		if err != nil {
			return nil, err
		}
		p.Image = url
	}

	if err := s.Products.Put(ctx, p); err != nil {
		return nil, err
	}
	if s.Dispatch != nil {
		if err := s.Dispatch.ProductCreated(ctx, p); err != nil {
			applog.L().Error("product.dispatch.fail", zap.String("product_id", p.ID), zap.Error(err))
		}
	}
	return &p, nil
}

// Update applies a patch to a product owned by the signed-in seller.
func (s *CatalogService) Update(ctx context.Context, sess domain.Session, id string, patch ProductPatch) (*domain.Product, error) {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Kind != domain.KindSeller || p.SellerID != sess.UID {
		return nil, ErrForbidden
	}

	fields := map[string]any{}
	ve := validate.Errors{}
	if patch.Name != nil {
		if v, ok := validate.Name(*patch.Name, 120); ok {
			p.Name, fields["name"] = v, v
		} else {
			ve.Add("name", "required, at most 120 characters")
		}
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
		fields["description"] = p.Description
	}
	if patch.Category != nil {
		if v, ok := validate.Name(*patch.Category, 60); ok {
			p.Category, fields["category"] = v, v
		} else {
			ve.Add("category", "required, at most 60 characters")
		}
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			ve.Add("stock", "must not be negative")
		} else {
			p.Stock, fields["stock"] = *patch.Stock, *patch.Stock
		}
	}
	if patch.Sizes != nil {
		p.Sizes, fields["sizes"] = patch.Sizes, patch.Sizes
	}
	if patch.Keywords != nil {
		p.Keywords, fields["keywords"] = patch.Keywords, patch.Keywords
	}
	if patch.Price != nil || patch.OriginalPrice != nil || patch.DiscountPercent != nil {
		price, original, explicit := p.Price, p.OriginalPrice, p.DiscountPercent
		if patch.Price != nil {
			price = *patch.Price
		}
		if patch.OriginalPrice != nil {
			original = *patch.OriginalPrice
		}
		if patch.DiscountPercent != nil {
			explicit = *patch.DiscountPercent
		}
		negative := catalog.ParsePercent(string(explicit)) < 0
		if negative {
			ve.Add("discountPercent", "must not be negative")
		}
		if catalog.ParsePrice(string(price)) <= 0 {
			ve.Add("price", "must be a positive amount")
		} else if !negative {
			p.Price = price
			p.OriginalPrice, p.DiscountPercent = pricing(price, original, explicit)
			fields["price"] = p.Price
			fields["originalPrice"] = p.OriginalPrice
			fields["discountPercent"] = p.DiscountPercent
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return p, nil
	}
	p.UpdatedAt = s.stamp()
	fields["updatedAt"] = p.UpdatedAt
	if err := s.Products.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a product. Sellers may delete their own; admins any.
func (s *CatalogService) Delete(ctx context.Context, sess domain.Session, id string) error {
	p, err := s.Products.Get(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case sess.Kind == domain.KindAdmin:
	case sess.Kind == domain.KindSeller && p.SellerID == sess.UID:
	default:
		return ErrForbidden
	}
	return s.Products.Delete(ctx, id)
}

func checkProduct(in ProductInput) error {
	ve := validate.Errors{}
	if _, ok := validate.Name(in.Name, 120); !ok {
		ve.Add("name", "required, at most 120 characters")
	}
	if _, ok := validate.Name(in.Category, 60); !ok {
		ve.Add("category", "required, at most 60 characters")
	}
	if len(in.Brand) > 80 {
		ve.Add("brand", "at most 80 characters")
	}
	if catalog.ParsePrice(string(in.Price)) <= 0 {
		ve.Add("price", "must be a positive amount")
	}
	if in.Stock < 0 {
		ve.Add("stock", "must not be negative")
	}
	if catalog.ParsePercent(string(in.DiscountPercent)) < 0 {
		ve.Add("discountPercent", "must not be negative")
	}
	if len(in.Description) > 2000 {
		ve.Add("description", "at most 2000 characters")
	}
	return ve.Err()
}

// pricing keeps the original price only when it is above the price and
// derives the stored discount percentage.
func pricing(price, original, explicit domain.Amount) (domain.Amount, domain.Amount) {
	cur := catalog.ParsePrice(string(price))
	orig := catalog.ParsePrice(string(original))
	d := catalog.ComputeDiscountPercent(orig, cur, catalog.ParsePercent(string(explicit)))
	if orig <= cur {
		original = ""
	}
	if d <= 0 {
		return original, ""
	}
	return original, domain.Amount(strconv.Itoa(d))
}

func (s *CatalogService) stamp() string { return s.now().UTC().Format(time.RFC3339) }
