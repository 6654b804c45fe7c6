package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/repos"
	"onsalenow/internal/validate"
)

// AuthService is the identity gateway: credentials live in the account store,
// profiles in the record store, and Current is the one place a session is resolved.
type AuthService struct {
	Accounts *repos.AccountRepo
	Profiles *repos.ProfileRepo
	Invites  *InviteService
	Cost     int
	now      func() time.Time
}

func NewAuthService(accounts *repos.AccountRepo, profiles *repos.ProfileRepo, invites *InviteService, cost int) *AuthService {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{Accounts: accounts, Profiles: profiles, Invites: invites, Cost: cost, now: time.Now}
}

type BuyerProfile struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type SellerProfile struct {
	BrandName   string `json:"brandName"`
	OwnerName   string `json:"ownerName"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

func (s *AuthService) RegisterBuyer(ctx context.Context, sid, email, password string, p BuyerProfile) (domain.Session, error) {
	ve := validate.Errors{}
	email = checkCredentials(ve, email, password)
	name, ok := validate.Name(p.Name, 60)
	if !ok {
		ve.Add("name", "required, at most 60 characters")
	}
	if err := ve.Err(); err != nil {
		return domain.Session{}, err
	}

	acc, err := s.createAccount(ctx, email, password, domain.KindBuyer)
	if err != nil {
		return domain.Session{}, err
	}
	b := domain.Buyer{
		UID: acc.ID, Email: email, Name: name, Phone: p.Phone, Address: p.Address,
		Status: domain.BuyerUnblocked, CreatedAt: s.stamp(),
	}
	if err := s.Profiles.PutBuyer(ctx, b); err != nil {
		_ = s.Accounts.Delete(ctx, acc.ID)
		return domain.Session{}, err
	}
	if err := s.Accounts.BindSession(ctx, sid, acc.ID); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: sid, Kind: domain.KindBuyer, UID: acc.ID, Email: email, Buyer: &b}, nil
}

// RegisterSeller creates a pending seller; an admin approves it later.
func (s *AuthService) RegisterSeller(ctx context.Context, sid, email, password string, p SellerProfile) (domain.Session, error) {
	ve := validate.Errors{}
	email = checkCredentials(ve, email, password)
	brand, ok := validate.Name(p.BrandName, 80)
	if !ok {
		ve.Add("brandName", "required, at most 80 characters")
	}
	website := p.Website
	if website == "" {
		website = brand
	}
	website = domain.TopicSlug(website)
	if ok && website == "" {
		ve.Add("brandName", "must contain letters or digits")
	}
	if err := ve.Err(); err != nil {
		return domain.Session{}, err
	}

	acc, err := s.createAccount(ctx, email, password, domain.KindSeller)
	if err != nil {
		return domain.Session{}, err
	}
	sl := domain.Seller{
		UID: acc.ID, Email: email, BrandName: brand, OwnerName: p.OwnerName, Phone: p.Phone,
		Address: p.Address, Description: p.Description, Website: website,
		Status: domain.SellerPending, CreatedAt: s.stamp(),
	}
	if err := s.Profiles.PutSeller(ctx, sl); err != nil {
		_ = s.Accounts.Delete(ctx, acc.ID)
		return domain.Session{}, err
	}
	if err := s.Accounts.BindSession(ctx, sid, acc.ID); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: sid, Kind: domain.KindSeller, UID: acc.ID, Email: email, Seller: &sl}, nil
}

// RegisterAdmin requires an unused invitation minted for this e-mail.
func (s *AuthService) RegisterAdmin(ctx context.Context, sid, email, password, name, inviteToken string) (domain.Session, error) {
	ve := validate.Errors{}
	email = checkCredentials(ve, email, password)
	name, ok := validate.Name(name, 60)
	if !ok {
		ve.Add("name", "required, at most 60 characters")
	}
	if err := ve.Err(); err != nil {
		return domain.Session{}, err
	}

	inviteID, err := s.Invites.Verify(ctx, inviteToken, email)
	if err != nil {
		return domain.Session{}, err
	}
	acc, err := s.createAccount(ctx, email, password, domain.KindAdmin)
	if err != nil {
		return domain.Session{}, err
	}
	a := domain.Admin{UID: acc.ID, Email: email, Name: name, Role: "admin", CreatedAt: s.stamp()}
	if err := s.Profiles.PutAdmin(ctx, a); err != nil {
		_ = s.Accounts.Delete(ctx, acc.ID)
		return domain.Session{}, err
	}
	if err := s.Invites.Consume(ctx, inviteID, email); err != nil {
		applog.L().Error("invite.consume.fail", zap.String("invite_id", inviteID), zap.Error(err))
	}
	if err := s.Accounts.BindSession(ctx, sid, acc.ID); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: sid, Kind: domain.KindAdmin, UID: acc.ID, Email: email, Admin: &a}, nil
}

// Login checks credentials, then the profile for role. A missing or blocked
// profile signs the session out even though the password matched.
func (s *AuthService) Login(ctx context.Context, sid, email, password string, role domain.SessionKind) (domain.Session, error) {
	if !role.Role() {
		return domain.Session{}, validate.Errors{"role": "must be buyer, seller or admin"}
	}
	acc, err := s.Accounts.ByEmail(ctx, email)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.Hash), []byte(password)) != nil {
		return domain.Session{}, ErrInvalidCredentials
	}

	sess, err := s.resolve(ctx, sid, acc, role)
	if err != nil {
		_ = s.Accounts.UnbindSession(ctx, sid)
		return domain.Session{}, err
	}
	if err := s.Accounts.BindSession(ctx, sid, acc.ID); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Accounts.UnbindSession(ctx, sid)
}

// Current resolves the session bound to sid. Profiles are re-read on every
// call so a block applies on the next request; a blocked or orphaned
// session is unbound and reported as anonymous.
func (s *AuthService) Current(ctx context.Context, sid string) (domain.Session, error) {
	if sid == "" {
		return domain.AnonymousSession(sid), nil
	}
	acc, err := s.Accounts.SessionAccount(ctx, sid)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.AnonymousSession(sid), nil
	}
	if err != nil {
		return domain.AnonymousSession(sid), err
	}
	sess, err := s.resolve(ctx, sid, acc, domain.SessionKind(acc.Role))
	switch {
	case errors.Is(err, ErrAccountBlocked), errors.Is(err, ErrProfileMissing):
		_ = s.Accounts.UnbindSession(ctx, sid)
		return domain.AnonymousSession(sid), nil
	case err != nil:
		return domain.AnonymousSession(sid), err
	}
	return sess, nil
}

var editableFields = map[domain.SessionKind]map[string]bool{
	domain.KindBuyer:  {"name": true, "phone": true, "address": true},
	domain.KindSeller: {"ownerName": true, "phone": true, "address": true, "description": true},
	domain.KindAdmin:  {"name": true},
}

// UpdateProfile writes whitelisted profile fields for the signed-in user.
func (s *AuthService) UpdateProfile(ctx context.Context, sess domain.Session, partial map[string]any) (domain.Session, error) {
	allowed, ok := editableFields[sess.Kind]
	if !ok {
		return domain.Session{}, ErrForbidden
	}
	ve := validate.Errors{}
	fields := map[string]any{}
	for k, v := range partial {
		str, isStr := v.(string)
		switch {
		case !allowed[k]:
			ve.Add(k, "not editable")
		case !isStr:
			ve.Add(k, "must be a string")
		case (k == "name") && str == "":
			ve.Add(k, "required")
		case len(str) > 500:
			ve.Add(k, "too long")
		default:
			fields[k] = str
		}
	}
	if err := ve.Err(); err != nil {
		return domain.Session{}, err
	}
	if len(fields) == 0 {
		return sess, nil
	}
	fields["updatedAt"] = s.stamp()

	var err error
	switch sess.Kind {
	case domain.KindBuyer:
		err = s.Profiles.UpdateBuyer(ctx, sess.UID, fields)
	case domain.KindSeller:
		err = s.Profiles.UpdateSeller(ctx, sess.UID, fields)
	case domain.KindAdmin:
		err = s.Profiles.UpdateAdmin(ctx, sess.Email, fields)
	}
	if err != nil {
		return domain.Session{}, err
	}
	return s.Current(ctx, sess.ID)
}

func (s *AuthService) resolve(ctx context.Context, sid string, acc *repos.Account, role domain.SessionKind) (domain.Session, error) {
	sess := domain.Session{ID: sid, Kind: role, UID: acc.ID, Email: acc.Email}
	switch role {
	case domain.KindBuyer:
		b, err := s.Profiles.Buyer(ctx, acc.ID)
		if err != nil {
			return domain.Session{}, profileErr(err)
		}
		if b.Status == domain.BuyerBlocked {
			return domain.Session{}, ErrAccountBlocked
		}
		sess.Buyer = b
	case domain.KindSeller:
		sl, err := s.Profiles.Seller(ctx, acc.ID)
		if err != nil {
			return domain.Session{}, profileErr(err)
		}
		if sl.Status == domain.SellerBlocked {
			return domain.Session{}, ErrAccountBlocked
		}
		sess.Seller = sl
	case domain.KindAdmin:
		a, err := s.Profiles.Admin(ctx, acc.Email)
		if err != nil {
			return domain.Session{}, profileErr(err)
		}
		sess.Admin = a
	default:
		return domain.Session{}, ErrProfileMissing
	}
	return sess, nil
}

func profileErr(err error) error {
	if errors.Is(err, repos.ErrNotFound) {
		return ErrProfileMissing
	}
	return err
}

func (s *AuthService) createAccount(ctx context.Context, email, password string, role domain.SessionKind) (*repos.Account, error) {
	if _, err := s.Accounts.ByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repos.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, err
	}
	acc := repos.Account{ID: uuid.NewString(), Email: email, Hash: string(hash), Role: string(role)}
	if err := s.Accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repos.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return &acc, nil
}

func (s *AuthService) stamp() string { return s.now().UTC().Format(time.RFC3339) }

func checkCredentials(ve validate.Errors, email, password string) string {
	clean, ok := validate.Email(email)
	if !ok {
		ve.Add("email", "invalid email address")
	}
	if !validate.Password(password) {
		ve.Add("password", "8-64 characters with upper, lower, digit and symbol")
	}
	return clean
}
