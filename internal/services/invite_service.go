package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"onsalenow/internal/repos"
)

const inviteAudience = "admin-invite"

// InviteService mints and redeems signed, time-boxed, single-use admin invitations.
type InviteService struct {
	secret []byte
	ttl    time.Duration
	used   *repos.MarkerRepo
	now    func() time.Time
}

func NewInviteService(secret string, ttl time.Duration, used *repos.MarkerRepo) *InviteService {
	return &InviteService{secret: []byte(secret), ttl: ttl, used: used, now: time.Now}
}

// Mint returns an HS256 token for email. A zero ttl uses the configured default.
func (s *InviteService) Mint(email string, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("invite secret is not configured")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToLower(strings.TrimSpace(email)),
		Audience:  jwt.ClaimStrings{inviteAudience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, audience, expiry, subject and prior use, and
// returns the invitation id without consuming it.
func (s *InviteService) Verify(ctx context.Context, token, email string) (string, error) {
	if len(s.secret) == 0 || token == "" {
		return "", ErrInviteInvalid
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(inviteAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInviteInvalid, err)
	}
	if claims.ID == "" || claims.Subject != strings.ToLower(strings.TrimSpace(email)) {
		return "", ErrInviteInvalid
	}
	used, err := s.used.Exists(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if used {
		return "", ErrInviteUsed
	}
	return claims.ID, nil
}

// Consume records the invitation as used.
func (s *InviteService) Consume(ctx context.Context, id, email string) error {
	return s.used.Mark(ctx, id, map[string]any{
		"email":      strings.ToLower(email),
		"consumedAt": s.now().UTC().Format(time.RFC3339),
	})
}

// Redeem verifies and consumes in one step.
func (s *InviteService) Redeem(ctx context.Context, token, email string) error {
	id, err := s.Verify(ctx, token, email)
	if err != nil {
		return err
	}
	return s.Consume(ctx, id, email)
}
