// Package identity handles registration, login and self-service profile
// changes for account holders.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tujenge/tujenge/internal/account"
	"github.com/tujenge/tujenge/internal/auth"
	"github.com/tujenge/tujenge/internal/ledger"
	"github.com/tujenge/tujenge/internal/money"
	"github.com/tujenge/tujenge/internal/notification"
	"github.com/tujenge/tujenge/internal/referral"
)

const minPasswordLength = 6

var (
	// ErrInvalidCredentials is returned for an unknown phone or wrong password.
	ErrInvalidCredentials = errors.New("invalid phone or password")
	// ErrInvalidRegistration covers malformed registration input.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// Service manages the account holder lifecycle.
type Service struct {
	store       ledger.Store
	propagator  *referral.Propagator
	issuer      *auth.Issuer
	notifier    *notification.Dispatcher
	signupBonus decimal.Decimal
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates an identity service. A zero signupBonus disables the
// inviter reward.
func NewService(store ledger.Store, propagator *referral.Propagator, issuer *auth.Issuer, notifier *notification.Dispatcher, signupBonus decimal.Decimal, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		propagator:  propagator,
		issuer:      issuer,
		notifier:    notifier,
		signupBonus: signupBonus,
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterInput is the onboarding request.
type RegisterInput struct {
	Phone      string
	FullName   string
	Password   string
	ReferredBy string
}

// Register creates an unactivated account. A referrer that is the caller or
// does not exist is ignored.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Profile, error) {
	phone := account.NormalizePhone(in.Phone)
	name := strings.TrimSpace(in.FullName)
	switch {
	case len(phone) < 9:
		return Profile{}, fmt.Errorf("%w: phone number is required", ErrInvalidRegistration)
	case name == "":
		return Profile{}, fmt.Errorf("%w: full name is required", ErrInvalidRegistration)
	case len(in.Password) < minPasswordLength:
		return Profile{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, minPasswordLength)
	}

	hash, err := account.HashSecret(in.Password)
	if err != nil {
		return Profile{}, err
	}
	acc := account.New(phone, name, hash, s.now())

	referrer := account.NormalizePhone(in.ReferredBy)
	if referrer != "" && referrer != phone {
		if _, err := s.store.Get(ctx, referrer); err == nil {
			acc.ReferredBy = referrer
		} else if !errors.Is(err, account.ErrNotFound) {
			return Profile{}, fmt.Errorf("lookup referrer: %w", err)
		}
	}

	if err := s.store.Create(ctx, acc); err != nil {
		return Profile{}, err
	}
	s.logger.Info("account registered", "phone", phone, "referred_by", acc.ReferredBy)

	if acc.ReferredBy != "" {
		if _, err := s.propagator.LinkDownline(ctx, phone, acc.ReferredBy); err != nil {
			s.logger.Warn("downline link incomplete", "phone", phone, "error", err)
		}
		if err := s.rewardInviter(ctx, acc.ReferredBy, phone); err != nil {
			s.logger.Warn("signup bonus failed", "phone", phone, "inviter", acc.ReferredBy, "error", err)
		}
	}

	s.notifier.Dispatch(notification.Message{
		Kind:        notification.KindRegistration,
		Destination: phone,
		Body:        fmt.Sprintf("New registration: %s (%s)", name, phone),
	})
	return NewProfile(acc), nil
}

func (s *Service) rewardInviter(ctx context.Context, inviter, phone string) error {
	if !s.signupBonus.IsPositive() {
		return nil
	}
	bonus := money.Primary.Round(s.signupBonus)
	now := s.now().UTC()
	_, err := s.store.Update(ctx, inviter, func(acc *account.Account) error {
		if _, err := acc.AppendIdempotent(account.Transaction{
			ID:        "SIGNUP-" + phone,
			Type:      account.TypeSignupBonus,
			Asset:     money.Primary,
			Amount:    bonus,
			Timestamp: now,
			Detail:    "Invited " + phone,
		}); err != nil {
			return err
		}
		if err := acc.Credit(money.Primary, bonus); err != nil {
			return err
		}
		acc.ReferralBonus = acc.ReferralBonus.Add(bonus)
		acc.Notify(account.Notification{
			ID:        uuid.NewString(),
			Title:     "Referral bonus",
			Message:   fmt.Sprintf("You earned KES %s for inviting %s.", bonus.StringFixed(2), phone),
			Timestamp: now,
		})
		return nil
	})
	if errors.Is(err, account.ErrDuplicateExternalEvent) {
		return nil
	}
	return err
}

// Session is a successful login.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Profile     Profile   `json:"profile"`
}

// Login verifies the password and issues an access token.
func (s *Service) Login(ctx context.Context, phone, password string) (Session, error) {
	acc, err := s.store.Get(ctx, account.NormalizePhone(phone))
	if errors.Is(err, account.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !acc.VerifyPassword(password) {
		return Session{}, ErrInvalidCredentials
	}
	token, exp, err := s.issuer.Issue(acc.Phone)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{AccessToken: token, ExpiresAt: exp, Profile: NewProfile(acc)}, nil
}

// Profile returns the owner view of an account.
func (s *Service) Profile(ctx context.Context, phone string) (Profile, error) {
	acc, err := s.store.Get(ctx, phone)
	if err != nil {
		return Profile{}, err
	}
	return NewProfile(acc), nil
}

// SetPIN sets or replaces the withdrawal PIN. Replacing requires the current PIN.
func (s *Service) SetPIN(ctx context.Context, phone, current, pin string) error {
	_, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		if err := acc.VerifyPIN(current); err != nil {
			return err
		}
		if err := acc.SetPIN(pin); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
		}
		return nil
	})
	return err
}

// MarkNotificationsRead flags the inbox as read and returns how many changed.
func (s *Service) MarkNotificationsRead(ctx context.Context, phone string) (int, error) {
	var changed int
	_, err := s.store.Update(ctx, phone, func(acc *account.Account) error {
		changed = acc.MarkNotificationsRead()
		return nil
	})
	return changed, err
}
