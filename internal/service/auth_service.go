package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/config"
	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/repository"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates registration, login and staff provisioning.
type AuthService struct {
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// RegisterInput describes a citizen self-registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	TenantID string
}

// StaffInput describes a staff account created by a tenant admin.
type StaffInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Wards    []string
}

// Session is an issued access token.
type Session struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, accounts repository.AccountRepository) *AuthService {
	return &AuthService{
		accounts:   accounts,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// RegisterCitizen creates a citizen account and signs it in.
func (s *AuthService) RegisterCitizen(ctx context.Context, input RegisterInput) (*Session, error) {
	email, err := validateCredentials(input.Name, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	tenantID := strings.TrimSpace(input.TenantID)
	if tenantID == "" {
		return nil, apperrors.NewValidationError("tenant is required", nil)
	}

	account, err := s.createAccount(ctx, &domain.Account{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Role:     domain.RoleCitizen,
		TenantID: tenantID,
		Active:   true,
	}, input.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(account)
}

// Login authenticates any account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = auth.CompareDecoy(password, s.bcryptCost)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !account.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	return s.issue(account)
}

// CreateStaff provisions a staff account inside the admin's tenant.
func (s *AuthService) CreateStaff(ctx context.Context, actor firewall.Actor, input StaffInput) (*domain.Account, error) {
	if actor.Role != domain.RoleAdmin || actor.TenantID == "" {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if !input.Role.IsStaff() {
		return nil, apperrors.NewValidationError("unknown staff role", map[string]any{"role": input.Role})
	}
	email, err := validateCredentials(input.Name, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	var wards []string
	for _, ward := range input.Wards {
		ward = strings.TrimSpace(ward)
		if ward == "" {
			continue
		}
		if !domain.ValidWard(ward) {
			return nil, apperrors.NewValidationError("invalid ward", map[string]any{"ward": "must not contain " + domain.WardSeparator})
		}
		wards = append(wards, ward)
	}
	if input.Role == domain.RoleWardCouncillor && len(wards) == 0 {
		return nil, apperrors.NewValidationError("ward councillors need at least one ward", nil)
	}
	if input.Role != domain.RoleWardCouncillor && len(wards) > 0 {
		return nil, apperrors.NewValidationError("only ward councillors carry wards", nil)
	}

	return s.createAccount(ctx, &domain.Account{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Role:     input.Role,
		TenantID: actor.TenantID,
		Wards:    wards,
		Active:   true,
	}, input.Password)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createAccount(ctx context.Context, account *domain.Account, password string) (*domain.Account, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, err
	}
	return account, nil
}

func (s *AuthService) issue(account *domain.Account) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token, ExpiresAt: exp}, nil
}

func validateCredentials(name, email, password string) (string, error) {
	details := map[string]any{}
	if strings.TrimSpace(name) == "" {
		details["name"] = "required"
	}
	normalized := normalizeEmail(email)
	if _, err := mail.ParseAddress(normalized); err != nil {
		details["email"] = "invalid"
	}
	if len(password) < minPasswordLength {
		details["password"] = "too short"
	}
	if len(details) > 0 {
		return "", apperrors.NewValidationError("invalid account details", details)
	}
	return normalized, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
