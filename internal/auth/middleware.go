package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/repository"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the caller into an explicit
// firewall.Actor.
type AuthMiddleware struct {
	tokens   *TokenManager
	accounts repository.AccountRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, accounts repository.AccountRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	actor, err := m.resolve(c, authHeader)
	if err != nil {
		return err
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

// Optional attaches the caller when a token is present and the anonymous actor
// otherwise. A malformed token is still rejected.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		c.Locals(actorKey, firewall.AnonymousActor())
		return c.Next()
	}
	actor, err := m.resolve(c, authHeader)
	if err != nil {
		return err
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

// resolve parses the token and reloads the account so role, tenant and wards come
// from the database rather than a possibly stale token.
func (m *AuthMiddleware) resolve(c *fiber.Ctx, authHeader string) (firewall.Actor, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return firewall.Actor{}, apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return firewall.Actor{}, apperrors.NewUnauthorized("invalid token")
	}
	if m.accounts == nil {
		return claims.Actor(), nil
	}

	account, err := m.accounts.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return firewall.Actor{}, apperrors.NewUnauthorized("account not found")
		}
		return firewall.Actor{}, apperrors.MapError(err)
	}
	if !account.Active {
		return firewall.Actor{}, apperrors.NewUnauthorized("account disabled")
	}
	return ActorFromAccount(account), nil
}

// ActorFromAccount builds the policy caller context for an account.
func ActorFromAccount(account *domain.Account) firewall.Actor {
	return firewall.Actor{
		ID:       account.ID,
		Role:     account.Role,
		TenantID: account.TenantID,
		Wards:    append([]string(nil), account.Wards...),
	}
}

// ActorFromContext retrieves the caller. Requests that passed no auth middleware
// are anonymous.
func ActorFromContext(c *fiber.Ctx) firewall.Actor {
	actor, ok := c.Locals(actorKey).(firewall.Actor)
	if !ok {
		return firewall.AnonymousActor()
	}
	return actor
}
