package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-kit/report-service/internal/domain"
)

func TestAccountCreate(t *testing.T) {
	mock := newMock(t)
	repo := NewAccountRepository(mock)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("Thandi", "thandi@example.org", "hash", domain.RoleWardCouncillor, "cpt", []string{"W12"}, true).
		WillReturnRows(mock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("acc-1", now, now))

	account := &domain.Account{
		Name:         "Thandi",
		Email:        "thandi@example.org",
		PasswordHash: "hash",
		Role:         domain.RoleWardCouncillor,
		TenantID:     "cpt",
		Wards:        []string{"W12"},
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), account))
	assert.Equal(t, "acc-1", account.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("", "dup@example.org", "", domain.Role(""), "", []string{}, false).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), &domain.Account{Email: "dup@example.org"})
	assert.True(t, errors.Is(err, ErrDuplicateEmail))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountGetByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewAccountRepository(mock)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email=$1")).
		WithArgs("thandi@example.org").
		WillReturnRows(mock.NewRows([]string{"id", "name", "email", "password_hash", "role", "tenant_id", "wards", "active", "created_at", "updated_at"}).
			AddRow("acc-1", "Thandi", "thandi@example.org", "hash", domain.RoleWardCouncillor, "cpt", []string{"W12", "W13"}, true, now, now))

	account, err := repo.GetByEmail(context.Background(), "thandi@example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleWardCouncillor, account.Role)
	assert.Equal(t, []string{"W12", "W13"}, account.Wards)
}

func TestAccountGetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id=$1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}
