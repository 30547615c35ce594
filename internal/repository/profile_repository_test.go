package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-report-api/internal/models"
)

func TestProfileRepositoryAdminLookups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_admin FROM profiles WHERE id = $1 LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_admin FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(true))

	_, err := repo.AdminByID(context.Background(), "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	isAdmin, err := repo.AdminByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles .* ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs("u1", "new@example.com", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), &models.Profile{ID: "u1", Email: "New@Example.com"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
