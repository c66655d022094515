package wallet

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmsledger/internal/money"
)

var walletCols = []string{"id", "owner_id", "owner_type", "balance", "currency", "created_at", "updated_at"}

func setupWalletMock(t *testing.T) (Repository, *sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository("EGP")

	closer := func() { sqlxDB.Close() }
	return repo, sqlxDB, mock, closer
}

func TestGetOrCreate_WhenNotExists(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	ctx := context.Background()
	ownerID := uuid.New()
	walletID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, owner_type, balance, currency, created_at, updated_at FROM wallets WHERE owner_id = $1 AND owner_type = $2")).
		WithArgs(ownerID, OwnerUser).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets (id, owner_id, owner_type, balance, currency) VALUES ($1, $2, $3, 0, $4) ON CONFLICT (owner_id, owner_type) DO NOTHING RETURNING")).
		WithArgs(sqlmock.AnyArg(), ownerID, OwnerUser, "EGP").
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(walletID.String(), ownerID.String(), "USER", "0.00", "EGP", time.Now(), time.Now()))

	w, err := repo.GetOrCreate(ctx, sqlxDB, ownerID, OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, walletID, w.ID)
	assert.True(t, w.Balance.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_LostInsertRace(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	ownerID := uuid.New()
	walletID := uuid.New()
	selectQuery := regexp.QuoteMeta("SELECT id, owner_id, owner_type, balance, currency, created_at, updated_at FROM wallets WHERE owner_id = $1 AND owner_type = $2")

	mock.ExpectQuery(selectQuery).WithArgs(ownerID, OwnerBranch).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets")).
		WillReturnRows(sqlmock.NewRows(walletCols))
	mock.ExpectQuery(selectQuery).WithArgs(ownerID, OwnerBranch).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(walletID.String(), ownerID.String(), "BRANCH", "15.00", "EGP", time.Now(), time.Now()))

	w, err := repo.GetOrCreate(context.Background(), sqlxDB, ownerID, OwnerBranch)
	require.NoError(t, err)
	assert.Equal(t, walletID, w.ID)
	assert.Equal(t, "15.00", w.Balance.String())
}

func TestApplyDelta_Success_UpdateUnderLock(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	walletID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, owner_type, balance, currency, created_at, updated_at FROM wallets WHERE id = $1 FOR UPDATE")).
		WithArgs(walletID).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(walletID.String(), uuid.NewString(), "USER", "200.00", "EGP", time.Now(), time.Now()))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("99.50", sqlmock.AnyArg(), walletID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w, err := repo.ApplyDelta(context.Background(), sqlxDB, walletID, money.MustParse("-100.50"))
	require.NoError(t, err)
	assert.Equal(t, "99.50", w.Balance.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_InsufficientBalance(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	walletID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id = $1 FOR UPDATE")).
		WithArgs(walletID).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(walletID.String(), uuid.NewString(), "USER", "50.00", "EGP", time.Now(), time.Now()))

	_, err := repo.ApplyDelta(context.Background(), sqlxDB, walletID, money.MustParse("-100.00"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, errors.Is(err, money.ErrInsufficientFunds))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_NotFound(t *testing.T) {
	repo, sqlxDB, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnError(sql.ErrNoRows)

	_, err := repo.ApplyDelta(context.Background(), sqlxDB, uuid.New(), money.FromInt(1))
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestOwnerTypeValid(t *testing.T) {
	assert.True(t, OwnerUser.Valid())
	assert.True(t, OwnerCenter.Valid())
	assert.False(t, OwnerType("TEACHER").Valid())
}
