package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, name, domain.UserRoleCustomer, domain.KYCStatusApproved)
}

func SeedUnverifiedUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, name, domain.UserRoleCustomer, domain.KYCStatusPending)
}

func SeedAdmin(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, name, domain.UserRoleAdmin, domain.KYCStatusApproved)
}

func seedUser(t *testing.T, db *sql.DB, email, name string, role domain.UserRole, kyc domain.KYCStatus) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		KYCStatus:    kyc,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, kyc_status, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.KYCStatus, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func SeedTestWallet(t *testing.T, db *sql.DB, userID uuid.UUID, currency string, balance decimal.Decimal) *domain.Wallet {
	t.Helper()

	w := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  domain.Currency(currency),
		Balance:   balance,
		Version:   0,
		Status:    domain.WalletStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO wallets (id, user_id, currency, balance, version, status, require_transfer_codes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Currency, w.Balance, w.Version, w.Status, w.RequireTransferCodes, w.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed wallet %s/%s: %v", userID, currency, err)
	}
	return w
}

func FreezeWallet(t *testing.T, db *sql.DB, walletID uuid.UUID) {
	t.Helper()

	if _, err := db.Exec(`UPDATE wallets SET status = 'frozen' WHERE id = $1`, walletID); err != nil {
		t.Fatalf("freeze wallet %s: %v", walletID, err)
	}
}

func SetSetting(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		t.Fatalf("set setting %s: %v", key, err)
	}
}

func GetWalletBalance(t *testing.T, db *sql.DB, walletID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", walletID, err)
	}
	return balance
}

func CountEntriesForTransfer(t *testing.T, db *sql.DB, transferID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE transfer_id = $1`, transferID).Scan(&count)
	if err != nil {
		t.Fatalf("count entries for transfer %s: %v", transferID, err)
	}
	return count
}

func CountEntriesForLoan(t *testing.T, db *sql.DB, loanID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE loan_id = $1`, loanID).Scan(&count)
	if err != nil {
		t.Fatalf("count entries for loan %s: %v", loanID, err)
	}
	return count
}
