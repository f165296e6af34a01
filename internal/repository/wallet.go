package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const walletColumns = `id, user_id, currency, balance, version, status,
	require_transfer_codes, created_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency = $2`,
		userID, currency,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserAndCurrency: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetByUserAndCurrency: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return wallets, nil
}

func (r *WalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, currency, balance, version, status, require_transfer_codes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Currency, w.Balance, w.Version, w.Status, w.RequireTransferCodes, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetForUpdate takes a row lock on the wallet for the duration of tx. Every
// balance mutation goes through this so concurrent writers serialize.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, version = $2 WHERE id = $3 AND version = $4`,
		newBalance, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(
		&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.Version, &w.Status,
		&w.RequireTransferCodes, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
