// Package kyc exposes the identity-verification collaborator. The ledger
// core only ever asks one question: is this user approved to move money.
package kyc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

// Verifier reports a user's verification standing. Implementations may call
// an external KYC provider; the in-repo one reads the status the provider
// last synced onto the user record.
type Verifier interface {
	VerificationStatus(ctx context.Context, userID uuid.UUID) (domain.KYCStatus, error)
}

type statusSource interface {
	GetKYCStatus(ctx context.Context, id uuid.UUID) (domain.KYCStatus, error)
}

type Service struct {
	users statusSource
}

func NewService(users statusSource) *Service {
	return &Service{users: users}
}

func (s *Service) VerificationStatus(ctx context.Context, userID uuid.UUID) (domain.KYCStatus, error) {
	status, err := s.users.GetKYCStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.KYCStatusNotSubmitted, nil
		}
		return "", fmt.Errorf("VerificationStatus: %w", err)
	}
	return status, nil
}

// RequireApproved gates mutations: transfers, withdrawals and loan
// applications all refuse anything short of an approved status.
func RequireApproved(ctx context.Context, v Verifier, userID uuid.UUID) error {
	status, err := v.VerificationStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("RequireApproved: %w", err)
	}
	if status != domain.KYCStatusApproved {
		return fmt.Errorf("RequireApproved: status %s: %w", status, domain.ErrVerificationRequired)
	}
	return nil
}
