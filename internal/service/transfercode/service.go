// Package transfercode implements the verification gate in front of
// international transfers: three independently issued codes (COT, IMF, tax)
// that an admin issues and the user confirms.
package transfercode

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

// RequiredFlag is the explicit setting that switches the gate on globally.
const RequiredFlag = "international_transfer_codes_required"

const codeLength = 10

// Codes avoid visually ambiguous characters but verification still
// normalizes, since users retype them from emails and support chats.
const codeAlphabet = "ACDEFGHJKMNPQRTUVWXY3467"

type codeRepo interface {
	Upsert(ctx context.Context, c *domain.TransferCode) error
	GetByUserAndCategory(ctx context.Context, userID uuid.UUID, category domain.TransferCodeCategory) (*domain.TransferCode, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.TransferCode, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

type settingsRepo interface {
	GetBool(ctx context.Context, key string) (bool, error)
}

type Service struct {
	codes    codeRepo
	settings settingsRepo
}

func NewService(codes codeRepo, settings settingsRepo) *Service {
	return &Service{codes: codes, settings: settings}
}

// Issue generates a fresh code for the category, replacing any previous one
// and resetting its verification.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, category domain.TransferCodeCategory, adminID uuid.UUID) (*domain.TransferCode, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("Issue: category %q: %w", category, domain.ErrInvalidRequest)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("Issue: %w", err)
	}

	c := &domain.TransferCode{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  category,
		Code:      code,
		Active:    true,
		Verified:  false,
		IssuedBy:  adminID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.codes.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("Issue: %w", err)
	}

	logging.FromContext(ctx).Info("transfer code issued",
		"user_id", userID,
		"category", category,
		"issued_by", adminID,
	)
	return c, nil
}

// Verify compares the submitted code against the issued one after
// normalizing confusable characters, and marks the category verified on a
// match.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, category domain.TransferCodeCategory, submitted string) error {
	if !category.IsValid() {
		return fmt.Errorf("Verify: category %q: %w", category, domain.ErrInvalidRequest)
	}

	c, err := s.codes.GetByUserAndCategory(ctx, userID, category)
	if err != nil {
		return fmt.Errorf("Verify: %w", err)
	}
	if !c.Active {
		return fmt.Errorf("Verify: %w", domain.ErrTransferCodeNotIssued)
	}
	if c.Verified {
		return fmt.Errorf("Verify: %w", domain.ErrCodeAlreadyVerified)
	}

	if Normalize(submitted) != Normalize(c.Code) {
		return fmt.Errorf("Verify: %w", domain.ErrInvalidTransferCode)
	}

	if err := s.codes.MarkVerified(ctx, c.ID); err != nil {
		return fmt.Errorf("Verify: %w", err)
	}

	logging.FromContext(ctx).Info("transfer code verified", "user_id", userID, "category", category)
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TransferCode, error) {
	codes, err := s.codes.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListForUser: %w", err)
	}
	return codes, nil
}

// RequirementMet reports whether an international transfer may proceed for
// this user. The gate is off unless the global flag or the per-wallet
// override turns it on; when on, every category must be active and verified.
func (s *Service) RequirementMet(ctx context.Context, userID uuid.UUID, walletOverride bool) (bool, error) {
	required, err := s.settings.GetBool(ctx, RequiredFlag)
	if err != nil {
		return false, fmt.Errorf("RequirementMet: %w", err)
	}
	if !required && !walletOverride {
		return true, nil
	}

	codes, err := s.codes.GetByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("RequirementMet: %w", err)
	}

	verified := make(map[domain.TransferCodeCategory]bool, len(codes))
	for _, c := range codes {
		if c.Active && c.Verified {
			verified[c.Category] = true
		}
	}

	for _, category := range domain.TransferCodeCategories() {
		if !verified[category] {
			return false, nil
		}
	}
	return true, nil
}

// Normalize uppercases and maps visually confusable characters onto a
// canonical form: letter O and digit 0, I/L and 1, S and 5, B and 8, Z and 2.
func Normalize(code string) string {
	replacer := strings.NewReplacer(
		"O", "0",
		"I", "1",
		"L", "1",
		"S", "5",
		"B", "8",
		"Z", "2",
	)
	return replacer.Replace(strings.ToUpper(strings.TrimSpace(code)))
}

func generateCode() (string, error) {
	// Bytes at or above the largest multiple of the alphabet size are
	// discarded so every character stays equally likely.
	const ceiling = byte(256 - 256%len(codeAlphabet))
	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generateCode: %w", err)
		}
		for _, b := range buf {
			if b >= ceiling || len(out) == codeLength {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
		}
	}
	return string(out), nil
}
