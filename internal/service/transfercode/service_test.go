package transfercode

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

type fakeCodeRepo struct {
	codes map[domain.TransferCodeCategory]*domain.TransferCode
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[domain.TransferCodeCategory]*domain.TransferCode)}
}

func (r *fakeCodeRepo) Upsert(_ context.Context, c *domain.TransferCode) error {
	r.codes[c.Category] = c
	return nil
}

func (r *fakeCodeRepo) GetByUserAndCategory(_ context.Context, _ uuid.UUID, category domain.TransferCodeCategory) (*domain.TransferCode, error) {
	c, ok := r.codes[category]
	if !ok {
		return nil, domain.ErrTransferCodeNotIssued
	}
	return c, nil
}

func (r *fakeCodeRepo) GetByUserID(_ context.Context, _ uuid.UUID) ([]domain.TransferCode, error) {
	out := make([]domain.TransferCode, 0, len(r.codes))
	for _, c := range r.codes {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCodeRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	for _, c := range r.codes {
		if c.ID == id {
			c.Verified = true
			now := time.Now().UTC()
			c.VerifiedAt = &now
		}
	}
	return nil
}

type fakeSettings struct {
	flags map[string]bool
}

func (s fakeSettings) GetBool(_ context.Context, key string) (bool, error) {
	return s.flags[key], nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "A8C123"},
		{"  CODE  ", "C0DE"},
		{"O0Oo", "0000"},
		{"IlLi1", "11111"},
		{"S5sZ2z", "555222"},
		{"ACDEFGH", "ACDEFGH"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[rune]bool)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, ch := range code {
			require.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected character %q", ch)
			seen[ch] = true
		}
	}
	// 2000 uniformly drawn characters cover the whole alphabet.
	assert.Len(t, seen, len(codeAlphabet))
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	repo := newFakeCodeRepo()
	svc := NewService(repo, fakeSettings{})
	userID := uuid.New()
	adminID := uuid.New()

	issued, err := svc.Issue(ctx, userID, domain.TransferCodeCOT, adminID)
	require.NoError(t, err)
	require.Len(t, issued.Code, codeLength)
	for _, ch := range issued.Code {
		assert.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected character %q", ch)
	}

	err = svc.Verify(ctx, userID, domain.TransferCodeCOT, "WRONGCODE1")
	require.ErrorIs(t, err, domain.ErrInvalidTransferCode)

	// A lowercased copy with surrounding whitespace still verifies.
	require.NoError(t, svc.Verify(ctx, userID, domain.TransferCodeCOT, "  "+strings.ToLower(issued.Code)+" "))

	err = svc.Verify(ctx, userID, domain.TransferCodeCOT, issued.Code)
	require.ErrorIs(t, err, domain.ErrCodeAlreadyVerified)

	err = svc.Verify(ctx, userID, domain.TransferCodeIMF, "ANYTHING12")
	require.ErrorIs(t, err, domain.ErrTransferCodeNotIssued)

	err = svc.Verify(ctx, userID, domain.TransferCodeCategory("bogus"), issued.Code)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestRequirementMet(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	adminID := uuid.New()

	t.Run("gate off means requirement met", func(t *testing.T) {
		svc := NewService(newFakeCodeRepo(), fakeSettings{})
		ok, err := svc.RequirementMet(ctx, userID, false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("global flag blocks until all categories verified", func(t *testing.T) {
		repo := newFakeCodeRepo()
		svc := NewService(repo, fakeSettings{flags: map[string]bool{RequiredFlag: true}})

		ok, err := svc.RequirementMet(ctx, userID, false)
		require.NoError(t, err)
		assert.False(t, ok, "no codes issued yet")

		for _, category := range domain.TransferCodeCategories() {
			issued, err := svc.Issue(ctx, userID, category, adminID)
			require.NoError(t, err)
			require.NoError(t, svc.Verify(ctx, userID, category, issued.Code))
		}

		ok, err = svc.RequirementMet(ctx, userID, false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wallet override forces the gate on", func(t *testing.T) {
		svc := NewService(newFakeCodeRepo(), fakeSettings{})
		ok, err := svc.RequirementMet(ctx, userID, true)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verified but inactive code does not count", func(t *testing.T) {
		repo := newFakeCodeRepo()
		svc := NewService(repo, fakeSettings{flags: map[string]bool{RequiredFlag: true}})

		for _, category := range domain.TransferCodeCategories() {
			issued, err := svc.Issue(ctx, userID, category, adminID)
			require.NoError(t, err)
			require.NoError(t, svc.Verify(ctx, userID, category, issued.Code))
		}
		repo.codes[domain.TransferCodeTax].Active = false

		ok, err := svc.RequirementMet(ctx, userID, false)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
