package transfer

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
	"github.com/demilade-ak/vaultbank/internal/policy"
	"github.com/demilade-ak/vaultbank/internal/repository"
	"github.com/demilade-ak/vaultbank/internal/service/notify"
	"github.com/demilade-ak/vaultbank/internal/service/transfercode"
	"github.com/demilade-ak/vaultbank/internal/testutil"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupTransferService(t *testing.T, db *sql.DB) *Service {
	t.Helper()

	walletRepo := repository.NewWalletRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	return NewService(
		repository.NewTransferRepository(db),
		walletRepo,
		ledger.NewStore(walletRepo, txnRepo, db),
		policy.NewFeeSchedule(d("0.005"), d("0.01"), d("10")),
		policy.NewLimitChecker(txnRepo, d("500000"), d("1000000"), d("5000000")),
		transfercode.NewService(repository.NewTransferCodeRepository(db), settingsRepo),
		settingsRepo,
		kyc.NewService(repository.NewUserRepository(db)),
		notify.NewOutbox(repository.NewNotificationRepository(db)),
		db,
	)
}

func TestCreate_InternalSettlesInstantly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	receiver := testutil.SeedTestUser(t, db, "receiver@test.com", "Receiver")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("10000"))
	receiverWallet := testutil.SeedTestWallet(t, db, receiver.ID, "NGN", d("0"))

	tr, err := svc.Create(ctx, CreateRequest{
		SenderUserID:     sender.ID,
		SenderWalletID:   senderWallet.ID,
		ReceiverWalletID: &receiverWallet.ID,
		Type:             domain.TransferTypeInternal,
		Amount:           d("2500"),
		Narration:        "rent split",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusCompleted, tr.Status)
	assert.True(t, tr.Fee.IsZero(), "internal transfers carry no fee, got %s", tr.Fee)
	require.NotNil(t, tr.CompletedAt)

	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("7500")))
	assert.True(t, testutil.GetWalletBalance(t, db, receiverWallet.ID).Equal(d("2500")))

	// One debit, one credit, nothing else.
	assert.Equal(t, 2, testutil.CountEntriesForTransfer(t, db, tr.ID))
}

func TestCreate_Failures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	receiver := testutil.SeedTestUser(t, db, "receiver@test.com", "Receiver")
	unverified := testutil.SeedUnverifiedUser(t, db, "pending@test.com", "Pending")

	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("10000"))
	receiverWallet := testutil.SeedTestWallet(t, db, receiver.ID, "NGN", d("0"))
	usdWallet := testutil.SeedTestWallet(t, db, receiver.ID, "USD", d("0"))
	unverifiedWallet := testutil.SeedTestWallet(t, db, unverified.ID, "NGN", d("10000"))
	frozenWallet := testutil.SeedTestWallet(t, db, receiver.ID, "NGN", d("0"))
	testutil.FreezeWallet(t, db, frozenWallet.ID)

	tests := []struct {
		name      string
		req       CreateRequest
		wantErrIs error
	}{
		{
			name: "insufficient funds",
			req: CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   senderWallet.ID,
				ReceiverWalletID: &receiverWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("10001"),
			},
			wantErrIs: domain.ErrInsufficientFunds,
		},
		{
			name: "self transfer",
			req: CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   senderWallet.ID,
				ReceiverWalletID: &senderWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("100"),
			},
			wantErrIs: domain.ErrSelfTransfer,
		},
		{
			name: "currency mismatch",
			req: CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   senderWallet.ID,
				ReceiverWalletID: &usdWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("100"),
			},
			wantErrIs: domain.ErrCurrencyMismatch,
		},
		{
			name: "frozen receiver",
			req: CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   senderWallet.ID,
				ReceiverWalletID: &frozenWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("100"),
			},
			wantErrIs: domain.ErrWalletFrozen,
		},
		{
			name: "unverified sender",
			req: CreateRequest{
				SenderUserID:     unverified.ID,
				SenderWalletID:   unverifiedWallet.ID,
				ReceiverWalletID: &receiverWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("100"),
			},
			wantErrIs: domain.ErrVerificationRequired,
		},
		{
			name: "wallet owned by someone else",
			req: CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   unverifiedWallet.ID,
				ReceiverWalletID: &receiverWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("100"),
			},
			wantErrIs: domain.ErrWalletNotFound,
		},
		{
			name: "single transfer limit",
			req: CreateRequest{
				SenderUserID:   sender.ID,
				SenderWalletID: senderWallet.ID,
				Type:           domain.TransferTypeDomestic,
				Amount:         d("500001"),
				Beneficiary:    &domain.Beneficiary{Name: "B", AccountNumber: "0123456789", BankName: "First Bank"},
			},
			wantErrIs: domain.ErrSingleTransferLimitExceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			require.ErrorIs(t, err, tc.wantErrIs)
		})
	}

	// None of the failures moved money.
	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("10000")))
	assert.True(t, testutil.GetWalletBalance(t, db, receiverWallet.ID).Equal(d("0")))
}

func TestCreate_DomesticQueuesForApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("10000"))

	tr, err := svc.Create(ctx, CreateRequest{
		SenderUserID:   sender.ID,
		SenderWalletID: senderWallet.ID,
		Type:           domain.TransferTypeDomestic,
		Amount:         d("1000"),
		Beneficiary: &domain.Beneficiary{
			Name:          "Jane Doe",
			AccountNumber: "0123456789",
			BankName:      "First Bank",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, tr.Status)
	// 0.5% of 1000 is below the 10 minimum.
	assert.True(t, tr.Fee.Equal(d("10")), "got fee %s", tr.Fee)

	// Nothing settles until an admin approves; the pending debit entry is
	// recorded without touching the balance.
	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("10000")))
	assert.Equal(t, 1, testutil.CountEntriesForTransfer(t, db, tr.ID))

	pending, err := svc.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tr.ID, pending[0].ID)
}

func TestApprove(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	admin := testutil.SeedAdmin(t, db, "admin@test.com", "Admin")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("10000"))

	tr, err := svc.Create(ctx, CreateRequest{
		SenderUserID:   sender.ID,
		SenderWalletID: senderWallet.ID,
		Type:           domain.TransferTypeDomestic,
		Amount:         d("4000"),
		Beneficiary:    &domain.Beneficiary{Name: "Jane Doe", AccountNumber: "0123456789", BankName: "First Bank"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.TransferStatusPending, tr.Status)

	approved, err := svc.Approve(ctx, tr.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusCompleted, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, admin.ID, *approved.ApprovedBy)

	// Amount plus the 20 proportional fee.
	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("5980")),
		"got %s", testutil.GetWalletBalance(t, db, senderWallet.ID))
	assert.Equal(t, 2, testutil.CountEntriesForTransfer(t, db, tr.ID))

	// Second approval must not double-settle.
	_, err = svc.Approve(ctx, tr.ID, admin.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("5980")))
}

func TestReject(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	admin := testutil.SeedAdmin(t, db, "admin@test.com", "Admin")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("10000"))

	tr, err := svc.Create(ctx, CreateRequest{
		SenderUserID:   sender.ID,
		SenderWalletID: senderWallet.ID,
		Type:           domain.TransferTypeDomestic,
		Amount:         d("4000"),
		Beneficiary:    &domain.Beneficiary{Name: "Jane Doe", AccountNumber: "0123456789", BankName: "First Bank"},
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, tr.ID, admin.ID, "beneficiary account failed verification")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusFailed, rejected.Status)
	require.NotNil(t, rejected.FailureReason)

	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("10000")))

	var entryStatus string
	err = db.QueryRow(
		`SELECT status FROM transactions WHERE transfer_id = $1`, tr.ID,
	).Scan(&entryStatus)
	require.NoError(t, err)
	assert.Equal(t, "failed", entryStatus)

	_, err = svc.Approve(ctx, tr.ID, admin.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestCreate_InternalQueuedByFlag(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	testutil.SetSetting(t, db, InternalApprovalFlag, "true")

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	receiver := testutil.SeedTestUser(t, db, "receiver@test.com", "Receiver")
	admin := testutil.SeedAdmin(t, db, "admin@test.com", "Admin")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("10000"))
	receiverWallet := testutil.SeedTestWallet(t, db, receiver.ID, "NGN", d("0"))

	tr, err := svc.Create(ctx, CreateRequest{
		SenderUserID:     sender.ID,
		SenderWalletID:   senderWallet.ID,
		ReceiverWalletID: &receiverWallet.ID,
		Type:             domain.TransferTypeInternal,
		Amount:           d("2500"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, tr.Status)
	assert.True(t, testutil.GetWalletBalance(t, db, receiverWallet.ID).Equal(d("0")))

	approved, err := svc.Approve(ctx, tr.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusCompleted, approved.Status)

	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("7500")))
	assert.True(t, testutil.GetWalletBalance(t, db, receiverWallet.ID).Equal(d("2500")))

	// The pending entry logged at enqueue settles in place: still exactly a
	// debit and a credit.
	assert.Equal(t, 2, testutil.CountEntriesForTransfer(t, db, tr.ID))
}

func TestCreate_InternationalRequiresCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	testutil.SetSetting(t, db, transfercode.RequiredFlag, "true")

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	admin := testutil.SeedAdmin(t, db, "admin@test.com", "Admin")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "USD", d("100000"))

	req := CreateRequest{
		SenderUserID:   sender.ID,
		SenderWalletID: senderWallet.ID,
		Type:           domain.TransferTypeInternational,
		Amount:         d("5000"),
		Beneficiary: &domain.Beneficiary{
			Name:          "Hans Brandt",
			AccountNumber: "DE89370400440532013000",
			BankName:      "Deutsche Bank",
			SwiftCode:     "DEUTDEFF",
			Country:       "DE",
		},
	}

	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrTransferCodeRequired)

	codeSvc := transfercode.NewService(
		repository.NewTransferCodeRepository(db),
		repository.NewSettingsRepository(db),
	)
	for _, category := range domain.TransferCodeCategories() {
		issued, err := codeSvc.Issue(ctx, sender.ID, category, admin.ID)
		require.NoError(t, err)
		require.NoError(t, codeSvc.Verify(ctx, sender.ID, category, issued.Code))
	}

	tr, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, tr.Status)
	// 1% international fee.
	assert.True(t, tr.Fee.Equal(d("50")), "got fee %s", tr.Fee)
}

func TestCreate_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	receiver := testutil.SeedTestUser(t, db, "receiver@test.com", "Receiver")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("1000"))
	receiverWallet := testutil.SeedTestWallet(t, db, receiver.ID, "NGN", d("0"))

	// Ten racing 300 debits against a 1000 balance: at most three can win.
	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   senderWallet.ID,
				ReceiverWalletID: &receiverWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("300"),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}
	require.Equal(t, 3, succeeded)

	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("100")))
	assert.True(t, testutil.GetWalletBalance(t, db, receiverWallet.ID).Equal(d("900")))
}

func TestCreate_ConcurrentTransfersRespectDailyLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := setupTransferService(t, db)

	sender := testutil.SeedTestUser(t, db, "sender@test.com", "Sender")
	receiver := testutil.SeedTestUser(t, db, "receiver@test.com", "Receiver")
	senderWallet := testutil.SeedTestWallet(t, db, sender.ID, "NGN", d("2000000"))
	receiverWallet := testutil.SeedTestWallet(t, db, receiver.ID, "NGN", d("0"))

	// Four racing 400000 transfers against a 1000000 daily ceiling: each
	// fits alone, but the in-transaction re-check lets only two through.
	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, CreateRequest{
				SenderUserID:     sender.ID,
				SenderWalletID:   senderWallet.ID,
				ReceiverWalletID: &receiverWallet.ID,
				Type:             domain.TransferTypeInternal,
				Amount:           d("400000"),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrDailyLimitExceeded)
	}
	require.Equal(t, 2, succeeded)

	assert.True(t, testutil.GetWalletBalance(t, db, senderWallet.ID).Equal(d("1200000")))
	assert.True(t, testutil.GetWalletBalance(t, db, receiverWallet.ID).Equal(d("800000")))
}
