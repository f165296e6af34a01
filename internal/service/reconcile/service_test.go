package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/gateway"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
	"github.com/demilade-ak/vaultbank/internal/repository"
	"github.com/demilade-ak/vaultbank/internal/service/notify"
	"github.com/demilade-ak/vaultbank/internal/testutil"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeProvider struct {
	chargeErr error
	payoutErr error
}

func (f *fakeProvider) InitializeCharge(_ context.Context, req gateway.ChargeRequest) (string, string, error) {
	if f.chargeErr != nil {
		return "", "", f.chargeErr
	}
	return "prov-" + req.Reference, "https://checkout.test/" + req.Reference, nil
}

func (f *fakeProvider) InitiatePayout(_ context.Context, req gateway.PayoutRequest) (string, error) {
	if f.payoutErr != nil {
		return "", f.payoutErr
	}
	return "prov-" + req.Reference, nil
}

func setupReconcile(t *testing.T, db *sql.DB, provider *fakeProvider) (*Service, *Processor, *repository.GatewayEventRepository) {
	t.Helper()

	walletRepo := repository.NewWalletRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	eventRepo := repository.NewGatewayEventRepository(db)

	svc := NewService(
		repository.NewGatewayPaymentRepository(db),
		walletRepo,
		repository.NewUserRepository(db),
		ledger.NewStore(walletRepo, txnRepo, db),
		provider,
		kyc.NewService(repository.NewUserRepository(db)),
		notify.NewOutbox(repository.NewNotificationRepository(db)),
		"testpay",
		db,
	)
	processor := NewProcessor(eventRepo, svc, slog.Default(), time.Second)
	return svc, processor, eventRepo
}

func storeEvent(t *testing.T, repo *repository.GatewayEventRepository, reference, outcome string) *domain.GatewayEvent {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"event_id":  uuid.NewString(),
		"reference": reference,
		"outcome":   outcome,
	})
	e := &domain.GatewayEvent{
		ID:        uuid.New(),
		EventID:   uuid.NewString(),
		Reference: reference,
		Outcome:   outcome,
		Payload:   payload,
		Status:    domain.GatewayEventStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func eventStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.GatewayEventStatus {
	t.Helper()
	var status domain.GatewayEventStatus
	require.NoError(t, db.QueryRow(`SELECT status FROM gateway_events WHERE id = $1`, id).Scan(&status))
	return status
}

func TestDeposit_CreditedOnSuccessWebhook(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, processor, eventRepo := setupReconcile(t, db, &fakeProvider{})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("0"))

	res, err := svc.Deposit(ctx, user.ID, wallet.ID, d("5000"))
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPaymentStatusPending, res.Payment.Status)
	assert.NotEmpty(t, res.CheckoutURL)

	// Funds stay out of the wallet until the gateway confirms.
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("0")))

	event := storeEvent(t, eventRepo, res.Payment.Reference, "success")
	processor.poll(ctx)

	assert.Equal(t, domain.GatewayEventStatusDispatched, eventStatus(t, db, event.ID))
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("5000")))

	p, err := svc.GetByReference(ctx, res.Payment.Reference, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPaymentStatusCompleted, p.Status)

	// A replayed delivery must not credit again.
	replay := storeEvent(t, eventRepo, res.Payment.Reference, "success")
	processor.poll(ctx)
	assert.Equal(t, domain.GatewayEventStatusDispatched, eventStatus(t, db, replay.ID))
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("5000")))
}

func TestDeposit_FailedWebhookLeavesWalletUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, processor, eventRepo := setupReconcile(t, db, &fakeProvider{})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("0"))

	res, err := svc.Deposit(ctx, user.ID, wallet.ID, d("5000"))
	require.NoError(t, err)

	storeEvent(t, eventRepo, res.Payment.Reference, "failed")
	processor.poll(ctx)

	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("0")))
	p, err := svc.GetByReference(ctx, res.Payment.Reference, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPaymentStatusFailed, p.Status)
}

func TestDeposit_ProviderInitFailureFailsPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, _, _ := setupReconcile(t, db, &fakeProvider{chargeErr: errors.New("gateway unreachable")})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("0"))

	_, err := svc.Deposit(ctx, user.ID, wallet.ID, d("5000"))
	require.Error(t, err)

	// No webhook will ever arrive for this charge, so the payment must not
	// be left pending.
	var reference string
	var status domain.GatewayPaymentStatus
	require.NoError(t, db.QueryRow(
		`SELECT reference, status FROM gateway_payments WHERE wallet_id = $1`, wallet.ID,
	).Scan(&reference, &status))
	assert.Equal(t, domain.GatewayPaymentStatusFailed, status)
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("0")))

	// A stray success delivery for the failed payment is a no-op.
	require.NoError(t, svc.HandleEvent(ctx, reference, "success"))
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("0")))
}

func TestWithdraw_PreDeductsAndRefundsOnFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, processor, eventRepo := setupReconcile(t, db, &fakeProvider{})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("10000"))

	p, err := svc.Withdraw(ctx, user.ID, wallet.ID, d("4000"), "0123456789", "First Bank")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPaymentStatusPending, p.Status)

	// Pre-deducted at request time.
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("6000")))

	storeEvent(t, eventRepo, p.Reference, "failed")
	processor.poll(ctx)

	// Refunded in full.
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("10000")))
	updated, err := svc.GetByReference(ctx, p.Reference, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPaymentStatusFailed, updated.Status)

	// Replayed failure must not refund twice.
	storeEvent(t, eventRepo, p.Reference, "failed")
	processor.poll(ctx)
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("10000")))
}

func TestWithdraw_SuccessWebhookCompletesWithoutRefund(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, processor, eventRepo := setupReconcile(t, db, &fakeProvider{})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("10000"))

	p, err := svc.Withdraw(ctx, user.ID, wallet.ID, d("4000"), "0123456789", "First Bank")
	require.NoError(t, err)

	storeEvent(t, eventRepo, p.Reference, "success")
	processor.poll(ctx)

	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("6000")))
	updated, err := svc.GetByReference(ctx, p.Reference, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPaymentStatusCompleted, updated.Status)
}

func TestWithdraw_ProviderInitFailureRefundsImmediately(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, _, _ := setupReconcile(t, db, &fakeProvider{payoutErr: errors.New("gateway unreachable")})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("10000"))

	_, err := svc.Withdraw(ctx, user.ID, wallet.ID, d("4000"), "0123456789", "First Bank")
	require.Error(t, err)

	// The pre-deduction was rolled back through a refund entry.
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("10000")))
}

func TestWithdraw_RequiresFundsAndKYC(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, _, _ := setupReconcile(t, db, &fakeProvider{})

	user := testutil.SeedTestUser(t, db, "user@test.com", "User")
	unverified := testutil.SeedUnverifiedUser(t, db, "pending@test.com", "Pending")
	wallet := testutil.SeedTestWallet(t, db, user.ID, "NGN", d("100"))
	unverifiedWallet := testutil.SeedTestWallet(t, db, unverified.ID, "NGN", d("10000"))

	_, err := svc.Withdraw(ctx, user.ID, wallet.ID, d("4000"), "0123456789", "First Bank")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, testutil.GetWalletBalance(t, db, wallet.ID).Equal(d("100")))

	_, err = svc.Withdraw(ctx, unverified.ID, unverifiedWallet.ID, d("4000"), "0123456789", "First Bank")
	require.ErrorIs(t, err, domain.ErrVerificationRequired)
}

func TestHandleEvent_UnknownReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	_, processor, eventRepo := setupReconcile(t, db, &fakeProvider{})

	event := storeEvent(t, eventRepo, "DEP-"+uuid.NewString(), "success")
	processor.poll(ctx)

	assert.Equal(t, domain.GatewayEventStatusFailed, eventStatus(t, db, event.ID))
}
