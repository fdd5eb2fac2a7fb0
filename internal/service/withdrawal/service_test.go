package withdrawal

import (
	"context"
	"testing"

	"invest-core/internal/event"
	"invest-core/internal/model"
	"invest-core/internal/service/balance"
	"invest-core/internal/service/user"
	"invest-core/internal/testutil"
	"invest-core/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

// funded 创建一个设置了 PIN 且有 amount 可用余额的用户
func funded(t *testing.T, db *gorm.DB, amount string) *model.User {
	t.Helper()
	u := testutil.CreateUser(t, db, nil)
	require.NoError(t, user.NewService(db).SetWithdrawPin(context.Background(), u.ID, "1234", "1234", ""))
	require.NoError(t, db.Create(&model.Transaction{
		UserID: u.ID, Type: model.TxDeposit, Status: model.TxCompleted, Amount: testutil.Dec(amount),
	}).Error)
	return u
}

func TestCreateMinimumBoundary(t *testing.T) {
	db := testutil.NewDB(t)
	u := funded(t, db, "5.00")
	svc := NewService(db, DefaultRules())
	ctx := context.Background()

	_, err := svc.Create(ctx, u.ID, CreateInput{Amount: testutil.Dec("4.99"), WalletID: wallet, Pin: "1234"})
	assert.ErrorIs(t, err, errno.ErrBelowMinimum)

	tx, err := svc.Create(ctx, u.ID, CreateInput{Amount: testutil.Dec("5"), WalletID: wallet, Pin: "1234"})
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, tx.Status)
	assert.Equal(t, model.TxWithdrawal, tx.Type)
	assert.Equal(t, wallet, tx.WalletID)

	avail, err := balance.Available(db, u.ID)
	require.NoError(t, err)
	assert.True(t, avail.IsZero(), "pending withdrawal is reserved")

	var outbox model.OutboxMessage
	require.NoError(t, db.Where("topic = ?", event.TopicWithdrawalRequested).First(&outbox).Error)
}

func TestCreateRejectsOverdraft(t *testing.T) {
	db := testutil.NewDB(t)
	u := funded(t, db, "12")
	svc := NewService(db, DefaultRules())
	ctx := context.Background()

	_, err := svc.Create(ctx, u.ID, CreateInput{Amount: testutil.Dec("8"), WalletID: wallet, Pin: "1234"})
	require.NoError(t, err)

	// 第二笔超过剩余余额
	_, err = svc.Create(ctx, u.ID, CreateInput{Amount: testutil.Dec("8"), WalletID: wallet, Pin: "1234"})
	assert.ErrorIs(t, err, errno.ErrInsufficientBalance)

	var count int64
	db.Model(&model.Transaction{}).Where("type = ?", model.TxWithdrawal).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCreateValidation(t *testing.T) {
	db := testutil.NewDB(t)
	u := funded(t, db, "100")
	noPin := testutil.CreateUser(t, db, nil)
	svc := NewService(db, DefaultRules())
	ctx := context.Background()

	tests := []struct {
		name   string
		userID uint64
		in     CreateInput
		want   error
	}{
		{"zero amount", u.ID, CreateInput{Amount: testutil.Dec("0"), WalletID: wallet, Pin: "1234"}, errno.ErrBelowMinimum},
		{"short wallet", u.ID, CreateInput{Amount: testutil.Dec("10"), WalletID: "0xabc", Pin: "1234"}, errno.ErrInvalidWallet},
		{"bad pin format", u.ID, CreateInput{Amount: testutil.Dec("10"), WalletID: wallet, Pin: "12"}, errno.ErrBind},
		{"wrong pin", u.ID, CreateInput{Amount: testutil.Dec("10"), WalletID: wallet, Pin: "4321"}, errno.ErrPinIncorrect},
		{"pin not set", noPin.ID, CreateInput{Amount: testutil.Dec("10"), WalletID: wallet, Pin: "1234"}, errno.ErrPinNotSet},
		{"unknown user", 9999, CreateInput{Amount: testutil.Dec("10"), WalletID: wallet, Pin: "1234"}, errno.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.userID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReview(t *testing.T) {
	db := testutil.NewDB(t)
	u := funded(t, db, "100")
	svc := NewService(db, DefaultRules())
	ctx := context.Background()

	w1, err := svc.Create(ctx, u.ID, CreateInput{Amount: testutil.Dec("30"), WalletID: wallet, Pin: "1234"})
	require.NoError(t, err)
	w2, err := svc.Create(ctx, u.ID, CreateInput{Amount: testutil.Dec("20"), WalletID: wallet, Pin: "1234"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, 1, w1.ID, ActionApprove, "")
	assert.ErrorIs(t, err, errno.ErrBind, "approval needs proof")

	done, err := svc.Review(ctx, 1, w1.ID, ActionApprove, "https://cdn.example.com/tx.png")
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, done.Status)
	assert.Equal(t, "https://cdn.example.com/tx.png", done.ProofURL)

	cancelled, err := svc.Review(ctx, 1, w2.ID, ActionReject, "")
	require.NoError(t, err)
	assert.Equal(t, model.TxCancelled, cancelled.Status)

	_, err = svc.Review(ctx, 1, w1.ID, ActionReject, "")
	assert.ErrorIs(t, err, errno.ErrWithdrawalState)

	// 完成 30，取消的 20 退回可用余额
	avail, err := balance.Available(db, u.ID)
	require.NoError(t, err)
	assert.True(t, avail.Equal(testutil.Dec("70")), avail.String())

	pending, err := svc.List(ctx, "pending")
	require.NoError(t, err)
	assert.Empty(t, pending)
	mine, err := svc.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestReviewRejectsNonWithdrawal(t *testing.T) {
	db := testutil.NewDB(t)
	u := funded(t, db, "100")
	var deposit model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", u.ID, model.TxDeposit).First(&deposit).Error)

	_, err := NewService(db, DefaultRules()).Review(context.Background(), 1, deposit.ID, ActionReject, "")
	assert.ErrorIs(t, err, errno.ErrWithdrawalNotFound)
}
