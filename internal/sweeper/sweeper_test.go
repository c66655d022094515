package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lmsledger/internal/actor"
	"lmsledger/internal/gateway"
	"lmsledger/internal/payment"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, a actor.Actor, req payment.CreateRequest) (*payment.Payment, error) {
	args := m.Called(ctx, a, req)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) CreateAndExecutePayment(ctx context.Context, a actor.Actor, req payment.CreateRequest) (*payment.Payment, error) {
	args := m.Called(ctx, a, req)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) CompletePayment(ctx context.Context, a actor.Actor, id uuid.UUID, paidBy *uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, a, id, paidBy)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) RefundPayment(ctx context.Context, a actor.Actor, id uuid.UUID, note string) (*payment.Payment, error) {
	args := m.Called(ctx, a, id, note)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, a actor.Actor, id uuid.UUID, note string) (*payment.Payment, error) {
	args := m.Called(ctx, a, id, note)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) ChangeStatus(ctx context.Context, a actor.Actor, id uuid.UUID, to payment.Status, note string) (*payment.Payment, error) {
	args := m.Called(ctx, a, id, to, note)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) InitiateExternalPayment(ctx context.Context, a actor.Actor, req payment.ExternalRequest) (*payment.ExternalResult, error) {
	args := m.Called(ctx, a, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ExternalResult), args.Error(1)
}

func (m *MockPaymentService) CompleteExternalPayment(ctx context.Context, a actor.Actor, id uuid.UUID, gatewayStatus string) (*payment.Payment, error) {
	args := m.Called(ctx, a, id, gatewayStatus)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) FailExternalPayment(ctx context.Context, a actor.Actor, id uuid.UUID, reason string) (*payment.Payment, error) {
	args := m.Called(ctx, a, id, reason)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) ProcessExternalPaymentCompletion(ctx context.Context, notice gateway.Notice) (*payment.Payment, error) {
	args := m.Called(ctx, notice)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	return paymentOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPaymentService) StatusHistory(ctx context.Context, id uuid.UUID) ([]payment.StatusChange, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]payment.StatusChange), args.Error(1)
}

func (m *MockPaymentService) PendingStats(ctx context.Context) (*payment.PendingStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PendingStats), args.Error(1)
}

func (m *MockPaymentService) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]payment.Payment, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func paymentOrNil(v interface{}) *payment.Payment {
	if v == nil {
		return nil
	}
	return v.(*payment.Payment)
}

func TestSweepOnce_IsolatesFailures(t *testing.T) {
	svc := new(MockPaymentService)
	s := New(svc, nil, time.Minute, 24*time.Hour)

	good1, bad, good2 := uuid.New(), uuid.New(), uuid.New()
	svc.On("ListStalePending", mock.Anything, 24*time.Hour, batchSize).
		Return([]payment.Payment{{ID: good1}, {ID: bad}, {ID: good2}}, nil)
	svc.On("CancelPayment", mock.Anything, actor.System(), good1, "expired").Return(&payment.Payment{ID: good1}, nil)
	svc.On("CancelPayment", mock.Anything, actor.System(), bad, "expired").Return(nil, errors.New("lock timeout"))
	svc.On("CancelPayment", mock.Anything, actor.System(), good2, "expired").Return(&payment.Payment{ID: good2}, nil)
	svc.On("PendingStats", mock.Anything).Return(&payment.PendingStats{Pending: 1}, nil)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{Scanned: 3, Cancelled: 2, Failed: 1}, res)
	svc.AssertExpectations(t)
}

func TestSweepOnce_ListError(t *testing.T) {
	svc := new(MockPaymentService)
	s := New(svc, nil, time.Minute, 24*time.Hour)

	svc.On("ListStalePending", mock.Anything, 24*time.Hour, batchSize).Return(nil, errors.New("db down"))

	_, err := s.SweepOnce(context.Background())
	assert.Error(t, err)
	svc.AssertNotCalled(t, "CancelPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepOnce_SkipsWhenLockHeld(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	svc := new(MockPaymentService)
	s := New(svc, client, time.Minute, 24*time.Hour)

	rmock.Regexp().ExpectSetNX(lockKey, `.+`, time.Minute).SetVal(false)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	svc.AssertNotCalled(t, "ListStalePending", mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, rmock.ExpectationsWereMet())
}

func TestSweepOnce_LockAcquiredAndReleased(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	svc := new(MockPaymentService)
	s := New(svc, client, time.Minute, 24*time.Hour)

	rmock.Regexp().ExpectSetNX(lockKey, `.+`, time.Minute).SetVal(true)
	rmock.Regexp().ExpectEval(`.+`, []string{lockKey}, `.+`).SetVal(int64(1))

	svc.On("ListStalePending", mock.Anything, 24*time.Hour, batchSize).Return([]payment.Payment{}, nil)
	svc.On("PendingStats", mock.Anything).Return(&payment.PendingStats{}, nil)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
	require.NoError(t, rmock.ExpectationsWereMet())
}

func TestSweepOnce_RedisDownStillSweeps(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	svc := new(MockPaymentService)
	s := New(svc, client, time.Minute, 24*time.Hour)

	rmock.Regexp().ExpectSetNX(lockKey, `.+`, time.Minute).SetErr(errors.New("connection refused"))

	stale := uuid.New()
	svc.On("ListStalePending", mock.Anything, 24*time.Hour, batchSize).Return([]payment.Payment{{ID: stale}}, nil)
	svc.On("CancelPayment", mock.Anything, actor.System(), stale, "expired").Return(&payment.Payment{ID: stale}, nil)
	svc.On("PendingStats", mock.Anything).Return(&payment.PendingStats{}, nil)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{Scanned: 1, Cancelled: 1, Unlocked: true}, res)
	svc.AssertExpectations(t)
	require.NoError(t, rmock.ExpectationsWereMet())
}
