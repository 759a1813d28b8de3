package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"order-service/internal/gateway"
	"order-service/internal/model"
	"order-service/internal/policy"
	"order-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeLocker struct {
	denied   map[string]bool
	acquired []string
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, name string, _ time.Duration) (func(ctx context.Context) error, bool, error) {
	if l.denied[name] {
		return nil, false, nil
	}
	l.acquired = append(l.acquired, name)
	release := func(context.Context) error {
		l.released = append(l.released, name)
		return nil
	}
	return release, true, nil
}

type fakeGateway struct {
	voidErr   error
	voidCalls int
}

func (g *fakeGateway) Preauthorize(context.Context, int64, string, string) (*gateway.PreauthResult, error) {
	return &gateway.PreauthResult{AuthorizationCode: "auth-1"}, nil
}

func (g *fakeGateway) Capture(context.Context, string, string) (*gateway.CaptureResult, error) {
	return &gateway.CaptureResult{CaptureCode: "cap-1"}, nil
}

func (g *fakeGateway) Void(context.Context, string, string) error {
	g.voidCalls++
	return g.voidErr
}

func (g *fakeGateway) Refund(context.Context, string, int64, string) (*gateway.RefundResult, error) {
	return &gateway.RefundResult{RefundID: "ref-1"}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) CheckAvailability(context.Context, uint, int) (bool, error) { return true, nil }
func (fakeCatalog) GetItem(_ context.Context, itemID uint) (*gateway.CatalogItem, error) {
	return &gateway.CatalogItem{ID: itemID, Name: "bag"}, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ uint, eventType string, _ interface{}) {
	n.events = append(n.events, eventType)
}

type nopSink struct{}

func (nopSink) Record(context.Context, uint, string, string, string, string) error { return nil }

type testEnv struct {
	sched    *Scheduler
	db       *gorm.DB
	gateway  *fakeGateway
	locker   *fakeLocker
	notifier *fakeNotifier
	seq      int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Outlet{}, &model.Order{}, &model.OrderItem{},
		&model.Payment{}, &model.AuditRecord{},
	))

	gw := &fakeGateway{}
	n := &fakeNotifier{}
	svc := service.NewOrderService(db, policy.NewEngine(nopSink{}), gw, fakeCatalog{}, n, zap.NewNop(), service.Options{
		AcceptanceTimeout: 5 * time.Minute,
		PickupWindow:      2 * time.Hour,
	})

	locker := &fakeLocker{denied: map[string]bool{}}
	sched := New(svc, locker, time.Second, 25*time.Second, zap.NewNop())
	return &testEnv{sched: sched, db: db, gateway: gw, locker: locker, notifier: n}
}

func (e *testEnv) seedOrder(t *testing.T, status model.OrderStatus, paymentStatus model.PaymentStatus, deadline, pickupBy time.Time) *model.Order {
	t.Helper()
	e.seq++
	order := &model.Order{
		OrderNumber:        model.NewOrderNumber(time.Now()),
		UserID:             1,
		OutletID:           12,
		Status:             status,
		AcceptanceDeadline: deadline,
		PickupBy:           pickupBy,
	}
	require.NoError(t, e.db.Create(order).Error)
	require.NoError(t, e.db.Create(&model.Payment{
		OrderID:           order.ID,
		Amount:            1000,
		Status:            paymentStatus,
		AuthorizationCode: "auth-1",
		IdempotencyKey:    fmt.Sprintf("key-%d", e.seq),
	}).Error)
	return order
}

func TestRunOnceExpiresPendingOrders(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	expired := env.seedOrder(t, model.StatusPendingOutletAcceptance, model.PaymentAuthorized, now.Add(-time.Minute), now.Add(2*time.Hour))
	fresh := env.seedOrder(t, model.StatusPendingOutletAcceptance, model.PaymentAuthorized, now.Add(time.Hour), now.Add(2*time.Hour))

	env.sched.RunOnce(context.Background())

	var stored model.Order
	require.NoError(t, env.db.First(&stored, expired.ID).Error)
	assert.Equal(t, model.StatusExpired, stored.Status)
	assert.NotNil(t, stored.ExpiredAt)

	stored = model.Order{}
	require.NoError(t, env.db.First(&stored, fresh.ID).Error)
	assert.Equal(t, model.StatusPendingOutletAcceptance, stored.Status)

	// the held authorization is released
	var payment model.Payment
	require.NoError(t, env.db.Where("order_id = ?", expired.ID).First(&payment).Error)
	assert.Equal(t, model.PaymentVoided, payment.Status)
	assert.Contains(t, env.notifier.events, "order.expired")
}

func TestRunOnceExpiresPickupOrders(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	missed := env.seedOrder(t, model.StatusReadyForPickup, model.PaymentCaptured, now.Add(-3*time.Hour), now.Add(-time.Minute))

	env.sched.RunOnce(context.Background())

	var stored model.Order
	require.NoError(t, env.db.First(&stored, missed.ID).Error)
	assert.Equal(t, model.StatusExpired, stored.Status)

	// captured funds stay captured; the bag was forfeited, not refunded
	var payment model.Payment
	require.NoError(t, env.db.Where("order_id = ?", missed.ID).First(&payment).Error)
	assert.Equal(t, model.PaymentCaptured, payment.Status)
}

func TestRunOnceRetriesFailedVoids(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	// a cancellation whose void failed leaves an authorized payment on a
	// terminal order
	cancelled := env.seedOrder(t, model.StatusCancelled, model.PaymentAuthorized, now.Add(time.Hour), now.Add(2*time.Hour))

	env.sched.RunOnce(context.Background())

	var payment model.Payment
	require.NoError(t, env.db.Where("order_id = ?", cancelled.ID).First(&payment).Error)
	assert.Equal(t, model.PaymentVoided, payment.Status)
	assert.Equal(t, 1, env.gateway.voidCalls)
}

func TestRunOnceSkipsHeldLocks(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.locker.denied[jobAcceptanceTimeout] = true

	order := env.seedOrder(t, model.StatusPendingOutletAcceptance, model.PaymentAuthorized, now.Add(-time.Minute), now.Add(2*time.Hour))

	env.sched.RunOnce(context.Background())

	// another instance holds the acceptance lock; its batch is untouched here
	var stored model.Order
	require.NoError(t, env.db.First(&stored, order.ID).Error)
	assert.Equal(t, model.StatusPendingOutletAcceptance, stored.Status)

	assert.NotContains(t, env.locker.acquired, jobAcceptanceTimeout)
	assert.Contains(t, env.locker.acquired, jobPickupTimeout)
	assert.Contains(t, env.locker.acquired, jobVoidRetry)
}

func TestRunOnceReleasesLocks(t *testing.T) {
	env := newTestEnv(t)

	env.sched.RunOnce(context.Background())

	assert.ElementsMatch(t, env.locker.acquired, env.locker.released)
	assert.Len(t, env.locker.acquired, 3)
}

func TestExpiryContinuesWhenVoidsFail(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	// the void for the first order fails at the gateway; the second order must
	// still be expired in the same run
	env.gateway.voidErr = errors.New("gateway down")
	first := env.seedOrder(t, model.StatusPendingOutletAcceptance, model.PaymentAuthorized, now.Add(-2*time.Minute), now.Add(2*time.Hour))
	second := env.seedOrder(t, model.StatusPendingOutletAcceptance, model.PaymentAuthorized, now.Add(-time.Minute), now.Add(2*time.Hour))

	env.sched.RunOnce(context.Background())

	var stored model.Order
	require.NoError(t, env.db.First(&stored, first.ID).Error)
	assert.Equal(t, model.StatusExpired, stored.Status)
	stored = model.Order{}
	require.NoError(t, env.db.First(&stored, second.ID).Error)
	assert.Equal(t, model.StatusExpired, stored.Status)

	// both authorizations remain for the void retry job on a later run
	var count int64
	require.NoError(t, env.db.Model(&model.Payment{}).
		Where("status = ?", model.PaymentAuthorized).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		env.sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
