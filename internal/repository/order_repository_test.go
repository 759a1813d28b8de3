package repository

import (
	"context"
	"testing"
	"time"

	"order-service/internal/auth"
	"order-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Outlet{}, &model.Order{}, &model.OrderItem{},
		&model.Payment{}, &model.AuditRecord{},
	))
	return db
}

func uintPtr(v uint) *uint { return &v }

func seedOutlet(t *testing.T, db *gorm.DB, id, merchantID uint) {
	t.Helper()
	require.NoError(t, db.Create(&model.Outlet{ID: id, MerchantID: merchantID, Name: "outlet", Active: true}).Error)
}

func seedOrder(t *testing.T, db *gorm.DB, order *model.Order) *model.Order {
	t.Helper()
	if order.OrderNumber == "" {
		order.OrderNumber = model.NewOrderNumber(time.Now())
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func customer(userID uint) *auth.SecurityContext {
	return auth.NewSecurityContext(userID, auth.RoleCustomer, nil, nil, "")
}

func outletStaff(userID, outletID uint) *auth.SecurityContext {
	return auth.NewSecurityContext(userID, auth.RoleOutletStaff, nil, uintPtr(outletID), "")
}

func merchantOwner(userID, merchantID uint) *auth.SecurityContext {
	return auth.NewSecurityContext(userID, auth.RoleMerchantOwner, uintPtr(merchantID), nil, "")
}

func admin(userID uint) *auth.SecurityContext {
	return auth.NewSecurityContext(userID, auth.RoleAdmin, nil, nil, "")
}

func TestCreatePersistsOrderWithPayment(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &model.Order{
		OrderNumber: model.NewOrderNumber(time.Now()),
		UserID:      1,
		OutletID:    12,
		Status:      model.StatusPendingOutletAcceptance,
		TotalCents:  1500,
		Items: []model.OrderItem{
			{ItemID: 3, Name: "surprise bag", UnitPriceCents: 750, Quantity: 2},
		},
	}
	payment := &model.Payment{
		Amount:         1500,
		Status:         model.PaymentAuthorized,
		IdempotencyKey: "key-1",
	}
	require.NoError(t, repo.Create(ctx, order, payment))
	assert.NotZero(t, order.ID)
	assert.Equal(t, order.ID, payment.OrderID)

	loaded, err := repo.GetByID(ctx, customer(1), order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "surprise bag", loaded.Items[0].Name)
}

func TestGetByIDScoping(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOutlet(t, db, 12, 3)
	order := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance})

	// owner, outlet staff, owning merchant and admin all see the order
	for _, sctx := range []*auth.SecurityContext{
		customer(1), outletStaff(2, 12), merchantOwner(3, 3), admin(4),
	} {
		got, err := repo.GetByID(ctx, sctx, order.ID)
		require.NoError(t, err, "role %s", sctx.Role())
		assert.Equal(t, order.ID, got.ID)
	}

	// everyone outside the scope gets the same ErrNotFound an absent row gives
	for _, sctx := range []*auth.SecurityContext{
		customer(99), outletStaff(2, 13), merchantOwner(3, 4), auth.NewAnonymousContext(""), nil,
	} {
		_, err := repo.GetByID(ctx, sctx, order.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	}

	_, err := repo.GetByID(ctx, admin(4), 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListScoping(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOutlet(t, db, 12, 3)
	seedOutlet(t, db, 13, 3)
	seedOutlet(t, db, 20, 4)
	seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance})
	seedOrder(t, db, &model.Order{UserID: 1, OutletID: 13, Status: model.StatusPaid})
	seedOrder(t, db, &model.Order{UserID: 2, OutletID: 20, Status: model.StatusPendingOutletAcceptance})

	cases := []struct {
		name string
		sctx *auth.SecurityContext
		want int
	}{
		{"customer sees own orders", customer(1), 2},
		{"outlet staff sees outlet orders", outletStaff(5, 12), 1},
		{"merchant owner sees all outlets' orders", merchantOwner(6, 3), 2},
		{"admin sees everything", admin(7), 3},
		{"anonymous sees nothing", auth.NewAnonymousContext(""), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders, err := repo.List(ctx, tc.sctx, 50, 0)
			require.NoError(t, err)
			assert.Len(t, orders, tc.want)
		})
	}
}

func TestScopedRoleWithoutTenantIDSeesNothing(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPaid})

	staffWithoutOutlet := auth.NewSecurityContext(5, auth.RoleOutletStaff, nil, nil, "")
	orders, err := repo.List(ctx, staffWithoutOutlet, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestTransitionAdvancesStatusAndVersion(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance})

	require.NoError(t, repo.Transition(ctx, order, model.StatusPaid, nil))
	assert.Equal(t, model.StatusPaid, order.Status)
	assert.Equal(t, int64(1), order.Version)
	assert.NotNil(t, order.AcceptedAt)

	var stored model.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, model.StatusPaid, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.NotNil(t, stored.AcceptedAt)
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance})

	err := repo.Transition(ctx, order, model.StatusPickedUp, nil)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)

	// nothing written
	var stored model.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, model.StatusPendingOutletAcceptance, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
}

func TestTransitionVersionRace(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance})

	// two writers loaded the same version; exactly one wins
	first := *seeded
	second := *seeded
	require.NoError(t, repo.Transition(ctx, &first, model.StatusPaid, nil))

	err := repo.Transition(ctx, &second, model.StatusCancelled, nil)
	assert.ErrorIs(t, err, model.ErrConcurrentModification)

	var stored model.Order
	require.NoError(t, db.First(&stored, seeded.ID).Error)
	assert.Equal(t, model.StatusPaid, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestTransitionVanishedRowReturnsNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &model.Order{ID: 777, Status: model.StatusPendingOutletAcceptance}
	err := repo.Transition(ctx, order, model.StatusPaid, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTransitionExtraColumns(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance})
	require.NoError(t, repo.Transition(ctx, order, model.StatusDeclined, map[string]interface{}{
		"decline_reason": "sold out",
	}))

	var stored model.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, model.StatusDeclined, stored.Status)
	assert.Equal(t, "sold out", stored.DeclineReason)
	assert.NotNil(t, stored.DeclinedAt)
}

func TestUpdateReview(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	completed := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusCompleted})
	require.NoError(t, repo.UpdateReview(ctx, completed, 5, "great bag"))

	var stored model.Order
	require.NoError(t, db.First(&stored, completed.ID).Error)
	require.NotNil(t, stored.Rating)
	assert.Equal(t, 5, *stored.Rating)
	assert.Equal(t, "great bag", stored.Review)

	// non-terminal orders reject reviews outright
	active := seedOrder(t, db, &model.Order{UserID: 1, OutletID: 12, Status: model.StatusPaid})
	err := repo.UpdateReview(ctx, active, 4, "too early")
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestFindAcceptanceExpired(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := seedOrder(t, db, &model.Order{
		UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance,
		AcceptanceDeadline: now.Add(-time.Minute),
	})
	seedOrder(t, db, &model.Order{
		UserID: 1, OutletID: 12, Status: model.StatusPendingOutletAcceptance,
		AcceptanceDeadline: now.Add(time.Hour),
	})
	seedOrder(t, db, &model.Order{
		UserID: 1, OutletID: 12, Status: model.StatusPaid,
		AcceptanceDeadline: now.Add(-time.Minute),
	})

	orders, err := repo.FindAcceptanceExpired(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, expired.ID, orders[0].ID)
}

func TestFindPickupExpired(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := seedOrder(t, db, &model.Order{
		UserID: 1, OutletID: 12, Status: model.StatusReadyForPickup,
		PickupBy: now.Add(-time.Minute),
	})
	seedOrder(t, db, &model.Order{
		UserID: 1, OutletID: 12, Status: model.StatusReadyForPickup,
		PickupBy: now.Add(time.Hour),
	})

	orders, err := repo.FindPickupExpired(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, expired.ID, orders[0].ID)
}
