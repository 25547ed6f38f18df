//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/internal/delivery"
	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/tracking"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/test/helpers"
)

func seedPackageType(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`SELECT id FROM package_types WHERE name = 'small'`).Scan(&id)
	require.NoError(t, err, "seed migration should have inserted package types")
	return id
}

func seedCourier(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO couriers (user_id, vehicle_type, max_weight_lbs, service_radius_miles, is_available)
		VALUES ($1, 'car', 50, 10, TRUE)`, userID)
	require.NoError(t, err)
}

func newTestDelivery(senderID, packageTypeID uuid.UUID) *delivery.Delivery {
	now := time.Now()
	return &delivery.Delivery{
		ID:               uuid.New(),
		SenderID:         senderID,
		Status:           delivery.StatusSearchingCourier,
		StatusSince:      now,
		PickupLatitude:   40.7484,
		PickupLongitude:  -73.9857,
		PickupAddress:    "350 5th Ave, New York, NY",
		DropoffLatitude:  40.7527,
		DropoffLongitude: -73.9772,
		DropoffAddress:   "89 E 42nd St, New York, NY",
		PackageTypeID:    packageTypeID,
		WeightLbs:        4.5,
		RecipientName:    "Pat Recipient",
		RecipientPhone:   "+12125550100",
		VerificationCode: "4821",
		Priority:         "standard",
		DistanceMiles:    1.2,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newTestPayment(d *delivery.Delivery) *payments.Payment {
	return &payments.Payment{
		ID:            uuid.New(),
		DeliveryID:    d.ID,
		SenderID:      d.SenderID,
		Amount:        12.48,
		Currency:      "USD",
		PaymentMethod: "card",
		Status:        payments.StatusAuthorized,
		BaseFee:       8.99,
		DistanceFee:   2.40,
		Tax:           1.09,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.CreatedAt,
	}
}

func createTestDelivery(t *testing.T, repo *delivery.Repository, senderID, packageTypeID uuid.UUID) *delivery.Delivery {
	t.Helper()
	d := newTestDelivery(senderID, packageTypeID)
	links := []*tracking.TrackingLink{
		{ID: uuid.New(), DeliveryID: d.ID, Token: uuid.NewString(), IsRecipient: true, ExpiresAt: d.CreatedAt.Add(72 * time.Hour), CreatedAt: d.CreatedAt},
		{ID: uuid.New(), DeliveryID: d.ID, Token: uuid.NewString(), ExpiresAt: d.CreatedAt.Add(72 * time.Hour), CreatedAt: d.CreatedAt},
	}
	require.NoError(t, repo.CreateDelivery(context.Background(), d, newTestPayment(d), nil, links))
	return d
}

func applyCourierTransition(t *testing.T, repo *delivery.Repository, d *delivery.Delivery, courierID uuid.UUID, from, to string, credit float64) {
	t.Helper()
	res, err := repo.ApplyTransition(context.Background(), delivery.Transition{
		DeliveryID:    d.ID,
		From:          from,
		To:            to,
		ActorID:       &courierID,
		ActorRole:     delivery.ActorCourier,
		CourierCredit: credit,
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, to, res.Delivery.Status)
}

// TestDeliveryLifecycle_FullFlow walks a delivery from creation through every
// forward stage to delivered and checks the timeline and courier credit.
func TestDeliveryLifecycle_FullFlow(t *testing.T) {
	pool := helpers.SetupTestDatabase(t)
	helpers.ResetTables(t, pool, "deliveries", "couriers", "payments")

	repo := delivery.NewRepository(pool)
	ctx := context.Background()

	senderID := uuid.New()
	courierID := uuid.New()
	seedCourier(t, pool, courierID)
	d := createTestDelivery(t, repo, senderID, seedPackageType(t, pool))

	summary, err := repo.AtomicClaim(ctx, d.ID, courierID)
	require.NoError(t, err)
	require.Equal(t, courierID, summary.UserID)
	require.Equal(t, "car", summary.VehicleType)

	stages := []string{
		delivery.StatusEnRouteToPickup,
		delivery.StatusApproachingPickup,
		delivery.StatusAtPickup,
		delivery.StatusPickedUp,
		delivery.StatusInTransit,
		delivery.StatusApproachingDropoff,
		delivery.StatusAtDropoff,
	}
	from := delivery.StatusCourierAssigned
	for _, to := range stages {
		applyCourierTransition(t, repo, d, courierID, from, to, 0)
		from = to
	}
	applyCourierTransition(t, repo, d, courierID, delivery.StatusAtDropoff, delivery.StatusDelivered, 9.98)

	// pending, searching_courier, courier_assigned, seven forward stages.
	events, err := repo.GetStatusEvents(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, events, 10)
	require.Equal(t, delivery.StatusPending, events[0].Status)
	require.Equal(t, delivery.StatusSearchingCourier, events[1].Status)
	require.Equal(t, delivery.StatusCourierAssigned, events[2].Status)
	require.Equal(t, delivery.StatusDelivered, events[9].Status)

	final, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, delivery.StatusDelivered, final.Status)
	require.NotNil(t, final.ActualPickupTime)
	require.NotNil(t, final.ActualDeliveryTime)

	var balance float64
	var completed int
	var active *uuid.UUID
	err = pool.QueryRow(ctx,
		`SELECT account_balance, completed_deliveries, active_delivery_id FROM couriers WHERE user_id = $1`,
		courierID).Scan(&balance, &completed, &active)
	require.NoError(t, err)
	require.InDelta(t, 9.98, balance, 0.001)
	require.Equal(t, 1, completed)
	require.Nil(t, active)
}

// TestAtomicClaim_ConcurrentCouriers races two couriers for the same delivery.
// Exactly one claim may win.
func TestAtomicClaim_ConcurrentCouriers(t *testing.T) {
	pool := helpers.SetupTestDatabase(t)
	helpers.ResetTables(t, pool, "deliveries", "couriers", "payments")

	repo := delivery.NewRepository(pool)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	seedCourier(t, pool, first)
	seedCourier(t, pool, second)
	d := createTestDelivery(t, repo, uuid.New(), seedPackageType(t, pool))

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, courierID := range []uuid.UUID{first, second} {
		wg.Add(1)
		go func(i int, courierID uuid.UUID) {
			defer wg.Done()
			_, results[i] = repo.AtomicClaim(ctx, d.ID, courierID)
		}(i, courierID)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		losses++
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, common.CodeAlreadyAssigned, appErr.ErrorCode)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	claimed, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, delivery.StatusCourierAssigned, claimed.Status)
	require.NotNil(t, claimed.CourierID)
}

// TestApplyTransition_Idempotent repeats a transition and expects the second
// call to report nothing applied without growing the timeline.
func TestApplyTransition_Idempotent(t *testing.T) {
	pool := helpers.SetupTestDatabase(t)
	helpers.ResetTables(t, pool, "deliveries", "couriers", "payments")

	repo := delivery.NewRepository(pool)
	ctx := context.Background()

	courierID := uuid.New()
	seedCourier(t, pool, courierID)
	d := createTestDelivery(t, repo, uuid.New(), seedPackageType(t, pool))
	_, err := repo.AtomicClaim(ctx, d.ID, courierID)
	require.NoError(t, err)

	applyCourierTransition(t, repo, d, courierID, delivery.StatusCourierAssigned, delivery.StatusEnRouteToPickup, 0)

	res, err := repo.ApplyTransition(ctx, delivery.Transition{
		DeliveryID: d.ID,
		From:       delivery.StatusCourierAssigned,
		To:         delivery.StatusEnRouteToPickup,
		ActorID:    &courierID,
		ActorRole:  delivery.ActorCourier,
	})
	require.NoError(t, err)
	require.False(t, res.Applied)

	events, err := repo.GetStatusEvents(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
}

// TestApplyTransition_RejectsStaleFrom refuses a transition whose expected
// source status no longer matches the row.
func TestApplyTransition_RejectsStaleFrom(t *testing.T) {
	pool := helpers.SetupTestDatabase(t)
	helpers.ResetTables(t, pool, "deliveries", "couriers", "payments")

	repo := delivery.NewRepository(pool)
	ctx := context.Background()

	courierID := uuid.New()
	seedCourier(t, pool, courierID)
	d := createTestDelivery(t, repo, uuid.New(), seedPackageType(t, pool))
	_, err := repo.AtomicClaim(ctx, d.ID, courierID)
	require.NoError(t, err)

	_, err = repo.ApplyTransition(ctx, delivery.Transition{
		DeliveryID: d.ID,
		From:       delivery.StatusInTransit,
		To:         delivery.StatusApproachingDropoff,
		ActorID:    &courierID,
		ActorRole:  delivery.ActorCourier,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInvalidTransition, appErr.ErrorCode)
}

// TestCancelReleasesCourier cancels an assigned delivery and checks the
// courier is freed for new work.
func TestCancelReleasesCourier(t *testing.T) {
	pool := helpers.SetupTestDatabase(t)
	helpers.ResetTables(t, pool, "deliveries", "couriers", "payments")

	repo := delivery.NewRepository(pool)
	ctx := context.Background()

	courierID := uuid.New()
	seedCourier(t, pool, courierID)
	d := createTestDelivery(t, repo, uuid.New(), seedPackageType(t, pool))
	_, err := repo.AtomicClaim(ctx, d.ID, courierID)
	require.NoError(t, err)

	reason := "sender changed plans"
	res, err := repo.ApplyTransition(ctx, delivery.Transition{
		DeliveryID: d.ID,
		From:       delivery.StatusCourierAssigned,
		To:         delivery.StatusCancelled,
		ActorID:    &d.SenderID,
		ActorRole:  delivery.ActorSender,
		Reason:     &reason,
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Nil(t, res.Delivery.CourierID)

	var active *uuid.UUID
	var cancelled int
	err = pool.QueryRow(ctx,
		`SELECT active_delivery_id, cancelled_deliveries FROM couriers WHERE user_id = $1`,
		courierID).Scan(&active, &cancelled)
	require.NoError(t, err)
	require.Nil(t, active)
	require.Equal(t, 1, cancelled)
}
