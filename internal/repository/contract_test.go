package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/service"
)

// testRequestStore проверяет поведение, общее для всех реализаций RequestRepository
func testRequestStore(t *testing.T, store service.RequestRepository) {
	ctx := context.Background()
	_, err := store.DeleteAll(ctx)
	require.NoError(t, err)

	newRequest := func(emergencyType string) *models.EmergencyRequest {
		req := &models.EmergencyRequest{
			EmergencyType: emergencyType,
			Coordinates:   models.Coordinates{Latitude: 10, Longitude: 20},
			Address:       "123 Example St",
		}
		require.NoError(t, store.Create(ctx, req))
		return req
	}

	t.Run("create assigns identity", func(t *testing.T) {
		req := newRequest(models.EmergencyCardiac)

		assert.NotEqual(t, uuid.Nil, req.ID)
		assert.NotZero(t, req.Seq)
		assert.False(t, req.CreatedAt.IsZero())
		assert.Equal(t, models.StatusPending, req.Status)

		got, err := store.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, "123 Example St", got.Address)
		assert.Equal(t, 10.0, got.Coordinates.Latitude)
		assert.Nil(t, got.RespondedAt)
	})

	t.Run("conditional update applies once", func(t *testing.T) {
		req := newRequest(models.EmergencyFall)

		applied, err := store.ConditionalUpdateStatus(ctx, req.ID, models.StatusAccepted, models.StatusPending)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = store.ConditionalUpdateStatus(ctx, req.ID, models.StatusRejected, models.StatusPending)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := store.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.Status)
		assert.NotNil(t, got.RespondedAt)
	})

	t.Run("conditional update of unknown id", func(t *testing.T) {
		applied, err := store.ConditionalUpdateStatus(ctx, uuid.New(), models.StatusAccepted, models.StatusPending)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("concurrent decisions", func(t *testing.T) {
		req := newRequest(models.EmergencyRespiratory)

		const workers = 16
		var wg sync.WaitGroup
		results := make(chan bool, workers)
		for i := 0; i < workers; i++ {
			decision := models.StatusAccepted
			if i%2 == 1 {
				decision = models.StatusRejected
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				applied, err := store.ConditionalUpdateStatus(ctx, req.ID, decision, models.StatusPending)
				assert.NoError(t, err)
				results <- applied
			}()
		}
		wg.Wait()
		close(results)

		winners := 0
		for applied := range results {
			if applied {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("list keeps creation order", func(t *testing.T) {
		_, err := store.DeleteAll(ctx)
		require.NoError(t, err)
		first := newRequest("first")
		second := newRequest("second")
		third := newRequest("third")

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("pending before cutoff", func(t *testing.T) {
		_, err := store.DeleteAll(ctx)
		require.NoError(t, err)
		pending := newRequest(models.EmergencyCardiac)
		answered := newRequest(models.EmergencyCardiac)
		_, err = store.ConditionalUpdateStatus(ctx, answered.ID, models.StatusRejected, models.StatusPending)
		require.NoError(t, err)

		list, err := store.ListPendingBefore(ctx, time.Now().Add(time.Hour), 3)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, pending.ID, list[0].ID)

		list, err = store.ListPendingBefore(ctx, time.Now().Add(-time.Hour), 3)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("reminders are recorded and bounded", func(t *testing.T) {
		_, err := store.DeleteAll(ctx)
		require.NoError(t, err)
		req := newRequest(models.EmergencyFall)
		answered := newRequest(models.EmergencyFall)
		_, err = store.ConditionalUpdateStatus(ctx, answered.ID, models.StatusAccepted, models.StatusPending)
		require.NoError(t, err)

		first := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		ok, err := store.MarkReminded(ctx, req.ID, 0, first)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkReminded(ctx, answered.ID, 0, first)
		require.NoError(t, err)
		assert.False(t, ok, "answered requests are not reminded")

		// В том же окне повторное напоминание не нужно
		list, err := store.ListPendingBefore(ctx, first, 2)
		require.NoError(t, err)
		assert.Empty(t, list)

		second := first.Add(time.Minute)
		list, err = store.ListPendingBefore(ctx, second, 2)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 1, list[0].ReminderCount)
		require.NotNil(t, list[0].RemindedAt)
		assert.True(t, first.Equal(*list[0].RemindedAt))

		ok, err = store.MarkReminded(ctx, req.ID, 0, second)
		require.NoError(t, err)
		assert.False(t, ok, "stale reminder count must not be applied")
		ok, err = store.MarkReminded(ctx, req.ID, 1, second)
		require.NoError(t, err)
		assert.True(t, ok)

		list, err = store.ListPendingBefore(ctx, second.Add(time.Hour), 2)
		require.NoError(t, err)
		assert.Empty(t, list, "limit reached")
	})

	t.Run("delete", func(t *testing.T) {
		req := newRequest(models.EmergencyOther)

		require.NoError(t, store.Delete(ctx, req.ID))
		assert.ErrorIs(t, store.Delete(ctx, req.ID), service.ErrNotFound)

		_, err := store.GetByID(ctx, req.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("delete all", func(t *testing.T) {
		_, err := store.DeleteAll(ctx)
		require.NoError(t, err)
		newRequest("a")
		newRequest("b")

		n, err := store.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

// testResponderStore проверяет поведение, общее для всех реализаций ResponderRepository
func testResponderStore(t *testing.T, store service.ResponderRepository) {
	ctx := context.Background()

	first := &models.ResponderDevice{Name: "Dr. A", DeviceToken: "ExponentPushToken[a]", Active: true}
	require.NoError(t, store.Upsert(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	again := &models.ResponderDevice{Name: "Dr. A2", DeviceToken: "ExponentPushToken[a]", Active: true}
	require.NoError(t, store.Upsert(ctx, again))
	assert.Equal(t, first.ID, again.ID, "same token updates the existing device")

	inactive := &models.ResponderDevice{Name: "Dr. B", DeviceToken: "ExponentPushToken[b]", Active: false}
	require.NoError(t, store.Upsert(ctx, inactive))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Dr. A2", active[0].Name)

	require.NoError(t, store.Delete(ctx, first.ID))
	assert.ErrorIs(t, store.Delete(ctx, first.ID), service.ErrNotFound)
}
