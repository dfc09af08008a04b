package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReminder struct {
	calls     atomic.Int32
	olderThan atomic.Int64
	err       error
}

func (f *fakeReminder) RemindPending(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan.Store(int64(olderThan))
	return 1, f.err
}

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf) // Отключаем вывод логов в тестах
	return logger, buf
}

func TestNewReminderScheduler_InvalidSchedule(t *testing.T) {
	logger, _ := testLogger()

	_, err := NewReminderScheduler(&fakeReminder{}, "every now and then", time.Minute, logger)
	assert.ErrorContains(t, err, "invalid reminder schedule")
}

func TestRunOnce(t *testing.T) {
	logger, buf := testLogger()
	fake := &fakeReminder{}
	s, err := NewReminderScheduler(fake, "@every 1m", 2*time.Minute, logger)
	require.NoError(t, err)

	s.RunOnce(context.Background())

	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, int64(2*time.Minute), fake.olderThan.Load())
	assert.Contains(t, buf.String(), "Reminders sent")
}

func TestRunOnce_Error(t *testing.T) {
	logger, buf := testLogger()
	fake := &fakeReminder{err: errors.New("db down")}
	s, err := NewReminderScheduler(fake, "@every 1m", time.Minute, logger)
	require.NoError(t, err)

	s.RunOnce(context.Background())

	assert.Contains(t, buf.String(), "Reminder run failed")
}

func TestStartStop(t *testing.T) {
	logger, _ := testLogger()
	fake := &fakeReminder{}
	s, err := NewReminderScheduler(fake, "@every 1s", time.Minute, logger)
	require.NoError(t, err)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return fake.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}
