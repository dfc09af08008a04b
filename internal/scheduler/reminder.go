// Package scheduler повторно оповещает врачей о заявках без ответа.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reminder - часть DispatchService, которую вызывает планировщик
type Reminder interface {
	RemindPending(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReminderScheduler запускает напоминания по расписанию cron
type ReminderScheduler struct {
	c         *cron.Cron
	reminder  Reminder
	olderThan time.Duration
	logger    *logrus.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewReminderScheduler разбирает schedule ("@every 1m", "*/5 * * * *")
func NewReminderScheduler(reminder Reminder, schedule string, olderThan time.Duration, logger *logrus.Logger) (*ReminderScheduler, error) {
	cl := cron.PrintfLogger(logger)
	s := &ReminderScheduler{
		c: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		reminder:  reminder,
		olderThan: olderThan,
		logger:    logger,
		ctx:       context.Background(),
	}
	if _, err := s.c.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start запускает планировщик; задания получают ctx и прерываются при его отмене
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.c.Start()
}

// Stop останавливает планировщик и ждет завершения текущего задания
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.c.Stop().Done()
}

func (s *ReminderScheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.RunOnce(ctx)
}

// RunOnce выполняет одну проверку заявок без ответа
func (s *ReminderScheduler) RunOnce(ctx context.Context) {
	log := s.logger.WithFields(logrus.Fields{
		"component":  "scheduler",
		"older_than": s.olderThan.String(),
	})

	n, err := s.reminder.RemindPending(ctx, s.olderThan)
	if err != nil {
		log.WithError(err).Error("Reminder run failed")
		return
	}
	if n > 0 {
		log.WithField("reminded", n).Info("Reminders sent for pending requests")
	}
}
