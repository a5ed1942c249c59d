package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/catalog"
	"github.com/example/codecycle/internal/logger"
	"github.com/example/codecycle/pkg/models"
)

// Default job hours in the scheduler's timezone
const (
	DefaultReminderHour = 9
	DefaultSyncHour     = 3
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(chatID int64, count int) error
}

// QueueBuilder computes a user's queue for today
type QueueBuilder interface {
	BuildTodayQueue(ctx context.Context, user *models.User, now time.Time) (*models.TodayQueue, error)
	Now() time.Time
}

// UserLister finds the users that receive reminders
type UserLister interface {
	ListWithTelegram(ctx context.Context) ([]*models.User, error)
}

// CatalogSyncer refreshes every user's solved problems
type CatalogSyncer interface {
	SyncAll(ctx context.Context) ([]*catalog.Result, int, error)
}

// Options configures job times
type Options struct {
	Location     *time.Location
	ReminderHour int
	SyncHour     int
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	queues    QueueBuilder
	users     UserLister
	syncer    CatalogSyncer
	opts      Options
	log       *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new scheduler instance. A nil notifier disables reminders
// and a nil syncer disables the nightly sync.
func New(notifier Notifier, queues QueueBuilder, users UserLister, syncer CatalogSyncer, opts Options, log *logger.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	s := gocron.NewScheduler(opts.Location)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		notifier:  notifier,
		queues:    queues,
		users:     users,
		syncer:    syncer,
		opts:      opts,
		log:       log.Component("scheduler"),
	}
}

// Start registers the jobs and runs them in the background until Stop or ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.notifier != nil {
		if _, err := s.scheduler.Every(1).Day().At(atHour(s.opts.ReminderHour)).Do(s.reminderJob); err != nil {
			return errors.Wrap(err, "failed to schedule reminders")
		}
		s.log.Info("reminders scheduled", "hour", s.opts.ReminderHour)
	}
	if s.syncer != nil {
		if _, err := s.scheduler.Every(1).Day().At(atHour(s.opts.SyncHour)).Do(s.syncJob); err != nil {
			return errors.Wrap(err, "failed to schedule catalog sync")
		}
		s.log.Info("catalog sync scheduled", "hour", s.opts.SyncHour)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
}

func atHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

func (s *Scheduler) reminderJob() {
	sent, err := s.RunReminders(s.ctx)
	if err != nil {
		s.log.Error("reminder run failed", "error", err)
		return
	}
	s.log.Info("reminders sent", "count", sent)
}

func (s *Scheduler) syncJob() {
	if err := s.RunSync(s.ctx); err != nil {
		s.log.Error("catalog sync run failed", "error", err)
	}
}

// RunReminders notifies every linked user with a non-empty queue.
// A failing user is logged and skipped; the number of reminders sent is returned.
func (s *Scheduler) RunReminders(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	users, err := s.users.ListWithTelegram(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list users for reminders")
	}

	sent := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := s.RemindUser(ctx, user)
		if err != nil {
			s.log.Warn("reminder failed", "user", user.LeetUsername, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RemindUser sends one reminder when the user has items left today.
// It reports whether a reminder was sent.
func (s *Scheduler) RemindUser(ctx context.Context, user *models.User) (bool, error) {
	if user.TelegramChatID == nil {
		return false, nil
	}
	queue, err := s.queues.BuildTodayQueue(ctx, user, s.queues.Now())
	if err != nil {
		return false, errors.Wrap(err, "failed to build queue")
	}
	if len(queue.Items) == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminders(*user.TelegramChatID, len(queue.Items)); err != nil {
		return false, errors.Wrap(err, "failed to send reminder")
	}
	return true, nil
}

// RunSync refreshes the catalog from every user's LeetCode history
func (s *Scheduler) RunSync(ctx context.Context) error {
	if s.syncer == nil {
		return nil
	}
	results, failed, err := s.syncer.SyncAll(ctx)
	if err != nil {
		return err
	}
	s.log.Info("catalog sync finished", "synced", len(results), "failed", failed)
	return nil
}
