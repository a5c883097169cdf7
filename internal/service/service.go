// Package service wires the catalog, user, event, and conversion pieces
// together and drives the scheduled background work.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/okunev/bookshelf-bot/internal/catalog"
	"github.com/okunev/bookshelf-bot/internal/config"
	"github.com/okunev/bookshelf-bot/internal/convert"
	"github.com/okunev/bookshelf-bot/internal/events"
	"github.com/okunev/bookshelf-bot/internal/jobs"
	"github.com/okunev/bookshelf-bot/internal/library"
	"github.com/okunev/bookshelf-bot/internal/users"
	"github.com/okunev/bookshelf-bot/pkg/icron"
	"github.com/okunev/bookshelf-bot/pkg/log"
)

// BookService is the orchestrator: it owns the converter executor, the
// scheduled scans and reminders, and the admin-facing aggregates.
type BookService struct {
	cfg     config.Config
	books   *catalog.Store
	users   *users.Store
	events  *events.Store
	queue   *jobs.Queue
	scanner *library.Scanner
	locator *convert.Locator
	cron    *cron.Cron
	notify  Notifier
}

type Option func(*BookService)

// WithNotifier replaces the default log-only reminder delivery.
func WithNotifier(notify Notifier) Option {
	return func(s *BookService) {
		if notify != nil {
			s.notify = notify
		}
	}
}

func NewBookService(
	cfg config.Config,
	books *catalog.Store,
	userStore *users.Store,
	eventStore *events.Store,
	queue *jobs.Queue,
	scanner *library.Scanner,
	c *cron.Cron,
	opts ...Option,
) *BookService {
	s := &BookService{
		cfg:     cfg,
		books:   books,
		users:   userStore,
		events:  eventStore,
		queue:   queue,
		scanner: scanner,
		locator: convert.NewLocator(cfg.Convert.ConverterDir),
		cron:    c,
		notify: func(userID int64, message string) {
			log.Info("Reminder for user %d: %s", userID, message)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var singleflightGroup singleflight.Group

// Schedule registers the recurring jobs on the cron instance: rescans of
// the upload directory and day-of-event reminders.
func (s *BookService) Schedule(ctx context.Context) error {
	log.Info("Run BookService schedules: scan %q, reminders %q",
		s.cfg.Schedule.ScanCron, s.cfg.Schedule.ReminderCron)

	scanFunc := func() {
		_, _, _ = singleflightGroup.Do("scan", func() (any, error) {
			report, err := s.scanner.Scan(ctx)
			if err != nil {
				log.Error("Scheduled scan failed: %v", err)
				return nil, nil
			}
			if report.NewBooks > 0 || report.EnqueuedJobs > 0 {
				log.Info("Scheduled scan: %d new books, %d conversions enqueued",
					report.NewBooks, report.EnqueuedJobs)
			}
			return nil, nil
		})
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule.ScanCron, scanFunc); err != nil {
		return WrapError(err, ErrConfig, "invalid scan schedule").
			WithContext("cron", s.cfg.Schedule.ScanCron)
	}

	remindFunc := func() {
		if err := s.SendReminders(time.Now()); err != nil {
			log.Error("Scheduled reminders failed: %v", err)
		}
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule.ReminderCron, remindFunc); err != nil {
		return WrapError(err, ErrConfig, "invalid reminder schedule").
			WithContext("cron", s.cfg.Schedule.ReminderCron)
	}
	return nil
}

// Executor returns the queue executor: it runs one converter subprocess per
// job and records the produced file on the catalog record.
func (s *BookService) Executor() jobs.Executor {
	return func(ctx context.Context, job *jobs.ConversionJob) (string, error) {
		p := job.Payload
		conv := convert.NewJob(convert.Request{
			SourcePath:   p.SourcePath,
			SourceFormat: p.SourceFormat,
			TargetFormat: p.TargetFormat,
			DestDir:      p.DestDir,
		}, s.locator, convert.NewExtractor(),
			convert.WithTimeout(s.cfg.Convert.Timeout()),
			convert.WithScratchRoot(s.cfg.Files.ScratchDir),
		)

		result, err := conv.Run(ctx)
		if err != nil {
			return "", err
		}

		if format, ok := catalog.ParseFormat(p.TargetFormat); ok && p.Title != "" {
			if err := s.books.SetFile(p.Title, format, result.OutputPath); err != nil {
				log.Error("Converted %q to %s but failed to record the file: %v",
					p.Title, p.TargetFormat, err)
			}
		}
		return result.OutputPath, nil
	}
}

// RequestConversion enqueues one conversion of a cataloged book into the
// target format. The bool reports whether a new job was created; an
// in-flight job for the same title and format is returned instead.
func (s *BookService) RequestConversion(title string, target catalog.Format) (*jobs.ConversionJob, bool, error) {
	book, err := s.books.Get(title)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, false, WrapError(err, ErrFileNotFound, "book is not in the catalog").
				WithContext("title", title)
		}
		return nil, false, WrapError(err, ErrStorage, "cannot read the catalog")
	}
	if book.Files[target] != "" {
		return nil, false, NewError(ErrValidation, "book already has this format").
			WithContext("title", title).
			WithContext("format", string(target))
	}
	source := book.Files[catalog.FormatFB2]
	if source == "" {
		return nil, false, NewError(ErrValidation, "book has no fb2 source to convert from").
			WithContext("title", title)
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "manual",
		DedupeKey: title + "|" + string(target),
		Payload: jobs.Payload{
			Title:        title,
			SourcePath:   source,
			SourceFormat: string(catalog.FormatFB2),
			TargetFormat: string(target),
			DestDir:      s.cfg.Files.UploadDir,
		},
	})
	return job, created, nil
}

// EnsureFormats enqueues conversions for every target format the book is
// missing and returns how many jobs were created.
func (s *BookService) EnsureFormats(title string) (int, error) {
	book, err := s.books.Get(title)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, target := range []catalog.Format{catalog.FormatEPUB, catalog.FormatMOBI} {
		if book.Files[target] != "" {
			continue
		}
		if _, ok, err := s.RequestConversion(title, target); err == nil && ok {
			created++
		}
	}
	return created, nil
}

// Scan runs one pass over the upload directory immediately, bypassing the
// scanner's report cache.
func (s *BookService) Scan(ctx context.Context) (*library.Report, error) {
	s.scanner.Invalidate()
	return s.scanner.Scan(ctx)
}

// Reminders collects the events happening on the given day, with the active
// users plus named participants as recipients.
func (s *BookService) Reminders(day time.Time) ([]Reminder, error) {
	ids, err := s.events.OnDay(day)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "cannot read events")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	recipients, err := s.users.ActiveIDs()
	if err != nil {
		return nil, WrapError(err, ErrStorage, "cannot read users")
	}

	reminders := make([]Reminder, 0, len(ids))
	for _, id := range ids {
		event, err := s.events.Get(id)
		if err != nil {
			log.Warn("Event %s disappeared while building reminders: %v", id, err)
			continue
		}
		message := fmt.Sprintf("Today at %s: %s", event.Time, event.Title)
		if event.Book != "" {
			message += fmt.Sprintf(" (book: %s)", event.Book)
		}
		reminders = append(reminders, Reminder{
			EventID:    id,
			Event:      event,
			Message:    message,
			Recipients: recipients,
		})
	}
	return reminders, nil
}

// SendReminders pushes today's reminders through the notifier.
func (s *BookService) SendReminders(day time.Time) error {
	reminders, err := s.Reminders(day)
	if err != nil {
		return err
	}
	for _, reminder := range reminders {
		for _, userID := range reminder.Recipients {
			s.notify(userID, reminder.Message)
		}
	}
	return nil
}

// ActivateUser turns a registered reader active once the club's secret
// phrase checks out.
func (s *BookService) ActivateUser(id int64, phrase string) error {
	if phrase != s.cfg.Security.SecretPhrase {
		return NewError(ErrForbidden, "wrong secret phrase").
			WithContext("user", id)
	}
	if err := s.users.Activate(id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return WrapError(err, ErrValidation, "user is not registered").
				WithContext("user", id)
		}
		return WrapError(err, ErrStorage, "cannot update the user")
	}
	return nil
}

// SetUserStatus lets an administrator move a reader between active,
// inactive, and banned.
func (s *BookService) SetUserStatus(adminID, userID int64, status users.Status) error {
	if !s.cfg.Security.IsAdmin(adminID) {
		return NewError(ErrForbidden, "administrator rights required").
			WithContext("user", adminID)
	}
	if err := s.users.SetStatus(userID, status); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return WrapError(err, ErrValidation, "user is not registered").
				WithContext("user", userID)
		}
		return WrapError(err, ErrStorage, "cannot update the user")
	}
	return nil
}

// Stats aggregates the counters shown on the admin panel.
func (s *BookService) Stats() (AdminStats, error) {
	userStats, err := s.users.Stats()
	if err != nil {
		return AdminStats{}, WrapError(err, ErrStorage, "cannot read users")
	}
	books, err := s.books.All()
	if err != nil {
		return AdminStats{}, WrapError(err, ErrStorage, "cannot read the catalog")
	}

	jobCounts := make(map[string]int)
	for _, job := range s.queue.List() {
		jobCounts[string(job.Status)]++
	}

	now := time.Now()
	schedules := make(map[string]*icron.TriggerInfo)
	for name, expr := range map[string]string{
		"scan":      s.cfg.Schedule.ScanCron,
		"reminders": s.cfg.Schedule.ReminderCron,
	} {
		info, err := icron.GetTriggerInfo(expr, now)
		if err != nil {
			continue
		}
		schedules[name] = info
	}

	return AdminStats{
		Users:     userStats,
		Books:     len(books),
		Jobs:      jobCounts,
		Schedules: schedules,
	}, nil
}
