// Package schedule runs the recurring background jobs: approval
// reminders, the unassigned-case digest, and the idle-session sweep.
package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oakline/upkeep/internal/models"
	"github.com/oakline/upkeep/internal/notify"
)

// Store is the persistence surface the jobs need. Satisfied by
// *store.Store.
type Store interface {
	ProposedAppointments(orgID string) ([]models.Appointment, error)
	UnassignedCases(orgID string) ([]models.Case, error)
}

// SessionSweeper evicts idle intake sessions. Satisfied by
// *triage.Manager.
type SessionSweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron       *cron.Cron
	store      Store
	dispatcher *notify.Dispatcher
	sweeper    SessionSweeper
	orgID      string
	baseURL    string

	reminderSpec string
	digestSpec   string
	maxIdle      time.Duration
	now          func() time.Time
}

// Opts holds parameters for creating a Scheduler.
type Opts struct {
	Store        Store
	Dispatcher   *notify.Dispatcher
	Sweeper      SessionSweeper // optional; the sweep job is skipped when nil
	OrgID        string
	BaseURL      string
	ReminderSpec string        // cron expression for approval reminders
	DigestSpec   string        // cron expression for the unassigned digest
	MaxIdle      time.Duration // idle threshold for the session sweep; 0 disables
	Now          func() time.Time
}

// New creates a Scheduler. Jobs are registered but not started.
func New(opts Opts) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("schedule: store is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("schedule: dispatcher is required")
	}
	if opts.OrgID == "" {
		return nil, fmt.Errorf("schedule: org is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		cron:         cron.New(),
		store:        opts.Store,
		dispatcher:   opts.Dispatcher,
		sweeper:      opts.Sweeper,
		orgID:        opts.OrgID,
		baseURL:      opts.BaseURL,
		reminderSpec: opts.ReminderSpec,
		digestSpec:   opts.DigestSpec,
		maxIdle:      opts.MaxIdle,
		now:          now,
	}, nil
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.reminderSpec != "" {
		if _, err := s.cron.AddFunc(s.reminderSpec, func() {
			s.RunApprovalReminders(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule: reminder job: %w", err)
		}
	}
	if s.digestSpec != "" {
		if _, err := s.cron.AddFunc(s.digestSpec, func() {
			s.RunUnassignedDigest(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule: digest job: %w", err)
		}
	}
	if s.sweeper != nil && s.maxIdle > 0 {
		if _, err := s.cron.AddFunc("@hourly", func() {
			s.sweeper.Sweep(s.maxIdle)
		}); err != nil {
			return fmt.Errorf("schedule: sweep job: %w", err)
		}
	}
	s.cron.Start()
	log.Printf("schedule: started (reminders %q, digest %q)", s.reminderSpec, s.digestSpec)
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunApprovalReminders re-notifies occupants of proposed appointments that
// still await a response. Appointments whose token has lapsed are skipped;
// expiry is enforced lazily at response time, so no state is touched here.
func (s *Scheduler) RunApprovalReminders(ctx context.Context) int {
	appts, err := s.store.ProposedAppointments(s.orgID)
	if err != nil {
		log.Printf("schedule: %v", err)
		return 0
	}

	sent := 0
	for _, appt := range appts {
		if appt.OccupantID == "" {
			continue
		}
		if appt.TokenExpiresAt != nil && s.now().After(*appt.TokenExpiresAt) {
			continue
		}
		body := fmt.Sprintf(
			"Reminder: a maintenance visit for your home still needs your approval. Respond here: %s/api/approvals/%s",
			s.baseURL, appt.ApprovalToken)
		s.dispatcher.Dispatch(ctx, notify.Envelope{
			Kind:          notify.KindCaseUpdated,
			Subject:       "Approval still needed for a maintenance visit",
			Body:          body,
			CaseID:        appt.CaseID,
			AppointmentID: appt.ID,
		}, notify.Selector{PartyID: appt.OccupantID})
		sent++
	}
	if sent > 0 {
		log.Printf("schedule: sent %d approval reminders", sent)
	}
	return sent
}

// RunUnassignedDigest pushes a summary of open, unassigned cases to the
// admin channel. No digest goes out when the queue is empty.
func (s *Scheduler) RunUnassignedDigest(ctx context.Context) int {
	cases, err := s.store.UnassignedCases(s.orgID)
	if err != nil {
		log.Printf("schedule: %v", err)
		return 0
	}
	if len(cases) == 0 {
		return 0
	}

	body := fmt.Sprintf("%d open cases have no contractor:\n", len(cases))
	for _, c := range cases {
		body += fmt.Sprintf("- %s: %s (%s, %s)\n", c.ID, c.Title, c.Urgency, c.Location)
	}
	s.dispatcher.NotifyRole(ctx, models.RoleAdmin, s.orgID, notify.Envelope{
		Kind:    notify.KindCaseUpdated,
		Subject: fmt.Sprintf("%d cases awaiting assignment", len(cases)),
		Body:    body,
	})
	log.Printf("schedule: digest covered %d unassigned cases", len(cases))
	return len(cases)
}
