package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oakline/upkeep/internal/models"
	"github.com/oakline/upkeep/internal/notify"
)

// ErrConflict is returned when a response arrives for an appointment that
// is no longer in the proposed state. First response wins; there is no
// silent overwrite of an already-resolved appointment.
var ErrConflict = errors.New("approval: appointment already resolved")

// Status is the externally visible state of an approval token.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// AppointmentStore is the persistence collaborator the service needs.
// Satisfied by *store.Store.
type AppointmentStore interface {
	GetAppointment(id string) (*models.Appointment, error)
	UpdateAppointment(id string, patch map[string]interface{}) error
}

// CounterProposal is an occupant's alternative time window.
type CounterProposal struct {
	Start  time.Time
	End    time.Time
	Reason string
}

// Issued is the result of issuing a consent token.
type Issued struct {
	Token      string
	ExpiresAt  time.Time
	ApproveURL string
	DeclineURL string
}

// Service implements the consent-token workflow.
type Service struct {
	secret     []byte
	store      AppointmentStore
	dispatcher *notify.Dispatcher
	baseURL    string
	now        func() time.Time
}

// ServiceOpts holds parameters for creating a Service.
type ServiceOpts struct {
	Secret     string
	Store      AppointmentStore
	Dispatcher *notify.Dispatcher // optional; occupant notification is skipped when nil
	BaseURL    string             // public base for approve/decline links
	Now        func() time.Time   // optional clock override for tests
}

// NewService creates an approval Service.
func NewService(opts ServiceOpts) (*Service, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("approval: secret is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("approval: store is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		secret:     []byte(opts.Secret),
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		baseURL:    opts.BaseURL,
		now:        now,
	}, nil
}

// Issue creates a signed token for an appointment, transitions it to
// proposed, stores the token and expiry alongside it, and notifies the
// occupant with approve/decline links.
func (s *Service) Issue(ctx context.Context, appointmentID string, ttlHours int) (*Issued, error) {
	if ttlHours <= 0 {
		return nil, fmt.Errorf("approval: ttl must be positive")
	}
	appt, err := s.store.GetAppointment(appointmentID)
	if err != nil {
		return nil, fmt.Errorf("approval: issue: %w", err)
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(time.Duration(ttlHours) * time.Hour)
	token := encodeToken(s.secret, Claims{
		AppointmentID: appt.ID,
		OrgID:         appt.OrgID,
		ExpiresAt:     expiresAt,
		IssuedAt:      issuedAt,
	})

	err = s.store.UpdateAppointment(appt.ID, map[string]interface{}{
		"status":           models.AppointmentProposed,
		"approval_token":   token,
		"token_expires_at": expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("approval: issue: %w", err)
	}

	issued := &Issued{
		Token:      token,
		ExpiresAt:  expiresAt,
		ApproveURL: fmt.Sprintf("%s/api/approvals/%s?decision=approve", s.baseURL, token),
		DeclineURL: fmt.Sprintf("%s/api/approvals/%s?decision=decline", s.baseURL, token),
	}

	s.notifyOccupant(ctx, appt, issued)
	return issued, nil
}

// notifyOccupant reaches the occupant across channels. Best-effort:
// notification failure never aborts the issue workflow.
func (s *Service) notifyOccupant(ctx context.Context, appt *models.Appointment, issued *Issued) {
	if s.dispatcher == nil || appt.OccupantID == "" {
		return
	}
	body := fmt.Sprintf(
		"A maintenance visit has been proposed for your home. Approve: %s Decline: %s",
		issued.ApproveURL, issued.DeclineURL)
	s.dispatcher.Dispatch(ctx, notify.Envelope{
		Kind:          notify.KindCaseUpdated,
		Subject:       "Site access approval needed",
		Body:          body,
		AppointmentID: appt.ID,
		CaseID:        appt.CaseID,
	}, notify.Selector{PartyID: appt.OccupantID})
}

// Respond processes an occupant's approve/decline. The appointment must
// still be proposed; otherwise the response conflicts with an earlier one.
// A counter-proposed window and reason are recorded but never rescheduled
// here.
func (s *Service) Respond(ctx context.Context, token string, approved bool, counter *CounterProposal) (Status, error) {
	claims, err := decodeToken(s.secret, token)
	if err != nil {
		return "", err
	}

	appt, err := s.store.GetAppointment(claims.AppointmentID)
	if err != nil {
		return "", fmt.Errorf("approval: respond: %w", err)
	}
	if appt.TokenExpiresAt != nil && s.now().After(*appt.TokenExpiresAt) {
		return StatusExpired, ErrTokenExpired
	}
	if appt.Status != models.AppointmentProposed {
		return "", ErrConflict
	}

	status := models.AppointmentCancelled
	result := StatusDeclined
	if approved {
		status = models.AppointmentApproved
		result = StatusApproved
	}

	patch := map[string]interface{}{
		"status":       status,
		"responded_at": s.now(),
	}
	if counter != nil {
		patch["counter_start"] = counter.Start
		patch["counter_end"] = counter.End
		patch["response_reason"] = counter.Reason
	}
	if err := s.store.UpdateAppointment(appt.ID, patch); err != nil {
		return "", fmt.Errorf("approval: respond: %w", err)
	}

	log.Printf("approval: appointment %s %s by occupant response", appt.ID, result)
	return result, nil
}

// TokenStatus reports the current state of a token. Expiry is computed
// lazily from the stored expiry on every query; no background sweep
// exists.
func (s *Service) TokenStatus(token string) (Status, error) {
	claims, err := decodeToken(s.secret, token)
	if err != nil {
		return "", err
	}
	appt, err := s.store.GetAppointment(claims.AppointmentID)
	if err != nil {
		return "", fmt.Errorf("approval: status: %w", err)
	}
	if appt.TokenExpiresAt != nil && s.now().After(*appt.TokenExpiresAt) {
		return StatusExpired, nil
	}
	switch appt.Status {
	case models.AppointmentApproved:
		return StatusApproved, nil
	case models.AppointmentCancelled:
		return StatusDeclined, nil
	default:
		return StatusPending, nil
	}
}
