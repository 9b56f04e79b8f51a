package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oakline/upkeep/internal/models"
)

// EmailGateway sends one email. Implementations live in notify/email.
type EmailGateway interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMSGateway sends one text message. Implementations live in notify/sms.
type SMSGateway interface {
	SendSMS(ctx context.Context, to, body string) error
}

// OpsSender mirrors emergency alerts to an operations chat channel.
type OpsSender interface {
	SendAlert(ctx context.Context, title, body string) error
}

// PartyLookup resolves recipient references for role- and party-addressed
// dispatches. Satisfied by *store.Store.
type PartyLookup interface {
	GetParty(id string) (*models.Party, error)
}

// Recorder persists delivery audit rows. Satisfied by *store.Store.
type Recorder interface {
	RecordNotification(rec *models.NotificationRecord) error
}

// Stats holds process-wide delivery counters, exposed via the health
// endpoint so operators can detect full channel outages.
type Stats struct {
	Attempted int64 `json:"attempted"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Dispatcher fans notifications out across channels. Any gateway may be
// nil: the channel degrades to a logged no-op and the rest continue.
type Dispatcher struct {
	registry *Registry
	email    EmailGateway
	sms      SMSGateway
	ops      []OpsSender
	parties  PartyLookup
	recorder Recorder

	attempted atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// DispatcherOpts holds collaborators for creating a Dispatcher.
type DispatcherOpts struct {
	Registry *Registry
	Email    EmailGateway
	SMS      SMSGateway
	Ops      []OpsSender
	Parties  PartyLookup
	Recorder Recorder
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("notify: registry is required")
	}
	return &Dispatcher{
		registry: opts.Registry,
		email:    opts.Email,
		sms:      opts.SMS,
		ops:      opts.Ops,
		parties:  opts.Parties,
		recorder: opts.Recorder,
	}, nil
}

// Stats returns a snapshot of the delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Attempted: d.attempted.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}

// Dispatch delivers an envelope to the recipients named by the selector.
// Fire-and-forget from the caller's viewpoint: outcomes are logged,
// counted, and recorded, never returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope, sel Selector) {
	if sel.PartyID != "" {
		if d.parties == nil {
			log.Printf("notify: dispatch to %s skipped: no party lookup configured", sel.PartyID)
			return
		}
		party, err := d.parties.GetParty(sel.PartyID)
		if err != nil {
			log.Printf("notify: dispatch: %v", err)
			return
		}
		d.NotifyParty(ctx, party, env)
		return
	}
	if sel.Role != "" {
		d.NotifyRole(ctx, sel.Role, sel.OrgID, env)
	}
}

// NotifyRole fans an envelope out to every live push connection matching
// both role and organization. A per-connection send failure is logged and
// does not abort delivery to siblings.
func (d *Dispatcher) NotifyRole(ctx context.Context, role, orgID string, env Envelope) {
	payload := pushPayload(env)
	conns := d.registry.ByRole(role, orgID)
	for _, conn := range conns {
		d.attempted.Add(1)
		if err := conn.Send(payload); err != nil {
			d.failed.Add(1)
			log.Printf("notify: push to role %s/%s: %v", role, orgID, err)
			continue
		}
		d.delivered.Add(1)
	}
	d.mirrorEmergency(ctx, env)
}

// NotifyParty delivers an envelope to one party over email, SMS, and any
// live push connections, concurrently and independently. All channels are
// awaited; no failure short-circuits the others. Total failure across
// every channel is logged and recorded but never returned as an error.
func (d *Dispatcher) NotifyParty(ctx context.Context, party *models.Party, env Envelope) DeliveryReport {
	var (
		mu     sync.Mutex
		report DeliveryReport
	)
	settle := func(channel string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Attempted++
		d.attempted.Add(1)
		if err != nil {
			report.Failures = append(report.Failures, channel+": "+err.Error())
			d.failed.Add(1)
			return
		}
		report.Delivered++
		d.delivered.Add(1)
	}

	var wg sync.WaitGroup

	if party.Email != "" {
		if d.email == nil {
			log.Printf("notify: email to %s skipped: channel not configured", party.ID)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				htmlBody, textBody := RenderEmail(env)
				settle("email", d.email.SendEmail(ctx, party.Email, RenderSubject(env), htmlBody, textBody))
			}()
		}
	}

	if party.Phone != "" {
		if d.sms == nil {
			log.Printf("notify: sms to %s skipped: channel not configured", party.ID)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				settle("sms", d.sms.SendSMS(ctx, party.Phone, RenderSMS(env)))
			}()
		}
	}

	payload := pushPayload(env)
	for _, conn := range d.registry.ByIdentity(party.ID) {
		wg.Add(1)
		go func(c PushConn) {
			defer wg.Done()
			settle("push", c.Send(payload))
		}(conn)
	}

	wg.Wait()

	if report.Failed() {
		log.Printf("notify: all %d channels failed for party %s: %s",
			report.Attempted, party.ID, strings.Join(report.Failures, "; "))
	}
	d.record(party, env, report)
	d.mirrorEmergency(ctx, env)
	return report
}

// record writes the delivery audit row. Best-effort.
func (d *Dispatcher) record(party *models.Party, env Envelope, report DeliveryReport) {
	if d.recorder == nil {
		return
	}
	rec := &models.NotificationRecord{
		PartyID:       party.ID,
		OrgID:         party.OrgID,
		CaseID:        env.CaseID,
		AppointmentID: env.AppointmentID,
		Kind:          env.Kind,
		Urgency:       env.Urgency,
		Subject:       RenderSubject(env),
		Attempted:     report.Attempted,
		Delivered:     report.Delivered,
		FailureNotes:  strings.Join(report.Failures, "; "),
	}
	if err := d.recorder.RecordNotification(rec); err != nil {
		log.Printf("notify: %v", err)
	}
}

// mirrorEmergency sends emergency envelopes to the ops chat senders.
func (d *Dispatcher) mirrorEmergency(ctx context.Context, env Envelope) {
	if env.Urgency != UrgencyEmergency && env.Kind != KindEmergencyAlert {
		return
	}
	for _, ops := range d.ops {
		if err := ops.SendAlert(ctx, RenderSubject(env), env.Body); err != nil {
			log.Printf("notify: ops alert: %v", err)
		}
	}
}

// pushPayload serializes an envelope for push connections.
func pushPayload(env Envelope) []byte {
	payload, err := json.Marshal(map[string]string{
		"kind":           env.Kind,
		"subject":        RenderSubject(env),
		"body":           env.Body,
		"urgency":        env.Urgency,
		"case_id":        env.CaseID,
		"appointment_id": env.AppointmentID,
	})
	if err != nil {
		return []byte("{}")
	}
	return payload
}
