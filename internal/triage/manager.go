package triage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oakline/upkeep/internal/completion"
	"github.com/oakline/upkeep/internal/matching"
	"github.com/oakline/upkeep/internal/models"
	"github.com/oakline/upkeep/internal/notify"
	"github.com/oakline/upkeep/internal/store"
)

var (
	ErrSessionNotFound  = errors.New("triage: session not found")
	ErrSessionCompleted = errors.New("triage: session already completed")
)

// systemPrompt conditions the model into the intake role. The marker
// contract here must stay in sync with ExtractDraft.
const systemPrompt = `You are the maintenance intake assistant for a housing organization.
An occupant is reporting a problem in their home. Ask short, concrete
follow-up questions until you know: what is broken, where it is, how
urgent it is (Emergency, Urgent, or Routine), and how to reach the
occupant. Ask one question at a time. Never invent details.

If the occupant describes immediate danger such as a gas smell, flooding,
or exposed wiring, treat urgency as Emergency and stop asking questions.

Once you have enough to file the case, reply with a short confirmation
sentence, then the word CASE_READY on its own line, then a single JSON
object with exactly these keys:
{"title":"...","description":"...","urgency":"Emergency|Urgent|Routine","location":"...","category":"...","contact":"..."}`

// Reply is the outcome of one intake turn.
type Reply struct {
	SessionID string
	Content   string
	Completed bool
	CaseID    string
}

// session is one live intake conversation. The per-session mutex
// serializes concurrent messages to the same conversation; the manager
// map lock is never held across a model call.
type session struct {
	mu          sync.Mutex
	id          string
	requesterID string
	messages    []completion.Message
	completed   bool
	caseID      string
	lastActive  time.Time
}

// Store is the persistence surface the manager needs. Satisfied by
// *store.Store.
type Store interface {
	CreateCase(c *models.Case) error
	UpdateCase(id string, patch map[string]interface{}) error
	AppendTurn(sessionID, participantID, role, content string) error
	TurnsBySession(sessionID string) ([]models.TriageTurn, error)
	ActiveContractors(orgID string) ([]models.Contractor, error)
	GetContractor(id string) (*models.Contractor, error)
}

// Manager owns the live intake sessions for one organization.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	client     completion.Client
	store      Store
	matcher    *matching.Engine
	dispatcher *notify.Dispatcher
	orgID      string
	now        func() time.Time
}

// ManagerOpts holds collaborators for creating a Manager.
type ManagerOpts struct {
	Client     completion.Client
	Store      Store
	Matcher    *matching.Engine   // optional; completed cases stay unassigned when nil
	Dispatcher *notify.Dispatcher // optional
	OrgID      string
	Now        func() time.Time // optional clock override for tests
}

// NewManager creates a triage Manager.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("triage: completion client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("triage: store is required")
	}
	if opts.OrgID == "" {
		return nil, fmt.Errorf("triage: org is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions:   make(map[string]*session),
		client:     opts.Client,
		store:      opts.Store,
		matcher:    opts.Matcher,
		dispatcher: opts.Dispatcher,
		orgID:      opts.OrgID,
		now:        now,
	}, nil
}

// Start opens a new intake session and processes the first message.
func (m *Manager) Start(ctx context.Context, requesterID, message string) (*Reply, error) {
	id, err := store.GenerateID("triage")
	if err != nil {
		return nil, fmt.Errorf("triage: start: %w", err)
	}
	sess := &session{
		id:          id,
		requesterID: requesterID,
		messages:    []completion.Message{{Role: "system", Content: systemPrompt}},
		lastActive:  m.now(),
	}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	return m.turn(ctx, sess, message)
}

// Message processes one requester message on an existing session. Sessions
// evicted from memory are rebuilt from their persisted transcript.
func (m *Manager) Message(ctx context.Context, sessionID, message string) (*Reply, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()

	if !ok {
		var err error
		sess, err = m.resume(sessionID)
		if err != nil {
			return nil, err
		}
	}
	return m.turn(ctx, sess, message)
}

// resume rebuilds a session from its transcript rows.
func (m *Manager) resume(sessionID string) (*session, error) {
	turns, err := m.store.TurnsBySession(sessionID)
	if err != nil || len(turns) == 0 {
		return nil, ErrSessionNotFound
	}

	sess := &session{
		id:         sessionID,
		messages:   []completion.Message{{Role: "system", Content: systemPrompt}},
		lastActive: m.now(),
	}
	for _, turn := range turns {
		role := "assistant"
		if turn.Role == "requester" {
			role = "user"
			if sess.requesterID == "" {
				sess.requesterID = turn.ParticipantID
			}
		}
		sess.messages = append(sess.messages, completion.Message{Role: role, Content: turn.Content})
		if role == "assistant" {
			if _, ok := ExtractDraft(turn.Content); ok {
				sess.completed = true
			}
		}
	}

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		// Another request resumed it first.
		sess = existing
	} else {
		m.sessions[sessionID] = sess
	}
	m.mu.Unlock()
	return sess, nil
}

// turn runs one request/reply exchange and, when the model signals
// readiness, files the case.
func (m *Manager) turn(ctx context.Context, sess *session, message string) (*Reply, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.completed {
		return nil, ErrSessionCompleted
	}
	sess.lastActive = m.now()

	sess.messages = append(sess.messages, completion.Message{Role: "user", Content: message})
	if err := m.store.AppendTurn(sess.id, sess.requesterID, "requester", message); err != nil {
		log.Printf("triage: %v", err)
	}

	reply, err := m.client.Complete(ctx, completion.Request{Messages: sess.messages})
	if err != nil {
		// Roll the user message back so a retry does not duplicate it.
		sess.messages = sess.messages[:len(sess.messages)-1]
		return nil, fmt.Errorf("triage: session %s: %w", sess.id, err)
	}

	sess.messages = append(sess.messages, completion.Message{Role: "assistant", Content: reply})
	if err := m.store.AppendTurn(sess.id, "", "assistant", reply); err != nil {
		log.Printf("triage: %v", err)
	}

	draft, ready := ExtractDraft(reply)
	if !ready {
		return &Reply{SessionID: sess.id, Content: reply}, nil
	}

	// The flag flips before the case write and is never rolled back: a
	// failed write must not let a retry file the case twice.
	sess.completed = true
	caseID, err := m.fileCase(ctx, sess, draft)
	if err != nil {
		return nil, fmt.Errorf("triage: session %s: %w", sess.id, err)
	}
	sess.caseID = caseID

	return &Reply{
		SessionID: sess.id,
		Content:   visibleReply(reply),
		Completed: true,
		CaseID:    caseID,
	}, nil
}

// fileCase persists the drafted case, attempts a contractor match, and
// notifies the interested parties.
func (m *Manager) fileCase(ctx context.Context, sess *session, draft CaseDraft) (string, error) {
	c := &models.Case{
		OrgID:       m.orgID,
		RequesterID: sess.requesterID,
		Title:       draft.Title,
		Description: draft.Description,
		Urgency:     draft.Urgency,
		Category:    draft.Category,
		Location:    draft.Location,
		Contact:     draft.Contact,
		SessionID:   sess.id,
	}
	if err := m.store.CreateCase(c); err != nil {
		return "", err
	}
	log.Printf("triage: session %s filed case %s (%s)", sess.id, c.ID, c.Urgency)

	m.assign(ctx, c)
	m.announce(ctx, c)
	return c.ID, nil
}

// assign runs the matching engine and records the top pick on the case.
// Escalation sentinels leave the case unassigned for an admin to pick up.
func (m *Manager) assign(ctx context.Context, c *models.Case) {
	if m.matcher == nil {
		return
	}
	candidates, err := m.store.ActiveContractors(c.OrgID)
	if err != nil {
		log.Printf("triage: %v", err)
		return
	}

	results := m.matcher.Match(ctx, matching.CaseInfo{
		Category:    c.Category,
		Description: c.Description,
		Location:    c.Location,
		Urgency:     c.Urgency,
	}, candidates)

	top := results[0]
	if top.ContractorID == matching.AdminEscalationID {
		log.Printf("triage: case %s needs manual assignment: %s", c.ID, top.Reasoning)
		return
	}
	err = m.store.UpdateCase(c.ID, map[string]interface{}{
		"contractor_id": top.ContractorID,
		"status":        "assigned",
	})
	if err != nil {
		log.Printf("triage: %v", err)
		return
	}
	c.ContractorID = top.ContractorID
	c.Status = "assigned"
	log.Printf("triage: case %s assigned to %s (score %d)", c.ID, top.ContractorID, top.Score)
}

// announce notifies the requester and the admin channel about the new
// case. Emergency cases additionally hit the ops mirror via the
// dispatcher's urgency handling.
func (m *Manager) announce(ctx context.Context, c *models.Case) {
	if m.dispatcher == nil {
		return
	}
	kind := notify.KindCaseCreated
	if c.Urgency == notify.UrgencyEmergency {
		kind = notify.KindEmergencyAlert
	}
	env := notify.Envelope{
		Kind:    kind,
		Subject: c.Title,
		Body:    fmt.Sprintf("%s at %s. %s", c.Title, c.Location, c.Description),
		Urgency: c.Urgency,
		CaseID:  c.ID,
	}
	if c.RequesterID != "" {
		m.dispatcher.Dispatch(ctx, env, notify.Selector{PartyID: c.RequesterID})
	}
	m.dispatcher.NotifyRole(ctx, models.RoleAdmin, c.OrgID, env)
	if c.ContractorID != "" {
		m.notifyContractor(ctx, c, env)
	}
}

// notifyContractor reaches the assigned contractor over their recorded
// email and phone. Contractors live in their own table, so the recipient
// is synthesized rather than looked up as a party.
func (m *Manager) notifyContractor(ctx context.Context, c *models.Case, env notify.Envelope) {
	contractor, err := m.store.GetContractor(c.ContractorID)
	if err != nil {
		log.Printf("triage: %v", err)
		return
	}
	env.Kind = notify.KindContractorAssigned
	m.dispatcher.NotifyParty(ctx, &models.Party{
		ID:    contractor.ID,
		OrgID: contractor.OrgID,
		Name:  contractor.Name,
		Role:  models.RoleContractor,
		Email: contractor.Email,
		Phone: contractor.Phone,
	}, env)
}

// Sweep drops incomplete sessions idle longer than maxIdle from memory.
// Their transcripts remain in the store, so a late message resumes them.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("triage: swept %d idle sessions", removed)
	}
	return removed
}

// Active returns the number of sessions currently held in memory.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
