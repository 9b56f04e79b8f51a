// Package notify delivers pipeline events to people over push, email,
// and SMS. Delivery is best-effort: channel failures are logged and
// counted, never propagated to the calling workflow.
package notify

// Notification kinds, each with its own channel templates.
const (
	KindCaseCreated        = "case_created"
	KindContractorAssigned = "contractor_assigned"
	KindCaseUpdated        = "case_updated"
	KindEmergencyAlert     = "emergency_alert"
)

// Case urgency values carried through to rendering emphasis.
const (
	UrgencyEmergency = "Emergency"
	UrgencyUrgent    = "Urgent"
	UrgencyRoutine   = "Routine"
)

// Envelope is a single notification: one subject/body pair rendered per
// channel at dispatch time. Created and consumed within one dispatch call.
type Envelope struct {
	Kind          string
	Subject       string
	Body          string
	Urgency       string
	CaseID        string
	AppointmentID string
}

// Selector names the recipients of a dispatch: either one party, or every
// live push connection with a role inside an organization.
type Selector struct {
	PartyID string
	Role    string
	OrgID   string
}

// DeliveryReport summarizes one dispatch's channel outcomes.
type DeliveryReport struct {
	Attempted int
	Delivered int
	Failures  []string
}

// Failed reports whether every attempted channel failed.
func (r DeliveryReport) Failed() bool {
	return r.Attempted > 0 && r.Delivered == 0
}
