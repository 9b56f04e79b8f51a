// Package triage runs the conversational intake that turns an occupant's
// free-form report into a structured maintenance case.
package triage

import (
	"encoding/json"
	"strings"
)

// readyMarker is the sentinel the model emits once it has gathered enough
// detail to file the case. Everything after it should contain one JSON
// object with the draft fields.
const readyMarker = "CASE_READY"

// CaseDraft is the structured payload extracted from a completed intake.
type CaseDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Urgency     string `json:"urgency"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	Contact     string `json:"contact"`
}

// ExtractDraft scans a model reply for the ready marker and parses the
// draft that follows it. The object is sliced from the first opening brace
// after the marker to the last closing brace, so code fences and trailing
// prose are tolerated. ok is false when the marker is absent or the JSON
// is unusable; the session then simply continues.
func ExtractDraft(reply string) (CaseDraft, bool) {
	idx := strings.Index(reply, readyMarker)
	if idx < 0 {
		return CaseDraft{}, false
	}
	rest := reply[idx+len(readyMarker):]

	start := strings.Index(rest, "{")
	end := strings.LastIndex(rest, "}")
	if start < 0 || end <= start {
		return CaseDraft{}, false
	}

	var draft CaseDraft
	if err := json.Unmarshal([]byte(rest[start:end+1]), &draft); err != nil {
		return CaseDraft{}, false
	}
	if draft.Title == "" || draft.Description == "" {
		return CaseDraft{}, false
	}
	if draft.Urgency == "" {
		draft.Urgency = "Routine"
	}
	return draft, true
}

// visibleReply strips the marker and draft payload from a completed reply
// so the requester sees only the conversational closing text.
func visibleReply(reply string) string {
	idx := strings.Index(reply, readyMarker)
	if idx < 0 {
		return reply
	}
	trimmed := strings.TrimSpace(reply[:idx])
	if trimmed == "" {
		return "Thanks, your maintenance request has been filed."
	}
	return trimmed
}
