package notify

import (
	"fmt"
	"html"
	"strings"
)

// smsMaxRunes bounds the single-string SMS rendering.
const smsMaxRunes = 160

// kindHeadline maps a notification kind to its template headline.
func kindHeadline(kind string) string {
	switch kind {
	case KindCaseCreated:
		return "Maintenance request received"
	case KindContractorAssigned:
		return "A contractor has been assigned"
	case KindCaseUpdated:
		return "Your maintenance request was updated"
	case KindEmergencyAlert:
		return "EMERGENCY maintenance alert"
	default:
		return "Maintenance notification"
	}
}

// urgencyEmphasis maps case urgency to a subject-line marker.
func urgencyEmphasis(urgency string) string {
	switch urgency {
	case UrgencyEmergency:
		return "[EMERGENCY] "
	case UrgencyUrgent:
		return "[Urgent] "
	default:
		return ""
	}
}

// RenderSubject builds the channel-independent subject line.
func RenderSubject(env Envelope) string {
	subject := env.Subject
	if subject == "" {
		subject = kindHeadline(env.Kind)
	}
	return urgencyEmphasis(env.Urgency) + subject
}

// RenderEmail builds the long-form HTML and plain-text pair for email.
func RenderEmail(env Envelope) (htmlBody, textBody string) {
	headline := kindHeadline(env.Kind)

	var text strings.Builder
	text.WriteString(headline)
	text.WriteString("\n\n")
	text.WriteString(env.Body)
	text.WriteString("\n")
	if env.CaseID != "" {
		fmt.Fprintf(&text, "\nCase: %s", env.CaseID)
	}
	if env.AppointmentID != "" {
		fmt.Fprintf(&text, "\nAppointment: %s", env.AppointmentID)
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	if env.Urgency == UrgencyEmergency {
		fmt.Fprintf(&b, "<h2 style=\"color:#c0392b\">%s</h2>", html.EscapeString(headline))
	} else {
		fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(headline))
	}
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(env.Body))
	if env.CaseID != "" || env.AppointmentID != "" {
		b.WriteString("<p style=\"color:#888;font-size:12px\">")
		if env.CaseID != "" {
			fmt.Fprintf(&b, "Case %s", html.EscapeString(env.CaseID))
		}
		if env.AppointmentID != "" {
			if env.CaseID != "" {
				b.WriteString(" &middot; ")
			}
			fmt.Fprintf(&b, "Appointment %s", html.EscapeString(env.AppointmentID))
		}
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")

	return b.String(), text.String()
}

// RenderSMS builds the single truncated string for SMS.
func RenderSMS(env Envelope) string {
	msg := urgencyEmphasis(env.Urgency) + kindHeadline(env.Kind) + ": " + env.Body
	msg = strings.ReplaceAll(msg, "\n", " ")
	runes := []rune(msg)
	if len(runes) > smsMaxRunes {
		return string(runes[:smsMaxRunes-1]) + "…"
	}
	return msg
}
