package matching

import (
	"strings"
	"text/template"

	"github.com/oakline/upkeep/internal/models"
)

const promptText = `A maintenance case needs a contractor assignment.

Case:
- Category: {{.Case.Category}}
- Urgency: {{.Case.Urgency}}{{if .Case.Priority}} (priority {{.Case.Priority}}){{end}}
- Location: {{.Case.Location}}
- Safety risk: {{if .Case.SafetyRisk}}yes{{else}}no{{end}}
{{- if gt .Case.EstimatedHours 0.0}}
- Estimated duration: {{.Case.EstimatedHours}}h
{{- end}}
- Description: {{.Case.Description}}

Candidates:
{{range .Candidates}}- id={{.ID}} name={{.Name}} category={{.Category}} specializations={{.Specializations}} workload={{.Workload}}/{{.MaxDailyCapacity}} response_hours={{.ResponseTimeHours}} emergency_available={{.EmergencyAvailable}}{{if .Rating}} rating={{.Rating}}{{end}}
{{end}}
Pick the best contractor and up to two alternates. Use only the candidate
ids listed above. Respond with a single JSON object:

{
  "primary": {"contractor_id": "...", "score": 0-100, "reasoning": "...", "estimated_response": "...", "risk_factors": ["..."]},
  "alternates": [{"contractor_id": "...", "score": 0-100, "reasoning": "...", "estimated_response": "...", "risk_factors": []}],
  "coordination_notes": "...",
  "communication_template": "..."
}`

var promptTmpl = template.Must(template.New("match").Parse(promptText))

// BuildPrompt renders the dispatch prompt for one case against a candidate
// roster.
func BuildPrompt(info CaseInfo, candidates []models.Contractor) string {
	var b strings.Builder
	err := promptTmpl.Execute(&b, struct {
		Case       CaseInfo
		Candidates []models.Contractor
	}{Case: info, Candidates: candidates})
	if err != nil {
		// The template only touches fields that exist; execution cannot
		// fail on well-formed inputs.
		return promptText
	}
	return b.String()
}
