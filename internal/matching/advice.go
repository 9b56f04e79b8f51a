package matching

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/oakline/upkeep/internal/models"
)

// advice is the schema the model must produce.
type advice struct {
	Primary               adviceRec   `json:"primary"`
	Alternates            []adviceRec `json:"alternates"`
	CoordinationNotes     string      `json:"coordination_notes"`
	CommunicationTemplate string      `json:"communication_template"`
}

type adviceRec struct {
	ContractorID      string   `json:"contractor_id"`
	Score             int      `json:"score"`
	Reasoning         string   `json:"reasoning"`
	EstimatedResponse string   `json:"estimated_response"`
	RiskFactors       []string `json:"risk_factors"`
}

// parseAdvice extracts the JSON object from a model reply. Replies wrapped
// in prose or code fences are tolerated by slicing from the first brace to
// the last.
func parseAdvice(text string) (*advice, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("matching: no JSON object in model reply")
	}
	var adv advice
	if err := json.Unmarshal([]byte(text[start:end+1]), &adv); err != nil {
		return nil, fmt.Errorf("matching: decode model advice: %w", err)
	}
	return &adv, nil
}

// validateAdvice checks model advice against the candidate roster. Returns
// all problems found, not just the first.
func validateAdvice(adv *advice, candidates []models.Contractor) []string {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}

	var errs []string
	if adv.Primary.ContractorID == "" {
		errs = append(errs, "primary recommendation is missing")
	} else if !known[adv.Primary.ContractorID] {
		errs = append(errs, fmt.Sprintf("primary contractor %q is not a candidate", adv.Primary.ContractorID))
	}
	if adv.Primary.Score < 0 || adv.Primary.Score > 100 {
		errs = append(errs, fmt.Sprintf("primary score %d out of range", adv.Primary.Score))
	}
	if len(adv.Alternates) > 2 {
		errs = append(errs, fmt.Sprintf("%d alternates given, at most 2 allowed", len(adv.Alternates)))
	}
	for i, alt := range adv.Alternates {
		if !known[alt.ContractorID] {
			errs = append(errs, fmt.Sprintf("alternate %d contractor %q is not a candidate", i, alt.ContractorID))
		}
		if alt.Score < 0 || alt.Score > 100 {
			errs = append(errs, fmt.Sprintf("alternate %d score %d out of range", i, alt.Score))
		}
		if alt.ContractorID == adv.Primary.ContractorID {
			errs = append(errs, fmt.Sprintf("alternate %d duplicates the primary", i))
		}
	}
	return errs
}

// results converts validated advice into the engine's ordered result list.
func (a *advice) results() []Result {
	out := []Result{toResult(a.Primary)}
	for _, alt := range a.Alternates {
		out = append(out, toResult(alt))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func toResult(rec adviceRec) Result {
	return Result{
		ContractorID:      rec.ContractorID,
		Score:             rec.Score,
		Reasoning:         rec.Reasoning,
		EstimatedResponse: rec.EstimatedResponse,
		RiskFactors:       rec.RiskFactors,
	}
}
