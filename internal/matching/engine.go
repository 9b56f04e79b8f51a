// Package matching scores contractors for a case. A model-assisted path
// is tried first under a hard timeout; a deterministic scorer is the
// fallback. Both paths return a non-empty, score-descending list.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/oakline/upkeep/internal/completion"
	"github.com/oakline/upkeep/internal/models"
)

// AdminEscalationID is the reserved contractor identifier returned when no
// candidate is workable. Callers route these cases to a human coordinator.
const AdminEscalationID = "admin-intervention"

// modelTimeout bounds the model-assisted call. A result arriving after the
// fallback has been taken is discarded; first resolution wins.
const modelTimeout = 12 * time.Second

// maxResults caps the fallback ranking.
const maxResults = 3

// CaseInfo is the case-like record the engine scores against.
type CaseInfo struct {
	Category       string
	Description    string
	Location       string
	Urgency        string // Emergency, Urgent, Routine
	Priority       string // optional dispatcher priority, e.g. "Critical"
	SafetyRisk     bool
	EstimatedHours float64
}

// Result is one scored candidate. Ordering in the returned slice is
// significant: descending score, stable on ties.
type Result struct {
	ContractorID      string
	Score             int
	Reasoning         string
	EstimatedResponse string
	RiskFactors       []string
	Availability      string
}

// Engine matches cases to contractors.
type Engine struct {
	completion completion.Client
	timeout    time.Duration
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Completion completion.Client // optional; nil skips the model-assisted path
	Timeout    time.Duration     // defaults to modelTimeout
}

// NewEngine creates a matching Engine.
func NewEngine(opts EngineOpts) *Engine {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = modelTimeout
	}
	return &Engine{completion: opts.Completion, timeout: timeout}
}

// Match returns an ordered, never-empty list of scored candidates.
func (e *Engine) Match(ctx context.Context, info CaseInfo, candidates []models.Contractor) []Result {
	if e.completion != nil && len(candidates) > 0 {
		if results, ok := e.matchWithModel(ctx, info, candidates); ok {
			return results
		}
	}
	return Fallback(info, candidates)
}

// matchWithModel runs the model-assisted path under the timeout. Timeout,
// transport failure, and schema-validation failure all report !ok so the
// caller proceeds to the fallback.
func (e *Engine) matchWithModel(ctx context.Context, info CaseInfo, candidates []models.Contractor) ([]Result, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	// Buffered so a late result after the timeout is dropped, not leaked.
	ch := make(chan outcome, 1)
	go func() {
		text, err := e.completion.Complete(callCtx, completion.Request{
			Messages: []completion.Message{
				{Role: "system", Content: "You are a dispatch coordinator for a housing maintenance team. Respond only with the requested JSON object."},
				{Role: "user", Content: BuildPrompt(info, candidates)},
			},
			JSONOnly:    true,
			Temperature: 0.2,
		})
		ch <- outcome{text: text, err: err}
	}()

	select {
	case <-callCtx.Done():
		log.Printf("matching: model call abandoned: %v", callCtx.Err())
		return nil, false
	case out := <-ch:
		if out.err != nil {
			log.Printf("matching: model call failed: %v", out.err)
			return nil, false
		}
		adv, err := parseAdvice(out.text)
		if err != nil {
			log.Printf("matching: %v", err)
			return nil, false
		}
		if errs := validateAdvice(adv, candidates); len(errs) > 0 {
			log.Printf("matching: model advice rejected: %s", strings.Join(errs, "; "))
			return nil, false
		}
		return adv.results(), true
	}
}

// Fallback deterministically scores candidates. Inactive and saturated
// contractors are filtered first; if nothing remains a single admin
// escalation sentinel is returned, never an empty list.
func Fallback(info CaseInfo, candidates []models.Contractor) []Result {
	var workable []models.Contractor
	for _, c := range candidates {
		if c.Active && c.Workload < c.MaxDailyCapacity {
			workable = append(workable, c)
		}
	}

	if len(workable) == 0 {
		return []Result{{
			ContractorID: AdminEscalationID,
			Score:        0,
			Reasoning:    "No active contractor has spare capacity; manual coordination is required.",
		}}
	}

	results := make([]Result, 0, len(workable))
	for _, c := range workable {
		score, reasons := scoreContractor(info, c)
		results = append(results, Result{
			ContractorID:      c.ID,
			Score:             score,
			Reasoning:         strings.Join(reasons, "; "),
			EstimatedResponse: fmt.Sprintf("%gh", c.ResponseTimeHours),
			Availability:      c.Availability,
		})
	}

	// Stable keeps input order on ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// scoreContractor computes the deterministic suitability score for one
// candidate, clamped to [0,100].
func scoreContractor(info CaseInfo, c models.Contractor) (int, []string) {
	score := 50
	reasons := []string{"baseline"}

	category := strings.ToLower(strings.TrimSpace(info.Category))
	candCategory := strings.ToLower(strings.TrimSpace(c.Category))
	switch {
	case category != "" && category == candCategory:
		score += 25
		reasons = append(reasons, "category match")
	case category != "" && candCategory != "" &&
		(strings.Contains(candCategory, category) || strings.Contains(category, candCategory)):
		score += 20
		reasons = append(reasons, "category overlap")
	}

	if pts := specializationPoints(info.Description, c.Specializations); pts > 0 {
		score += pts
		reasons = append(reasons, "specialization keywords")
	}

	if c.MaxDailyCapacity > 0 {
		idle := 1 - float64(c.Workload)/float64(c.MaxDailyCapacity)
		score += int(15 * idle)
		reasons = append(reasons, fmt.Sprintf("%d/%d workload", c.Workload, c.MaxDailyCapacity))
	}

	if isPressing(info) && c.EmergencyAvailable {
		score += 15
		reasons = append(reasons, "emergency-available")
	}

	switch {
	case c.ResponseTimeHours <= 2:
		score += 10
		reasons = append(reasons, "responds within 2h")
	case c.ResponseTimeHours <= 8:
		score += 5
		reasons = append(reasons, "responds within 8h")
	}

	if c.Rating != nil && *c.Rating >= 4.0 {
		score += 10
		reasons = append(reasons, "highly rated")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, reasons
}

// isPressing reports whether the case urgency or priority warrants the
// emergency-availability bonus.
func isPressing(info CaseInfo) bool {
	for _, v := range []string{info.Urgency, info.Priority} {
		switch strings.ToLower(v) {
		case "urgent", "emergency", "critical":
			return true
		}
	}
	return false
}

// specializationPoints awards 10 per specialization keyword found in the
// case description, capped at 20. Specializations is a JSON array.
func specializationPoints(description, specializations string) int {
	if specializations == "" || description == "" {
		return 0
	}
	var keywords []string
	if err := json.Unmarshal([]byte(specializations), &keywords); err != nil {
		// Tolerate plain comma-separated lists from older rows.
		keywords = strings.Split(specializations, ",")
	}
	desc := strings.ToLower(description)
	points := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(desc, kw) {
			points += 10
			if points >= 20 {
				return 20
			}
		}
	}
	return points
}
