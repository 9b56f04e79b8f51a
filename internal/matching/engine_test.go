package matching

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oakline/upkeep/internal/completion"
	"github.com/oakline/upkeep/internal/models"
)

func ratingOf(v float64) *float64 { return &v }

func hvacCase() CaseInfo {
	return CaseInfo{
		Category:    "HVAC",
		Urgency:     "Urgent",
		Description: "no heating in unit 4B, boiler pressure dropping",
		Location:    "Northgate block C",
	}
}

func hvacRoster() []models.Contractor {
	return []models.Contractor{
		{
			ID: "c-hvac", OrgID: "org-1", Name: "Apex Climate",
			Category: "HVAC", Specializations: `["boiler","heating"]`,
			Workload: 1, MaxDailyCapacity: 5,
			ResponseTimeHours: 2, EmergencyAvailable: true,
			Rating: ratingOf(4.5), Active: true,
		},
		{
			ID: "c-general", OrgID: "org-1", Name: "Oddjobs Ltd",
			Category: "general", Specializations: `["painting"]`,
			Workload: 4, MaxDailyCapacity: 5,
			ResponseTimeHours: 24, EmergencyAvailable: false,
			Active: true,
		},
	}
}

func TestFallback_SpecialistOutranksGeneralist(t *testing.T) {
	results := Fallback(hvacCase(), hvacRoster())

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ContractorID != "c-hvac" {
		t.Fatalf("top candidate = %s, want c-hvac", results[0].ContractorID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("specialist score %d must exceed generalist %d",
			results[0].Score, results[1].Score)
	}
	if results[0].Score > 100 || results[1].Score < 0 {
		t.Errorf("scores out of range: %d, %d", results[0].Score, results[1].Score)
	}
}

func TestFallback_NeverReturnsEmpty(t *testing.T) {
	roster := []models.Contractor{
		{ID: "c-off", Active: false, Workload: 0, MaxDailyCapacity: 5},
		{ID: "c-full", Active: true, Workload: 5, MaxDailyCapacity: 5},
	}
	results := Fallback(hvacCase(), roster)

	if len(results) != 1 {
		t.Fatalf("got %d results, want the escalation sentinel", len(results))
	}
	if results[0].ContractorID != AdminEscalationID {
		t.Errorf("ContractorID = %s, want %s", results[0].ContractorID, AdminEscalationID)
	}
	if results[0].Score != 0 {
		t.Errorf("sentinel score = %d, want 0", results[0].Score)
	}
}

func TestFallback_CapsAtThreeResults(t *testing.T) {
	var roster []models.Contractor
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		roster = append(roster, models.Contractor{
			ID: id, Active: true, Workload: 0, MaxDailyCapacity: 3,
			Category: "plumbing", ResponseTimeHours: 4,
		})
	}
	results := Fallback(CaseInfo{Category: "plumbing", Urgency: "Routine"}, roster)
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

func TestFallback_OrderIsDescending(t *testing.T) {
	results := Fallback(hvacCase(), hvacRoster())
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("result %d score %d exceeds predecessor %d",
				i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestSpecializationPoints_Capped(t *testing.T) {
	desc := "boiler leaking, heating off, radiator cold, thermostat dead"
	pts := specializationPoints(desc, `["boiler","heating","radiator","thermostat"]`)
	if pts != 20 {
		t.Errorf("points = %d, want cap of 20", pts)
	}
}

func TestSpecializationPoints_ToleratesPlainList(t *testing.T) {
	if pts := specializationPoints("boiler is dead", "boiler, pumps"); pts != 10 {
		t.Errorf("points = %d, want 10 for comma-separated list", pts)
	}
}

// scriptedClient returns a fixed reply or error.
type scriptedClient struct {
	reply string
	err   error
}

func (c *scriptedClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	return c.reply, c.err
}

// stallingClient blocks until the context is cancelled.
type stallingClient struct{}

func (c *stallingClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestMatch_UsesValidModelAdvice(t *testing.T) {
	client := &scriptedClient{reply: `Here is my recommendation:
{"primary":{"contractor_id":"c-hvac","score":92,"reasoning":"boiler specialist","estimated_response":"2h","risk_factors":["gas work"]},
 "alternates":[{"contractor_id":"c-general","score":40,"reasoning":"backup only","estimated_response":"24h","risk_factors":[]}],
 "coordination_notes":"","communication_template":""}`}
	engine := NewEngine(EngineOpts{Completion: client})

	results := engine.Match(context.Background(), hvacCase(), hvacRoster())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ContractorID != "c-hvac" || results[0].Score != 92 {
		t.Errorf("primary = %+v", results[0])
	}
	if len(results[0].RiskFactors) != 1 || results[0].RiskFactors[0] != "gas work" {
		t.Errorf("risk factors = %v", results[0].RiskFactors)
	}
}

func TestMatch_UnknownContractorFallsBack(t *testing.T) {
	client := &scriptedClient{reply: `{"primary":{"contractor_id":"c-made-up","score":99,"reasoning":"","estimated_response":"","risk_factors":[]},"alternates":[]}`}
	engine := NewEngine(EngineOpts{Completion: client})

	results := engine.Match(context.Background(), hvacCase(), hvacRoster())
	if results[0].ContractorID != "c-hvac" {
		t.Errorf("expected deterministic fallback, got %s", results[0].ContractorID)
	}
}

func TestMatch_TransportErrorFallsBack(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream down")}
	engine := NewEngine(EngineOpts{Completion: client})

	results := engine.Match(context.Background(), hvacCase(), hvacRoster())
	if len(results) == 0 || results[0].ContractorID != "c-hvac" {
		t.Errorf("expected deterministic fallback, got %+v", results)
	}
}

func TestMatch_TimeoutFallsBack(t *testing.T) {
	engine := NewEngine(EngineOpts{Completion: &stallingClient{}, Timeout: 20 * time.Millisecond})

	start := time.Now()
	results := engine.Match(context.Background(), hvacCase(), hvacRoster())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("match took %v, timeout not enforced", elapsed)
	}
	if results[0].ContractorID != "c-hvac" {
		t.Errorf("expected deterministic fallback, got %s", results[0].ContractorID)
	}
}

func TestMatch_NilClientUsesFallback(t *testing.T) {
	engine := NewEngine(EngineOpts{})
	results := engine.Match(context.Background(), hvacCase(), hvacRoster())
	if len(results) != 2 || results[0].ContractorID != "c-hvac" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestValidateAdvice(t *testing.T) {
	roster := hvacRoster()
	cases := []struct {
		name string
		adv  advice
		want int
	}{
		{"valid", advice{Primary: adviceRec{ContractorID: "c-hvac", Score: 80}}, 0},
		{"missing primary", advice{}, 1},
		{"score out of range", advice{Primary: adviceRec{ContractorID: "c-hvac", Score: 120}}, 1},
		{"too many alternates", advice{
			Primary: adviceRec{ContractorID: "c-hvac", Score: 80},
			Alternates: []adviceRec{
				{ContractorID: "c-general", Score: 10},
				{ContractorID: "c-general", Score: 10},
				{ContractorID: "c-general", Score: 10},
			},
		}, 1},
		{"alternate duplicates primary", advice{
			Primary:    adviceRec{ContractorID: "c-hvac", Score: 80},
			Alternates: []adviceRec{{ContractorID: "c-hvac", Score: 70}},
		}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := validateAdvice(&tc.adv, roster)
			if len(errs) != tc.want {
				t.Errorf("got %d problems %v, want %d", len(errs), errs, tc.want)
			}
		})
	}
}

func TestParseAdvice_NoObject(t *testing.T) {
	if _, err := parseAdvice("sorry, I cannot help"); err == nil {
		t.Fatal("expected error for reply without JSON")
	}
}

func TestBuildPrompt_ListsCandidates(t *testing.T) {
	prompt := BuildPrompt(hvacCase(), hvacRoster())
	for _, want := range []string{"c-hvac", "c-general", "HVAC", "Urgent"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Estimated duration") {
		t.Error("duration line should be omitted when no estimate is known")
	}
}

func TestBuildPrompt_IncludesEstimatedDuration(t *testing.T) {
	info := hvacCase()
	info.EstimatedHours = 3
	prompt := BuildPrompt(info, hvacRoster())
	if !strings.Contains(prompt, "Estimated duration: 3h") {
		t.Errorf("prompt missing duration line:\n%s", prompt)
	}
}
