package config

import (
	"strings"
	"testing"
)

func validYAML() []byte {
	return []byte(`
org:
  id: northgate
  name: Northgate Housing
  base_url: https://upkeep.northgate.example
approval:
  secret: test-secret
`)
}

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse(validYAML())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Org.ID != "northgate" {
		t.Errorf("Org.ID = %q, want %q", cfg.Org.ID, "northgate")
	}
	if cfg.Approval.Secret != "test-secret" {
		t.Errorf("Approval.Secret = %q, want %q", cfg.Approval.Secret, "test-secret")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(validYAML())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.DB.Host != "127.0.0.1" {
		t.Errorf("DB.Host = %q, want 127.0.0.1", cfg.DB.Host)
	}
	if cfg.DB.Port != 3306 {
		t.Errorf("DB.Port = %d, want 3306", cfg.DB.Port)
	}
	if cfg.DB.Database != "upkeep_northgate" {
		t.Errorf("DB.Database = %q, want upkeep_northgate", cfg.DB.Database)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Approval.TTLHours != 72 {
		t.Errorf("Approval.TTLHours = %d, want 72", cfg.Approval.TTLHours)
	}
	if cfg.Schedule.ApprovalReminder == "" {
		t.Error("expected default approval_reminder cron expression")
	}
}

func TestParse_MissingOrgID(t *testing.T) {
	_, err := Parse([]byte("approval:\n  secret: s\norg:\n  base_url: https://x\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "org.id is required") {
		t.Errorf("error = %v, want org.id message", err)
	}
}

func TestParse_MissingSecret(t *testing.T) {
	_, err := Parse([]byte("org:\n  id: x\n  base_url: https://x\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "approval.secret") {
		t.Errorf("error = %v, want approval.secret message", err)
	}
}

func TestParse_SecretFromEnv(t *testing.T) {
	t.Setenv("UPKEEP_APPROVAL_SECRET", "env-secret")
	cfg, err := Parse([]byte("org:\n  id: x\n  base_url: https://x\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Approval.Secret != "env-secret" {
		t.Errorf("Approval.Secret = %q, want env-secret", cfg.Approval.Secret)
	}
}

func TestParse_SMSRequiresTokenURL(t *testing.T) {
	yaml := `
org:
  id: x
  base_url: https://x
approval:
  secret: s
sms:
  send_url: https://sms.example/send
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected validation error for missing sms.token_url")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("org: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}
