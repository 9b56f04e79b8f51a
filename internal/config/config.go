// Package config provides YAML-based configuration loading for Upkeep.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Upkeep configuration, loaded from config.yaml.
type Config struct {
	Org        OrgConfig        `yaml:"org"`
	DB         DBConfig         `yaml:"db"`
	HTTP       HTTPConfig       `yaml:"http"`
	Completion CompletionConfig `yaml:"completion"`
	Approval   ApprovalConfig   `yaml:"approval"`
	Email      EmailConfig      `yaml:"email"`
	SMS        SMSConfig        `yaml:"sms"`
	OpsChat    OpsChatConfig    `yaml:"ops_chat"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// OrgConfig identifies the housing organization this instance serves.
type OrgConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"` // public base for approval links
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// CompletionConfig points at an OpenAI-compatible chat completion endpoint.
type CompletionConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ApprovalConfig controls the signed consent-token workflow.
type ApprovalConfig struct {
	Secret   string `yaml:"secret"`
	TTLHours int    `yaml:"ttl_hours"`
}

// EmailConfig holds SMTP delivery settings. Empty Host disables the channel.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SMSConfig holds settings for the HTTP SMS gateway. The gateway
// authenticates with an OAuth2 client-credentials grant. Empty SendURL
// disables the channel.
type SMSConfig struct {
	SendURL      string `yaml:"send_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	From         string `yaml:"from"`
}

// OpsChatConfig configures optional Slack/Discord mirrors for emergency
// alerts. Empty tokens disable the respective sender.
type OpsChatConfig struct {
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// ScheduleConfig holds 5-field cron expressions for the reminder digests.
type ScheduleConfig struct {
	ApprovalReminder string `yaml:"approval_reminder"`
	UnassignedDigest string `yaml:"unassigned_digest"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" && c.Org.ID != "" {
		c.DB.Database = "upkeep_" + c.Org.ID
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Completion.BaseURL == "" {
		c.Completion.BaseURL = "https://api.openai.com/v1"
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Approval.TTLHours == 0 {
		c.Approval.TTLHours = 72
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Schedule.ApprovalReminder == "" {
		c.Schedule.ApprovalReminder = "0 9 * * *"
	}
	if c.Schedule.UnassignedDigest == "" {
		c.Schedule.UnassignedDigest = "0 8 * * 1-5"
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("UPKEEP_APPROVAL_SECRET"); v != "" {
		c.Approval.Secret = v
	}
	if v := os.Getenv("UPKEEP_COMPLETION_API_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("UPKEEP_SMTP_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("UPKEEP_SMS_CLIENT_SECRET"); v != "" {
		c.SMS.ClientSecret = v
	}
	if v := os.Getenv("UPKEEP_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Org.ID == "" {
		errs = append(errs, "org.id is required")
	}
	if c.Org.BaseURL == "" {
		errs = append(errs, "org.base_url is required")
	}
	if c.Approval.Secret == "" {
		errs = append(errs, "approval.secret is required (or UPKEEP_APPROVAL_SECRET)")
	}
	if c.Approval.TTLHours < 0 {
		errs = append(errs, "approval.ttl_hours must not be negative")
	}
	if c.SMS.SendURL != "" && c.SMS.TokenURL == "" {
		errs = append(errs, "sms.token_url is required when sms.send_url is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
