package authflow

import (
	"errors"
	"strings"
	"time"
)

// Environment gates development-only behavior, most notably whether the
// backend's echoed verification code is exposed for display and auto-fill.
type Environment uint8

const (
	// EnvProduction hides development aids.
	EnvProduction Environment = iota
	// EnvDevelopment exposes the backend's echoed verification code.
	EnvDevelopment
)

// Config defines engine-wide settings. Instances are cloned at Build and
// treated as immutable afterwards.
type Config struct {
	Environment  Environment
	Verification VerificationConfig
	Flow         FlowConfig
	Welcome      WelcomeConfig
	Session      SessionConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// VerificationConfig controls the one-time-code verifier.
type VerificationConfig struct {
	CodeLength     int
	MaxAttempts    int
	ResendCooldown time.Duration
	// CountryCode is the fixed prefix applied to validated local phone
	// numbers, e.g. "+91".
	CountryCode string
}

// FlowConfig controls orchestrator timing.
type FlowConfig struct {
	// LoadingDelay is the fixed interval the flow spends in the loading
	// state before the first interactive state, unless an existing session
	// short-circuits entry entirely.
	LoadingDelay time.Duration
}

// WelcomeStage is one step of the staged post-auth welcome sequence.
type WelcomeStage struct {
	Name     string
	Duration time.Duration
}

// WelcomeConfig defines the fixed, non-skippable welcome sequence shown
// between a successful customer verification and the terminal redirect.
type WelcomeConfig struct {
	Stages []WelcomeStage
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	RedisPrefix string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Environment: EnvProduction,
		Verification: VerificationConfig{
			CodeLength:     6,
			MaxAttempts:    3,
			ResendCooldown: 30 * time.Second,
			CountryCode:    "+91",
		},
		Flow: FlowConfig{
			LoadingDelay: 900 * time.Millisecond,
		},
		Welcome: WelcomeConfig{
			Stages: []WelcomeStage{
				{Name: "account-setup", Duration: 1200 * time.Millisecond},
				{Name: "discovery", Duration: 1200 * time.Millisecond},
				{Name: "dashboard-preparation", Duration: 1200 * time.Millisecond},
			},
		},
		Session: SessionConfig{
			RedisPrefix: "af",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Verification.CodeLength < 4 || c.Verification.CodeLength > 10 {
		return errors.New("verification code length must be between 4 and 10")
	}
	if c.Verification.MaxAttempts < 1 {
		return errors.New("verification max attempts must be at least 1")
	}
	if c.Verification.ResendCooldown <= 0 {
		return errors.New("verification resend cooldown must be positive")
	}
	if !strings.HasPrefix(c.Verification.CountryCode, "+") {
		return errors.New("country code must start with +")
	}
	if c.Flow.LoadingDelay < 0 {
		return errors.New("loading delay must not be negative")
	}
	if len(c.Welcome.Stages) == 0 {
		return errors.New("welcome sequence requires at least one stage")
	}
	for _, stage := range c.Welcome.Stages {
		if stage.Name == "" {
			return errors.New("welcome stage requires a name")
		}
		if stage.Duration <= 0 {
			return errors.New("welcome stage duration must be positive")
		}
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Welcome.Stages = append([]WelcomeStage(nil), c.Welcome.Stages...)
	return out
}
