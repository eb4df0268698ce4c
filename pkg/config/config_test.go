package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: development\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", c.Server.Port)
	}
	if c.Model.HiddenSize != 128 || c.Model.OutputSize != 3 {
		t.Fatalf("unexpected model defaults %+v", c.Model)
	}
	if c.Data.SequenceLength != 60 {
		t.Fatalf("expected default sequence length 60, got %d", c.Data.SequenceLength)
	}
	if c.Training.LearningRate != 0.001 {
		t.Fatalf("expected default lr 0.001, got %v", c.Training.LearningRate)
	}
	if !c.Normalize() {
		t.Fatalf("normalization should default to on")
	}
	if len(c.FeatureList()) != 4 {
		t.Fatalf("unexpected default features %v", c.FeatureList())
	}
}

func TestLoadOverrides(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: production
model:
  hidden_size: 64
  attention_heads: 8
data:
  symbols: [BTC, ETH]
  sequence_length: 30
  normalize: false
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Model.HiddenSize != 64 || c.Model.AttentionHead != 8 {
		t.Fatalf("overrides not applied: %+v", c.Model)
	}
	if c.Normalize() {
		t.Fatalf("explicit normalize: false was ignored")
	}
	if len(c.Data.Symbols) != 2 {
		t.Fatalf("unexpected symbols %v", c.Data.Symbols)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "environment: nonsense\n")); err == nil {
		t.Fatalf("expected validation error for bad environment")
	}
	if _, err := Load(writeConfig(t, "environment: development\nmodel:\n  dropout: 1.5\n")); err == nil {
		t.Fatalf("expected validation error for dropout >= 1")
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("SYMBOLS", "BTC,SOL")
	c, err := LoadWithEnv(writeConfig(t, "environment: development\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9999 {
		t.Fatalf("env port override missing, got %d", c.Server.Port)
	}
	if len(c.Data.Symbols) != 2 || c.Data.Symbols[1] != "SOL" {
		t.Fatalf("env symbols override missing: %v", c.Data.Symbols)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
