package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	t.Setenv("OPENAI_API_KEY", "sk-test")
	for _, k := range []string{"LLM_PROVIDER", "RISK_MODEL", "QC_POLICY", "ALLOW_ORIGIN", "GENERATION_TIMEOUT", "INSIGHT_TIMEOUT"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LLMProvider != "openai" || c.RiskModel != "aggregate" || c.QCPolicy != "relaxed" {
		t.Errorf("defaults: provider=%q model=%q policy=%q", c.LLMProvider, c.RiskModel, c.QCPolicy)
	}
	if c.GenerationTimeout != 22*time.Second || c.InsightTimeout != 16*time.Second {
		t.Errorf("timeouts: %v / %v", c.GenerationTimeout, c.InsightTimeout)
	}
	if diff := cmp.Diff([]string{"*"}, c.AllowOrigins); diff != "" {
		t.Errorf("origins (-want +got):\n%s", diff)
	}
}

func TestLoad_ValidationJoinsErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("RISK_MODEL", "neural")
	t.Setenv("QC_POLICY", "lenient")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"ANTHROPIC", "RISK_MODEL", "QC_POLICY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadDotEnv_RealEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nCB_TEST_A=from_file\nexport CB_TEST_B='quoted'\nCB_TEST_C=\"kept\"\nnot a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CB_TEST_A", "from_env")
	t.Setenv("CB_TEST_B", "")
	t.Setenv("CB_TEST_C", "")

	loadDotEnv(path)

	if got := os.Getenv("CB_TEST_A"); got != "from_env" {
		t.Errorf("CB_TEST_A: got %q, want from_env", got)
	}
	if got := os.Getenv("CB_TEST_B"); got != "quoted" {
		t.Errorf("CB_TEST_B: got %q, want quoted", got)
	}
	if got := os.Getenv("CB_TEST_C"); got != "kept" {
		t.Errorf("CB_TEST_C: got %q, want kept", got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CB_DUR", "4500ms")
	t.Setenv("CB_DUR_MS", "4500")
	t.Setenv("CB_SECS", "16")
	t.Setenv("CB_BOOL", "1")
	t.Setenv("CB_LIST", " https://a.example , ,https://b.example")

	if got := getEnvAsDuration("CB_DUR", 0); got != 4500*time.Millisecond {
		t.Errorf("CB_DUR: %v", got)
	}
	if got := getEnvAsDuration("CB_DUR_MS", 0); got != 4500*time.Millisecond {
		t.Errorf("CB_DUR_MS: %v", got)
	}
	if got := getEnvAsDuration("CB_SECS", 0); got != 16*time.Second {
		t.Errorf("CB_SECS: %v", got)
	}
	if !getEnvAsBool("CB_BOOL", false) {
		t.Error("CB_BOOL: want true")
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, getEnvAsList("CB_LIST", nil)); diff != "" {
		t.Errorf("CB_LIST (-want +got):\n%s", diff)
	}
}
