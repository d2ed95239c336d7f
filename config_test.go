package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("CODEPOST_API_KEY", "cp-test")
	t.Setenv("COURSE", "COS 126")
	t.Setenv("PERIOD", "F2025")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if cfg.CodePostAPIKey != "cp-test" {
		t.Fatalf("unexpected api key: %q", cfg.CodePostAPIKey)
	}
	if cfg.CodePostAPIURL != "https://api.codepost.io" {
		t.Fatalf("unexpected api url default: %q", cfg.CodePostAPIURL)
	}
	if cfg.AuditComment != "quality-assurance" {
		t.Fatalf("unexpected audit comment default: %q", cfg.AuditComment)
	}
	if cfg.AuditTarget != 2 {
		t.Fatalf("unexpected audit target default: %d", cfg.AuditTarget)
	}
	if cfg.LineLimit != 87 {
		t.Fatalf("unexpected line limit default: %d", cfg.LineLimit)
	}
	if cfg.OutputDir != "./output" {
		t.Fatalf("unexpected output dir default: %q", cfg.OutputDir)
	}
	if cfg.DBPath != "./gradebot.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.StatsCron != "*/5 * * * *" {
		t.Fatalf("unexpected stats cron default: %q", cfg.StatsCron)
	}
	if cfg.ExternalHTTPTimeoutSeconds != 30 {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.DummyGrader != "" {
		t.Fatalf("dummy grader should default to unset, got %q", cfg.DummyGrader)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
codepost_api_key: "yaml-key"
course: "COS 226"
period: "S2026"
email_domain: "school.edu"
dummy_grader: "queue-hold"
output_dir: "/tmp/yaml-output"
audit_target: 3
autocomment_rules:
  - rule: "missing-file"
    comment: "missing-readme"
    files: ["readme.txt"]
  - rule: "long-lines"
    comment: "long-line"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("COURSE", "COS 126")
	t.Setenv("CODEPOST_API_URL", "https://cp.example.com/")

	cfg := LoadConfig()

	if cfg.Course != "COS 126" {
		t.Fatalf("expected course from env override, got %q", cfg.Course)
	}
	if cfg.Period != "S2026" {
		t.Fatalf("expected period from yaml, got %q", cfg.Period)
	}
	if cfg.CodePostAPIURL != "https://cp.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.CodePostAPIURL)
	}
	if cfg.OutputDir != "/tmp/yaml-output" {
		t.Fatalf("expected output dir from yaml, got %q", cfg.OutputDir)
	}
	if cfg.AuditTarget != 3 {
		t.Fatalf("expected audit target from yaml, got %d", cfg.AuditTarget)
	}
	if cfg.DummyGrader != "queue-hold@school.edu" {
		t.Fatalf("expected dummy grader completed with the domain, got %q", cfg.DummyGrader)
	}
	if len(cfg.AutocommentRules) != 2 || cfg.AutocommentRules[0].Rule != "missing-file" {
		t.Fatalf("unexpected autocomment rules: %+v", cfg.AutocommentRules)
	}
	if len(cfg.AutocommentRules[0].Files) != 1 {
		t.Fatalf("rule files not parsed: %+v", cfg.AutocommentRules[0])
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("GB_TEST_STR", "value")
	envOverride(&s, "GB_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	unset := "kept"
	envOverride(&unset, "GB_TEST_UNSET")
	if unset != "kept" {
		t.Fatalf("envOverride must keep the value when the var is unset, got %q", unset)
	}

	i := 1
	t.Setenv("GB_TEST_INT", "42")
	envOverrideInt(&i, "GB_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}
}

func TestConfigPredicates(t *testing.T) {
	cfg := Config{}
	if cfg.SlackConfigured() || cfg.SheetsConfigured() {
		t.Fatal("empty config must not report integrations as configured")
	}

	cfg.SlackBotToken = "xoxb-test"
	if cfg.SlackConfigured() {
		t.Fatal("slack needs both a token and a channel")
	}
	cfg.SlackChannel = "#grading"
	if !cfg.SlackConfigured() {
		t.Fatal("expected slack configured")
	}

	cfg.SpreadsheetID = "sheet-id"
	if !cfg.SheetsConfigured() {
		t.Fatal("expected sheets configured")
	}
}

func TestCourseSlug(t *testing.T) {
	cfg := Config{Course: "COS 126: Intro", Period: "F2025"}
	if got := cfg.CourseSlug(); got != "COS 126_ Intro_F2025" {
		t.Fatalf("unexpected course slug: %q", got)
	}
}

func TestLoadConfigMissingRequiredFatal(t *testing.T) {
	if os.Getenv("TEST_MISSING_REQUIRED_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("CODEPOST_API_KEY", "cp-test")
		_ = os.Setenv("COURSE", "COS 126")
		_ = os.Unsetenv("PERIOD")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigMissingRequiredFatal")
	cmd.Env = append(os.Environ(), "TEST_MISSING_REQUIRED_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigBadRuleFatal(t *testing.T) {
	if os.Getenv("TEST_BAD_RULE_FATAL") == "1" {
		cfgPath := filepath.Join(os.TempDir(), "gradebot-bad-rule.yaml")
		content := `
codepost_api_key: "cp-test"
course: "COS 126"
period: "F2025"
autocomment_rules:
  - rule: "missing-file"
    comment: "missing-readme"
`
		_ = os.WriteFile(cfgPath, []byte(content), 0o644)
		_ = os.Setenv("CONFIG_PATH", cfgPath)
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigBadRuleFatal")
	cmd.Env = append(os.Environ(), "TEST_BAD_RULE_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected missing-file without files to be fatal")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
