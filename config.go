package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AutocommentRule binds a deterministic code check to the rubric comment it
// applies. Rule is one of "missing-file", "no-comments", "long-lines".
type AutocommentRule struct {
	Rule    string   `yaml:"rule"`
	Comment string   `yaml:"comment"` // rubric comment short name
	Files   []string `yaml:"files"`   // files the rule inspects; empty = all code files
}

type Config struct {
	CodePostAPIKey string `yaml:"codepost_api_key"`
	CodePostAPIURL string `yaml:"codepost_api_url"`

	Course string `yaml:"course"`
	Period string `yaml:"period"`

	EmailDomain string `yaml:"email_domain"`
	DummyGrader string `yaml:"dummy_grader"`

	AuditComment string `yaml:"audit_comment"`
	AuditTarget  int    `yaml:"audit_target"`
	LineLimit    int    `yaml:"line_limit"`

	OutputDir string `yaml:"output_dir"`
	DBPath    string `yaml:"db_path"`

	GoogleCredentialsPath string `yaml:"google_credentials_path"`
	GoogleTokenPath       string `yaml:"google_token_path"`
	SpreadsheetID         string `yaml:"spreadsheet_id"`

	SlackBotToken string `yaml:"slack_bot_token"`
	SlackChannel  string `yaml:"slack_channel"`

	StatsCron string `yaml:"stats_cron"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	AutocommentRules []AutocommentRule `yaml:"autocomment_rules"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from gradebot.yaml if it exists
	configPath := "gradebot.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.CodePostAPIKey, "CODEPOST_API_KEY")
	envOverride(&cfg.CodePostAPIURL, "CODEPOST_API_URL")
	envOverride(&cfg.Course, "COURSE")
	envOverride(&cfg.Period, "PERIOD")
	envOverride(&cfg.EmailDomain, "EMAIL_DOMAIN")
	envOverride(&cfg.DummyGrader, "DUMMY_GRADER")
	envOverride(&cfg.AuditComment, "AUDIT_COMMENT")
	envOverrideInt(&cfg.AuditTarget, "AUDIT_TARGET")
	envOverrideInt(&cfg.LineLimit, "LINE_LIMIT")
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.GoogleCredentialsPath, "GOOGLE_CREDENTIALS_PATH")
	envOverride(&cfg.GoogleTokenPath, "GOOGLE_TOKEN_PATH")
	envOverride(&cfg.SpreadsheetID, "SPREADSHEET_ID")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannel, "SLACK_CHANNEL")
	envOverride(&cfg.StatsCron, "STATS_CRON")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")

	// Defaults
	if cfg.CodePostAPIURL == "" {
		cfg.CodePostAPIURL = "https://api.codepost.io"
	}
	cfg.CodePostAPIURL = strings.TrimRight(cfg.CodePostAPIURL, "/")
	if cfg.AuditComment == "" {
		cfg.AuditComment = "quality-assurance"
	}
	if cfg.AuditTarget == 0 {
		cfg.AuditTarget = 2
	}
	if cfg.LineLimit == 0 {
		cfg.LineLimit = 87
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./gradebot.db"
	}
	if cfg.GoogleCredentialsPath == "" {
		cfg.GoogleCredentialsPath = "./credentials.json"
	}
	if cfg.GoogleTokenPath == "" {
		cfg.GoogleTokenPath = "./token.json"
	}
	if cfg.StatsCron == "" {
		cfg.StatsCron = "*/5 * * * *"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = 30
	}
	cfg.DummyGrader = makeEmail(cfg.DummyGrader, cfg.EmailDomain)

	// Validate required fields
	required := map[string]string{
		"codepost_api_key": cfg.CodePostAPIKey,
		"course":           cfg.Course,
		"period":           cfg.Period,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via gradebot.yaml or env var)", name)
		}
	}

	if cfg.AuditTarget < 1 {
		log.Fatalf("invalid audit_target '%d': must be >= 1", cfg.AuditTarget)
	}
	if cfg.LineLimit < 1 {
		log.Fatalf("invalid line_limit '%d': must be >= 1", cfg.LineLimit)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 1 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 1", cfg.ExternalHTTPTimeoutSeconds)
	}
	for i, rule := range cfg.AutocommentRules {
		switch rule.Rule {
		case "missing-file":
			if len(rule.Files) == 0 {
				log.Fatalf("autocomment_rules[%d]: missing-file requires a files list", i)
			}
		case "no-comments", "long-lines":
		default:
			log.Fatalf("autocomment_rules[%d]: unknown rule '%s'", i, rule.Rule)
		}
		if rule.Comment == "" {
			log.Fatalf("autocomment_rules[%d]: comment is required", i)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

func (c Config) SheetsConfigured() bool {
	return c.SpreadsheetID != ""
}

// CourseSlug is the directory-safe course identifier used under output_dir.
func (c Config) CourseSlug() string {
	return sanitizeFilename(c.Course + "_" + c.Period)
}
