package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	AllowedOrigin      string
	MaxUploadMB        int
	ReadTimeoutSec     int
	WriteTimeoutSec    int
	ShutdownTimeoutSec int

	LogLevel  string
	LogFormat string

	DBPath         string
	DownloadDir    string
	TempDir        string
	BillImageDir   string
	BillPDFDir     string
	RawMailDir     string
	CatalogPath    string
	UploadFreshMin int

	TemplateSource     string
	TemplateDir        string
	TemplateBucket     string
	GCSCredentialsFile string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	AuthzMode       string
	AuthzModelPath  string
	AuthzPolicyPath string
	SessionTTLHours int

	CollectorMode      string
	CollectorTimeoutMs int
	CollectorRateRPS   int
	CollectorRetries   int
	CollectorWaitSec   int

	GroupwareBaseURL   string
	GroupwareTimeoutMs int

	DefaultLicenseCount int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	BillMailProvider    string
	BillMailLabel       string
	BillMailIntervalSec int
	BillMailFetchMax    int
	BillMailThreshold   float64
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}
	data := getEnv("DATA_DIR", filepath.Join(cwd, "data"))

	cfg := Config{
		Addr:               ":" + getEnv("PORT", "5001"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 100),
		ReadTimeoutSec:     getEnvInt("HTTP_READ_TIMEOUT_SEC", 60),
		WriteTimeoutSec:    getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 300),
		ShutdownTimeoutSec: getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 30),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBPath:         getEnv("DB_PATH", filepath.Join(data, "billops.db")),
		DownloadDir:    getEnv("DOWNLOAD_DIR", filepath.Join(data, "downloads")),
		TempDir:        getEnv("TEMP_DIR", filepath.Join(data, "temp_processing")),
		BillImageDir:   getEnv("BILL_IMAGE_DIR", filepath.Join(data, "bill_images")),
		BillPDFDir:     getEnv("BILL_PDF_DIR", filepath.Join(data, "bill_pdfs")),
		RawMailDir:     getEnv("MAIL_RAW_DIR", filepath.Join(data, "raw")),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		UploadFreshMin: getEnvInt("UPLOAD_FRESH_MIN", 60),

		TemplateSource:     getEnv("TEMPLATE_SOURCE", "local"),
		TemplateDir:        getEnv("TEMPLATE_DIR", filepath.Join(cwd, "templates")),
		TemplateBucket:     getEnv("TEMPLATE_BUCKET", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "billops"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "billops.jobs"),

		AuthzMode:       getEnv("AUTHZ_MODE", "shadow"),
		AuthzModelPath:  getEnv("AUTHZ_MODEL_PATH", filepath.Join(cwd, "config", "authz", "model.conf")),
		AuthzPolicyPath: getEnv("AUTHZ_POLICY_PATH", filepath.Join(cwd, "config", "authz", "policy.csv")),
		SessionTTLHours: getEnvInt("SESSION_TTL_HOURS", 24*14),

		CollectorMode:      getEnv("COLLECTOR_MODE", "http"),
		CollectorTimeoutMs: getEnvInt("COLLECTOR_TIMEOUT_MS", 60000),
		CollectorRateRPS:   getEnvInt("COLLECTOR_RATE_LIMIT_RPS", 2),
		CollectorRetries:   getEnvInt("COLLECTOR_RETRIES", 4),
		CollectorWaitSec:   getEnvInt("COLLECTOR_WAIT_SEC", 300),

		GroupwareBaseURL:   getEnv("GROUPWARE_BASE_URL", ""),
		GroupwareTimeoutMs: getEnvInt("GROUPWARE_TIMEOUT_MS", 30000),

		DefaultLicenseCount: getEnvInt("WCONCEPT_LICENSE_COUNT", 40),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		BillMailProvider:    getEnv("BILL_MAIL_PROVIDER", "imap"),
		BillMailLabel:       getEnv("BILL_MAIL_LABEL", "INBOX"),
		BillMailIntervalSec: getEnvInt("BILL_MAIL_INTERVAL_SEC", 300),
		BillMailFetchMax:    getEnvInt("BILL_MAIL_FETCH_MAX", 20),
		BillMailThreshold:   getEnvFloat("BILL_MAIL_THRESHOLD", 0.45),
	}

	return cfg, nil
}

// Validate checks the settings every process needs. Integration-specific
// settings are checked lazily with Require.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "DB_PATH must not be empty")
	}
	for name, dir := range map[string]string{
		"DOWNLOAD_DIR":   c.DownloadDir,
		"TEMP_DIR":       c.TempDir,
		"BILL_IMAGE_DIR": c.BillImageDir,
		"BILL_PDF_DIR":   c.BillPDFDir,
	} {
		if strings.TrimSpace(dir) == "" {
			problems = append(problems, name+" must not be empty")
		}
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}
	switch c.TemplateSource {
	case "local":
		if strings.TrimSpace(c.TemplateDir) == "" {
			problems = append(problems, "TEMPLATE_DIR is required when TEMPLATE_SOURCE=local")
		}
	case "gcs":
		if strings.TrimSpace(c.TemplateBucket) == "" {
			problems = append(problems, "TEMPLATE_BUCKET is required when TEMPLATE_SOURCE=gcs")
		}
	default:
		problems = append(problems, fmt.Sprintf("TEMPLATE_SOURCE must be local or gcs, got %q", c.TemplateSource))
	}
	switch c.AuthzMode {
	case "enforce", "shadow", "disabled":
	default:
		problems = append(problems, fmt.Sprintf("AUTHZ_MODE must be enforce, shadow or disabled, got %q", c.AuthzMode))
	}
	switch c.CollectorMode {
	case "http", "dir":
	default:
		problems = append(problems, fmt.Sprintf("COLLECTOR_MODE must be http or dir, got %q", c.CollectorMode))
	}
	switch c.BillMailProvider {
	case "gmail", "imap":
	default:
		problems = append(problems, fmt.Sprintf("BILL_MAIL_PROVIDER must be gmail or imap, got %q", c.BillMailProvider))
	}
	if c.DefaultLicenseCount < 0 {
		problems = append(problems, "WCONCEPT_LICENSE_COUNT must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("configuration validation failed:\n- " + strings.Join(problems, "\n- "))
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) UploadFreshness() time.Duration {
	return time.Duration(c.UploadFreshMin) * time.Minute
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
