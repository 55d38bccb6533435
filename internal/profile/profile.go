package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where watchtrail stores its own data
	DSN string
	// Driver is the database driver (sqlite)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the url of your watchtrail instance, sent as the
	// referer header on classifier calls.
	InstanceURL string

	// Classifier configuration
	AIBaseURL        string // WATCHTRAIL_AI_BASE_URL (default: https://openrouter.ai/api/v1)
	AIPrimaryModel   string // WATCHTRAIL_AI_PRIMARY_MODEL
	AIFallbackModel  string // WATCHTRAIL_AI_FALLBACK_MODEL
	AIRequestTimeout int    // WATCHTRAIL_AI_TIMEOUT_SECONDS (default: 20)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from WATCHTRAIL_* environment variables.
func (p *Profile) FromEnv() {
	p.AIBaseURL = getEnvOrDefault("WATCHTRAIL_AI_BASE_URL", "https://openrouter.ai/api/v1")
	p.AIPrimaryModel = getEnvOrDefault("WATCHTRAIL_AI_PRIMARY_MODEL", "google/gemini-2.0-flash-001")
	p.AIFallbackModel = getEnvOrDefault("WATCHTRAIL_AI_FALLBACK_MODEL", "meta-llama/llama-3.3-70b-instruct")
	if v := os.Getenv("WATCHTRAIL_AI_TIMEOUT_SECONDS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			p.AIRequestTimeout = n
		}
	}
	if p.AIRequestTimeout == 0 {
		p.AIRequestTimeout = 20
	}
	if v := os.Getenv("WATCHTRAIL_INSTANCE_URL"); v != "" {
		p.InstanceURL = v
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "watchtrail")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/watchtrail"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("watchtrail_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
