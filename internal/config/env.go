package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv layers environment variables onto a config. A .env file at the
// given path is loaded first when it exists; real environment variables win
// over file entries, matching godotenv semantics.
func LoadEnv(cfg Config, dotenvPath string) Config {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			_ = godotenv.Load(dotenvPath)
		}
	}

	if v := os.Getenv("WINMAINT_MODE"); v != "" {
		cfg.Mode = ModeFromString(v)
	}
	if v := os.Getenv("WINMAINT_SSH_HOST"); v != "" {
		cfg.Target = TargetSSH
		cfg.SSHHost = v
	}
	if v := os.Getenv("WINMAINT_SSH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.SSHPort = port
		}
	}
	if v := os.Getenv("WINMAINT_SSH_USER"); v != "" {
		cfg.SSHUser = v
	}
	if v := os.Getenv("WINMAINT_SSH_USER_FALLBACK"); v != "" {
		cfg.SSHUserFallback = v
	}
	if v := os.Getenv("WINMAINT_SSH_KEY_PATH"); v != "" {
		cfg.SSHKeyPath = v
	}
	if v := os.Getenv("WINMAINT_SSH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SSHTimeout = d
		}
	}
	if v := os.Getenv("WINMAINT_REPORT_DIR"); v != "" {
		cfg.ReportDir = v
	}
	if v := os.Getenv("WINMAINT_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("WINMAINT_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("WINMAINT_POLICY"); v != "" {
		cfg.PolicyPath = v
	}
	if v := os.Getenv("WINMAINT_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogVerbose = b
		}
	}
	return cfg
}
