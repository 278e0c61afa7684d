package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment  string
	HTTPAddr     string
	DataDir      string
	DBPath       string
	ConsoleFile  string
	Prefix       string
	BoardCycleAt int
	DefaultLang  string
	AutosaveCron string
	Autosave     bool

	CaseAPIURL        string
	CaseAPIToken      string
	CaseAPITimeoutSec int

	DiscordToken string
	DiscordAPI   string
	DiscordWSURL string

	// ConsoleIdentity is the hostname the local console REPL runs as.
	ConsoleIdentity string

	AdminAPIURL         string
	AdminHTTPTimeoutSec int
	DashboardRefreshSec int
}

func FromEnv() Config {
	dataDir := stringOrDefault("RESCUE_CONSOLE_DATA_DIR", "/data")
	dbPath := stringOrDefault("RESCUE_CONSOLE_DB_PATH", filepath.Join(dataDir, "rescue-console", "console.sqlite"))

	return Config{
		Environment:  stringOrDefault("RESCUE_CONSOLE_ENV", "development"),
		HTTPAddr:     stringOrDefault("RESCUE_CONSOLE_HTTP_ADDR", ":8080"),
		DataDir:      dataDir,
		DBPath:       dbPath,
		ConsoleFile:  strings.TrimSpace(os.Getenv("RESCUE_CONSOLE_CONFIG_FILE")),
		Prefix:       stringOrDefault("RESCUE_CONSOLE_COMMAND_PREFIX", "!"),
		BoardCycleAt: intOrDefault("RESCUE_CONSOLE_BOARD_CYCLE_AT", 15),
		DefaultLang:  strings.ToLower(stringOrDefault("RESCUE_CONSOLE_DEFAULT_LANG", "en")),
		AutosaveCron: stringOrDefault("RESCUE_CONSOLE_AUTOSAVE_CRON", "@every 1m"),
		Autosave:     boolOrDefault("RESCUE_CONSOLE_AUTOSAVE_ENABLED", true),

		CaseAPIURL:        strings.TrimSpace(os.Getenv("RESCUE_CONSOLE_CASE_API_URL")),
		CaseAPIToken:      strings.TrimSpace(os.Getenv("RESCUE_CONSOLE_CASE_API_TOKEN")),
		CaseAPITimeoutSec: intOrDefault("RESCUE_CONSOLE_CASE_API_TIMEOUT_SECONDS", 10),

		DiscordToken: strings.TrimSpace(os.Getenv("RESCUE_CONSOLE_DISCORD_TOKEN")),
		DiscordAPI:   stringOrDefault("RESCUE_CONSOLE_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL: stringOrDefault("RESCUE_CONSOLE_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),

		ConsoleIdentity: stringOrDefault("RESCUE_CONSOLE_CONSOLE_IDENTITY", "console.local"),

		AdminAPIURL:         stringOrDefault("RESCUE_CONSOLE_ADMIN_API_URL", "http://localhost:8080"),
		AdminHTTPTimeoutSec: intOrDefault("RESCUE_CONSOLE_ADMIN_HTTP_TIMEOUT_SECONDS", 10),
		DashboardRefreshSec: intOrDefault("RESCUE_CONSOLE_DASHBOARD_REFRESH_SECONDS", 5),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
