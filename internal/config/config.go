package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrMissingAPIKey = errors.New("openai api key is required")

type Config struct {
	OpenAIKey       string
	OpenAIBaseURL   string
	Model           string
	MaxOutputTokens int
	TokenEncoding   string

	ListenAddr  string
	ProfilePath string

	TelegramToken  string
	AdminUserIDs   []int64
	AllowedUserIDs []int64
	SessionTTL     time.Duration

	RelayURL string
	Theme    string

	LogLevel  string
	LogFormat string
	LogFile   string
	Telemetry string
}

// Load reads an optional .env file and the process environment. Variables
// already set in the environment win over the file.
func Load(path string) Config {
	if path != "" {
		if err := loadDotEnv(path); err != nil && !os.IsNotExist(errors.Cause(err)) {
			log.Warn().Err(err).Str("path", path).Msg("could not read .env")
		}
	}

	return Config{
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		Model:           getenvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		MaxOutputTokens: getenvIntDefault("MAX_TOKENS", 500),
		TokenEncoding:   getenvDefault("TOKEN_ENCODING", "cl100k_base"),
		ListenAddr:      getenvDefault("LISTEN_ADDR", ":8080"),
		ProfilePath:     os.Getenv("PROFILE_PATH"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminUserIDs:    parseIDs(os.Getenv("ADMIN_USER_IDS")),
		AllowedUserIDs:  parseIDs(os.Getenv("ALLOWED_TELEGRAM_USER_IDS")),
		SessionTTL:      time.Duration(getenvIntDefault("SESSION_TTL_MINUTES", 120)) * time.Minute,
		RelayURL:        getenvDefault("RELAY_URL", "http://localhost:8080"),
		Theme:           getenvDefault("THEME", "dark"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		LogFormat:       getenvDefault("LOG_FORMAT", "console"),
		LogFile:         os.Getenv("LOG_FILE"),
		Telemetry:       getenvDefault("TELEMETRY", "off"),
	}
}

// ValidateServer checks the settings the relay cannot start without.
func (c Config) ValidateServer() error {
	if strings.TrimSpace(c.OpenAIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.MaxOutputTokens <= 0 {
		return errors.Errorf("MAX_TOKENS must be positive, got %d", c.MaxOutputTokens)
	}
	return nil
}

func (c Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.TelegramToken) != ""
}

func parseIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Warn().Str("value", p).Err(err).Msg("skipping user id")
			continue
		}
		ids = append(ids, v)
	}
	return ids
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid int, using default")
		return def
	}
	return n
}

func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open .env")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
	return errors.Wrap(scanner.Err(), "scan .env")
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	val = strings.Trim(strings.TrimSpace(val), `"'`)
	if key == "" {
		return "", "", false
	}
	return key, val, true
}
