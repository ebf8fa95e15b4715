package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        string
	AdminAPIKey string
	OTel        OTelConfig
	Telegram    TelegramConfig
	GitHub      GitHubConfig
	Gemini      GeminiConfig
	DNS         DNSConfig
	Webhook     WebhookConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type TelegramConfig struct {
	BotToken string
	// LogChannel receives a report after each successful publish.
	// Raw form may be "channel_id" or "channel_id:topic_id".
	LogChannelID int64
	LogTopicID   int
}

type GitHubConfig struct {
	Token  string
	Repo   string // "owner/name"
	Branch string
}

func (c GitHubConfig) Owner() string {
	owner, _, _ := strings.Cut(c.Repo, "/")
	return owner
}

func (c GitHubConfig) Name() string {
	_, name, _ := strings.Cut(c.Repo, "/")
	return name
}

type GeminiConfig struct {
	// APIKeys is the credential rotation pool, in order.
	APIKeys []string
	Model   string
	BaseURL string
}

type DNSConfig struct {
	// Servers are the fallback nameservers, also written into published
	// site configs as dns hints. Entries may carry a ":53" suffix.
	Servers      []string
	TimeoutSecs  int
	LifetimeSecs int
}

type WebhookConfig struct {
	Secret string
}

func (c WebhookConfig) Verified() bool {
	return c.Secret != ""
}

// Load loads configuration from environment variables. In development it
// first loads a .env file if present.
func Load() (Config, error) {
	if getEnv("IPLIST_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	logChannel, logTopic := parseChannelWithTopic(getEnv("LOG_CHANNEL_ID", ""))

	cfg := Config{
		Env:         getEnv("IPLIST_ENV", "development"),
		Port:        getEnv("PORT", "8081"),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "iplist-bot"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Telegram: TelegramConfig{
			BotToken:     getEnv("TG_TOKEN", ""),
			LogChannelID: logChannel,
			LogTopicID:   logTopic,
		},
		GitHub: GitHubConfig{
			Token:  getEnv("GITHUB_TOKEN", ""),
			Repo:   getEnv("GITHUB_REPO", "ckeiituk/iplist"),
			Branch: getEnv("GITHUB_BRANCH", "master"),
		},
		Gemini: GeminiConfig{
			APIKeys: splitList(getEnv("GEMINI_API_KEY", "")),
			Model:   getEnv("GEMINI_MODEL", "gemma-3-27b-it"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		},
		DNS: DNSConfig{
			Servers:      splitListDefault(getEnv("DNS_SERVERS", ""), []string{"77.88.8.88:53", "8.8.8.8:53", "1.1.1.1:53"}),
			TimeoutSecs:  getEnvInt("DNS_TIMEOUT", 5),
			LifetimeSecs: getEnvInt("DNS_LIFETIME", 10),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
	}

	if cfg.Telegram.BotToken == "" {
		return Config{}, fmt.Errorf("TG_TOKEN is required")
	}
	if cfg.GitHub.Token == "" {
		return Config{}, fmt.Errorf("GITHUB_TOKEN is required")
	}
	if !strings.Contains(cfg.GitHub.Repo, "/") {
		return Config{}, fmt.Errorf("GITHUB_REPO must be in owner/name form, got %q", cfg.GitHub.Repo)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// parseChannelWithTopic parses values of the form "channel_id" or
// "channel_id:topic_id". Malformed input yields (0, 0).
func parseChannelWithTopic(raw string) (int64, int) {
	if raw == "" {
		return 0, 0
	}
	if channel, topic, found := strings.Cut(raw, ":"); found {
		channelID, err := strconv.ParseInt(channel, 10, 64)
		if err != nil {
			return 0, 0
		}
		topicID, err := strconv.Atoi(topic)
		if err != nil {
			return 0, 0
		}
		return channelID, topicID
	}
	channelID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, 0
	}
	return channelID, 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitListDefault(raw string, fallback []string) []string {
	if out := splitList(raw); len(out) > 0 {
		return out
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
