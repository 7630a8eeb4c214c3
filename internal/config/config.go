package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/agenterr"
)

// Config holds the configuration for the interview agent.
type Config struct {
	// LiveKit configuration
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	RoomName         string
	AgentIdentity    string

	// Azure OpenAI Realtime configuration
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIKey     string
	AzureAPIVersion string

	// Session defaults
	DefaultVoice       string
	ParticipantTimeout time.Duration
	ReadyTimeout       time.Duration
	LogLevel           string
}

// Load loads configuration from environment variables and flags.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := fromEnv()

	// Override with flags
	flag.StringVar(&cfg.LiveKitURL, "url", cfg.LiveKitURL, "LiveKit server URL")
	flag.StringVar(&cfg.LiveKitAPIKey, "api-key", cfg.LiveKitAPIKey, "LiveKit API key")
	flag.StringVar(&cfg.LiveKitAPISecret, "api-secret", cfg.LiveKitAPISecret, "LiveKit API secret")
	flag.StringVar(&cfg.RoomName, "room", cfg.RoomName, "LiveKit room to join")
	flag.StringVar(&cfg.AgentIdentity, "identity", cfg.AgentIdentity, "Participant identity for the agent")
	flag.StringVar(&cfg.AzureEndpoint, "azure-endpoint", cfg.AzureEndpoint, "Azure OpenAI endpoint")
	flag.StringVar(&cfg.AzureDeployment, "azure-deployment", cfg.AzureDeployment, "Azure OpenAI realtime deployment")
	flag.StringVar(&cfg.DefaultVoice, "voice", cfg.DefaultVoice, "Default voice when participant metadata has none")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.DurationVar(&cfg.ParticipantTimeout, "participant-timeout", cfg.ParticipantTimeout, "Maximum wait for the interviewee to join")
	flag.DurationVar(&cfg.ReadyTimeout, "ready-timeout", cfg.ReadyTimeout, "Maximum wait for the realtime session acknowledgment")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fromEnv builds a Config from environment variables with defaults applied.
func fromEnv() *Config {
	cfg := &Config{
		AgentIdentity:      "interview-agent",
		AzureAPIVersion:    "2024-10-01-preview",
		DefaultVoice:       "alloy",
		ParticipantTimeout: 60 * time.Second,
		ReadyTimeout:       15 * time.Second,
		LogLevel:           "info",
	}

	cfg.LiveKitURL = getEnv("LIVEKIT_URL", "")
	cfg.LiveKitAPIKey = getEnv("LIVEKIT_API_KEY", "")
	cfg.LiveKitAPISecret = getEnv("LIVEKIT_API_SECRET", "")
	cfg.RoomName = getEnv("LIVEKIT_ROOM", "")
	cfg.AgentIdentity = getEnv("AGENT_IDENTITY", cfg.AgentIdentity)

	cfg.AzureEndpoint = getEnv("AZURE_ENDPOINT", "")
	cfg.AzureDeployment = getEnv("AZURE_OPENAI_DEPLOYMENT", "")
	cfg.AzureAPIKey = getEnv("AZURE_API_KEY", "")
	cfg.AzureAPIVersion = getEnv("AZURE_API_VERSION", cfg.AzureAPIVersion)

	cfg.DefaultVoice = getEnv("AGENT_VOICE", cfg.DefaultVoice)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if s := getEnv("PARTICIPANT_TIMEOUT", ""); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.ParticipantTimeout = d
		}
	}
	if s := getEnv("AZURE_READY_TIMEOUT", ""); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.ReadyTimeout = d
		}
	}

	return cfg
}

// Validate checks that all required fields are present. A missing value is a
// non-recoverable startup error; nothing is dialed before this passes.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"LIVEKIT_URL", c.LiveKitURL},
		{"LIVEKIT_API_KEY", c.LiveKitAPIKey},
		{"LIVEKIT_API_SECRET", c.LiveKitAPISecret},
		{"LIVEKIT_ROOM", c.RoomName},
		{"AZURE_ENDPOINT", c.AzureEndpoint},
		{"AZURE_OPENAI_DEPLOYMENT", c.AzureDeployment},
		{"AZURE_API_KEY", c.AzureAPIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return agenterr.Wrap(fmt.Errorf("%s is required", r.name), agenterr.CodeConfigMissing)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
