package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	APIKey           string

	BullAwareAPIKey      string
	BullAwareBaseURL     string
	BullAwareBackoffSecs int

	RefreshIntervalSecs int
	SignalIntervalSecs  int
	RosterLimit         int

	DerivationMode   string
	AnomalyEnabled   bool
	AnomalyThreshold float64

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int

	OpenAIAPIKey      string
	OpenAIModel       string
	AdvisorMaxHistory int

	SSHEnabled     bool
	SSHBind        string
	SSHPort        int
	SSHHostKeyPath string

	MLEnabled         bool
	MLMinTrainSamples int
	MLTrainHourUTC    int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           os.Getenv("API_KEY"),
		BullAwareAPIKey:  os.Getenv("BULLAWARE_API_KEY"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.BullAwareAPIKey == "" {
		log.Println("Warning: BULLAWARE_API_KEY not set")
	}

	cfg.BullAwareBaseURL = strings.TrimSpace(os.Getenv("BULLAWARE_BASE_URL"))

	cfg.BullAwareBackoffSecs = 60
	if v := strings.TrimSpace(os.Getenv("BULLAWARE_BACKOFF_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BullAwareBackoffSecs = n
		}
	}

	cfg.RefreshIntervalSecs = 3600
	if v := os.Getenv("REFRESH_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RefreshIntervalSecs = n
		}
	}

	cfg.SignalIntervalSecs = 900
	if v := os.Getenv("SIGNAL_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SignalIntervalSecs = n
		}
	}

	cfg.RosterLimit = 50
	if v := os.Getenv("ROSTER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			cfg.RosterLimit = n
		}
	}

	cfg.DerivationMode = strings.ToLower(strings.TrimSpace(os.Getenv("DERIVATION_MODE")))
	if cfg.DerivationMode == "" {
		cfg.DerivationMode = "proxy"
	}
	if cfg.DerivationMode != "proxy" && cfg.DerivationMode != "historical" {
		log.Printf("Warning: unsupported DERIVATION_MODE=%q, defaulting to proxy", cfg.DerivationMode)
		cfg.DerivationMode = "proxy"
	}

	cfg.AnomalyEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("ANOMALY_ENABLED")), "true")

	cfg.AnomalyThreshold = 0.7
	if v := strings.TrimSpace(os.Getenv("ANOMALY_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.AnomalyThreshold = n
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 5
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.AdvisorMaxHistory = 20
	if v := os.Getenv("ADVISOR_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AdvisorMaxHistory = n
		}
	}

	cfg.SSHEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("SSH_ENABLED")), "true")

	cfg.SSHBind = strings.TrimSpace(os.Getenv("SSH_BIND"))
	if cfg.SSHBind == "" {
		cfg.SSHBind = "0.0.0.0"
	}

	cfg.SSHPort = 2222
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}

	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/bullaware_monitor_ed25519"
	}

	cfg.MLEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("ML_ENABLED")), "true")

	cfg.MLMinTrainSamples = 200
	if v := strings.TrimSpace(os.Getenv("ML_MIN_TRAIN_SAMPLES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MLMinTrainSamples = n
		}
	}

	cfg.MLTrainHourUTC = 0
	if v := strings.TrimSpace(os.Getenv("ML_TRAIN_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.MLTrainHourUTC = n
		}
	}

	return cfg
}
