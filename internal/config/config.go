// Package config loads process configuration from the environment,
// following the same godotenv.Load + os.Getenv idiom as the teacher's
// cmd/agent/main.go bootstrap.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sonicscribe/sonicscribe/pkg/session"
)

// Config is the fully resolved process configuration: server transport
// options, provider selection, and the fixed audio/VAD constants.
type Config struct {
	Host string
	Port int

	LogLevel string

	UseHTTPS bool
	SSLCert  string
	SSLKey   string

	DebugAudioEnabled bool
	DebugAudioBaseDir string

	ASRProvider string // openai | groq | deepgram | assemblyai
	ASRModel    string
	ASRAPIKey   string

	VADProvider  string // energy | remote
	VADRemoteURL string

	MetricsEnabled bool

	IdleTimeoutSeconds int
	ReadTimeoutSeconds int

	Audio session.AudioConfig
}

// Load reads .env (if present) then the process environment, filling in
// the documented defaults for anything unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is normal in production; fall through to the
		// system environment, matching cmd/agent/main.go's behavior.
	}

	c := &Config{
		Host:     getEnvDefault("HOST", "0.0.0.0"),
		LogLevel: getEnvDefault("LOG_LEVEL", "info"),

		SSLCert: os.Getenv("SSL_CERT"),
		SSLKey:  os.Getenv("SSL_KEY"),

		DebugAudioBaseDir: getEnvDefault("DEBUG_AUDIO_BASE_DIR", "./debug_audio"),

		ASRProvider: getEnvDefault("ASR_PROVIDER", "groq"),
		ASRModel:    os.Getenv("ASR_MODEL"),

		VADProvider:  getEnvDefault("VAD_PROVIDER", "energy"),
		VADRemoteURL: os.Getenv("VAD_REMOTE_URL"),

		Audio: session.DefaultAudioConfig(),
	}

	port, err := getEnvInt("PORT", 8000)
	if err != nil {
		return nil, err
	}
	c.Port = port

	useHTTPS, err := getEnvBool("USE_HTTPS", false)
	if err != nil {
		return nil, err
	}
	c.UseHTTPS = useHTTPS

	debugAudio, err := getEnvBool("DEBUG_AUDIO_ENABLED", false)
	if err != nil {
		return nil, err
	}
	c.DebugAudioEnabled = debugAudio

	metricsEnabled, err := getEnvBool("METRICS_ENABLED", true)
	if err != nil {
		return nil, err
	}
	c.MetricsEnabled = metricsEnabled

	idleTimeout, err := getEnvInt("IDLE_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	c.IdleTimeoutSeconds = idleTimeout

	readTimeout, err := getEnvInt("READ_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	c.ReadTimeoutSeconds = readTimeout

	c.ASRAPIKey = apiKeyForProvider(c.ASRProvider)

	return c, nil
}

func apiKeyForProvider(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "deepgram":
		return os.Getenv("DEEPGRAM_API_KEY")
	case "assemblyai":
		return os.Getenv("ASSEMBLYAI_API_KEY")
	case "groq":
		fallthrough
	default:
		return os.Getenv("GROQ_API_KEY")
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
