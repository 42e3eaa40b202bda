package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server" json:"server"`
	Database     DatabaseConfig     `mapstructure:"database" json:"database"`
	Log          LogConfig          `mapstructure:"log" json:"log"`
	Auth         AuthConfig         `mapstructure:"auth" json:"auth"`
	OpenAI       OpenAIConfig       `mapstructure:"openai" json:"openai"`
	STT          STTConfig          `mapstructure:"stt" json:"stt"`
	TTS          TTSConfig          `mapstructure:"tts" json:"tts"`
	Memory       MemoryConfig       `mapstructure:"memory" json:"memory"`
	Conversation ConversationConfig `mapstructure:"conversation" json:"conversation"`
	Audio        AudioConfig        `mapstructure:"audio" json:"audio"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" (lib/pq) or "pgx" (pgx stdlib).
	Driver   string `mapstructure:"driver" json:"driver"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// AuthConfig holds the admin token secret and the provider keys seeded at startup.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret" json:"-"`
	EncryptionKey    string `mapstructure:"encryption_key" json:"-"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key" json:"-"`
	HuggingFaceToken string `mapstructure:"huggingface_token" json:"-"`
	ElevenLabsAPIKey string `mapstructure:"elevenlabs_api_key" json:"-"`
}

type OpenAIConfig struct {
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Model       string        `mapstructure:"model" json:"model"`
	Temperature float32       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

type STTModel struct {
	ID          string `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
}

type STTConfig struct {
	APIURL       string        `mapstructure:"api_url" json:"api_url"`
	Models       []STTModel    `mapstructure:"models" json:"models"`
	DefaultModel string        `mapstructure:"default_model" json:"default_model"`
	Retries      int           `mapstructure:"retries" json:"retries"`
	BackoffBase  time.Duration `mapstructure:"backoff_base" json:"backoff_base"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
}

type VoiceSettings struct {
	Stability       float64 `mapstructure:"stability" json:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity_boost" json:"similarity_boost"`
	Style           float64 `mapstructure:"style" json:"style"`
	UseSpeakerBoost bool    `mapstructure:"use_speaker_boost" json:"use_speaker_boost"`
}

type TTSConfig struct {
	APIURL         string        `mapstructure:"api_url" json:"api_url"`
	VoicesURL      string        `mapstructure:"voices_url" json:"voices_url"`
	DefaultVoiceID string        `mapstructure:"default_voice_id" json:"default_voice_id"`
	ModelID        string        `mapstructure:"model_id" json:"model_id"`
	VoiceSettings  VoiceSettings `mapstructure:"voice_settings" json:"voice_settings"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
}

// MemoryConfig maps to MEMORY_ENABLED, MEMORY_MAX_MESSAGES and MEMORY_SUMMARIZE_THRESHOLD.
type MemoryConfig struct {
	Enabled            bool `mapstructure:"enabled" json:"enabled"`
	MaxMessages        int  `mapstructure:"max_messages" json:"max_messages"`
	SummarizeThreshold int  `mapstructure:"summarize_threshold" json:"summarize_threshold"`
}

type ConversationConfig struct {
	DefaultSystemPrompt string `mapstructure:"default_system_prompt" json:"default_system_prompt"`
}

type AudioConfig struct {
	AllowedContentTypes []string      `mapstructure:"allowed_content_types" json:"allowed_content_types"`
	MaxUploadBytes      int           `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`
	TTL                 time.Duration `mapstructure:"ttl" json:"ttl"`
	PurgeSchedule       string        `mapstructure:"purge_schedule" json:"purge_schedule"`
}

const DefaultSystemPrompt = `You are a teacher having casual conversation with kids below the age of 12.
Do not try to correct their typos just keep the conversation going with them.
Use your memory of previous conversations to make the interaction more natural.`

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "voxmind")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "voxmind")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.encryption_key", "")
	v.SetDefault("auth.openai_api_key", "")
	v.SetDefault("auth.huggingface_token", "")
	v.SetDefault("auth.elevenlabs_api_key", "")

	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.timeout", 30*time.Second)

	v.SetDefault("stt.api_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("stt.models", []map[string]string{
		{"id": "StefanStefan/Wav2Vec-100-CSR", "name": "Wav2Vec-100-CSR (Default)", "description": "Standard model with good accuracy"},
		{"id": "StefanStefan/Wav2Vec-100-CSR-Quantized", "name": "Wav2Vec-100-CSR-Quantized", "description": "Quantized model for faster inference with slight accuracy trade-off"},
		{"id": "StefanStefan/Wav2Vec-100-CSR-KD", "name": "Wav2Vec-100-CSR-KD", "description": "Knowledge distilled model with improved efficiency"},
		{"id": "StefanStefan/Wav2Vec-100-CSR-Distilled-Quantized", "name": "Wav2Vec-100-CSR-Distilled-Quantized", "description": "Distilled and quantized model for maximum efficiency"},
	})
	v.SetDefault("stt.default_model", "StefanStefan/Wav2Vec-100-CSR")
	v.SetDefault("stt.retries", 3)
	v.SetDefault("stt.backoff_base", 2*time.Second)
	v.SetDefault("stt.timeout", 30*time.Second)

	v.SetDefault("tts.api_url", "https://api.elevenlabs.io/v1/text-to-speech")
	v.SetDefault("tts.voices_url", "https://api.elevenlabs.io/v1/voices")
	v.SetDefault("tts.default_voice_id", "cgSgspJ2msm6clMCkdW9")
	v.SetDefault("tts.model_id", "eleven_turbo_v2")
	v.SetDefault("tts.voice_settings.stability", 0.5)
	v.SetDefault("tts.voice_settings.similarity_boost", 0.75)
	v.SetDefault("tts.voice_settings.style", 0.0)
	v.SetDefault("tts.voice_settings.use_speaker_boost", true)
	v.SetDefault("tts.timeout", 30*time.Second)

	v.SetDefault("memory.enabled", true)
	v.SetDefault("memory.max_messages", 15)
	v.SetDefault("memory.summarize_threshold", 5)

	v.SetDefault("conversation.default_system_prompt", DefaultSystemPrompt)

	v.SetDefault("audio.allowed_content_types", []string{"audio/wav", "audio/mpeg", "audio/x-wav", "audio/webm"})
	v.SetDefault("audio.max_upload_bytes", 10*1024*1024)
	v.SetDefault("audio.ttl", 24*time.Hour)
	v.SetDefault("audio.purge_schedule", "@hourly")
}

// Load reads the optional config file and applies environment overrides.
// Every key can be overridden by its upper-cased, underscore-joined name,
// e.g. memory.max_messages is MEMORY_MAX_MESSAGES.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".voxmind"))
	}

	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Legacy postgres variables
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// Provider keys under their usual names
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Auth.OpenAIAPIKey == "" {
		cfg.Auth.OpenAIAPIKey = key
	}
	if key := os.Getenv("HUGGINGFACE_TOKEN"); key != "" && cfg.Auth.HuggingFaceToken == "" {
		cfg.Auth.HuggingFaceToken = key
	}
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" && cfg.Auth.ElevenLabsAPIKey == "" {
		cfg.Auth.ElevenLabsAPIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the memory optimizer cannot work with.
func (c *Config) Validate() error {
	if c.Memory.MaxMessages < 1 {
		return fmt.Errorf("memory.max_messages must be at least 1, got %d", c.Memory.MaxMessages)
	}
	if c.Memory.SummarizeThreshold < 1 {
		return fmt.Errorf("memory.summarize_threshold must be at least 1, got %d", c.Memory.SummarizeThreshold)
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// STTModelIDs lists the configured speech-to-text model identifiers.
func (s STTConfig) STTModelIDs() []string {
	ids := make([]string, len(s.Models))
	for i, m := range s.Models {
		ids[i] = m.ID
	}
	return ids
}

// HasModel reports whether id is a configured speech-to-text model.
func (s STTConfig) HasModel(id string) bool {
	for _, m := range s.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}
