package config

import (
	"log"
	"os"

	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config main configuration structure
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       logger.LogConfig `mapstructure:"log"`
	Providers ProvidersConfig  `mapstructure:"providers"`
	Voice     VoiceConfig      `mapstructure:"voice"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Addr string `env:"ADDR"`
	Mode string `env:"MODE"`
}

// ProvidersConfig upstream provider credentials
type ProvidersConfig struct {
	ZhipuAPIKey  string `env:"ZHIPU_API_KEY"`
	ZhipuBaseURL string `env:"ZHIPU_BASE_URL"`
}

// VoiceConfig per-session conversation defaults
type VoiceConfig struct {
	ASRProvider string `env:"ASR_PROVIDER"`
	ASRModel    string `env:"ASR_MODEL"`
	LLMProvider string `env:"LLM_PROVIDER"`
	LLMModel    string `env:"LLM_MODEL"`
	TTSProvider string `env:"TTS_PROVIDER"`
	TTSModel    string `env:"TTS_MODEL"`
	TTSVoice    string `env:"TTS_VOICE"`
	CharacterID string `env:"CHARACTER_ID"`
	MaxTokens   int    `env:"MAX_TOKENS"`
}

// GlobalConfig global configuration instance
var GlobalConfig *Config

// Load 从环境变量加载配置（.env 文件存在时先加载）
func Load() error {
	if err := godotenv.Load(); err != nil {
		// .env 缺失不影响启动
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	GlobalConfig = &Config{
		Server: ServerConfig{
			Addr: getStringOrDefault("ADDR", ":7072"),
			Mode: getStringOrDefault("MODE", "development"),
		},
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/app.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},
		Providers: ProvidersConfig{
			ZhipuAPIKey:  getStringOrDefault("ZHIPU_API_KEY", ""),
			ZhipuBaseURL: getStringOrDefault("ZHIPU_BASE_URL", "https://open.bigmodel.cn/api/paas/v4"),
		},
		Voice: VoiceConfig{
			ASRProvider: getStringOrDefault("ASR_PROVIDER", "zhipu"),
			ASRModel:    getStringOrDefault("ASR_MODEL", "chirp-beta"),
			LLMProvider: getStringOrDefault("LLM_PROVIDER", "zhipu"),
			LLMModel:    getStringOrDefault("LLM_MODEL", "glm-4-flash"),
			TTSProvider: getStringOrDefault("TTS_PROVIDER", "zhipu"),
			TTSModel:    getStringOrDefault("TTS_MODEL", "glm-tts"),
			TTSVoice:    getStringOrDefault("TTS_VOICE", "female"),
			CharacterID: getStringOrDefault("CHARACTER_ID", "default"),
			MaxTokens:   getIntOrDefault("MAX_TOKENS", 256),
		},
	}
	return nil
}

func getStringOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		return cast.ToInt(v)
	}
	return def
}

func getBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return cast.ToBool(v)
	}
	return def
}
