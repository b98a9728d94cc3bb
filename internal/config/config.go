package config

import (
	"os"
	"strconv"

	"answerafter-admin/pkg/database"
)

// Config answerafter-admin（平台管理 HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database database.Config
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	VoiceAI   VoiceAIConfig   `yaml:"voice_ai"`
	Telephony TelephonyConfig `yaml:"telephony"`
	Auth      AuthConfig      `yaml:"auth"`
}

// VoiceAIConfig 语音AI平台（agent托管）配置
// APIKey 为平台级密钥；为空时 teardown 跳过 agent 清理（告警降级，不视为错误）
type VoiceAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// TelephonyConfig 电话运营商平台配置
// AccountSID/AuthToken 为平台主账号凭证；租户行携带子账号时优先使用子账号
// NeutralWebhookURL 为号码webhook重置后的占位端点（不再路由到应用逻辑）
type TelephonyConfig struct {
	BaseURL           string `yaml:"base_url"`
	AccountSID        string `yaml:"account_sid"`
	AuthToken         string `yaml:"auth_token"`
	NeutralWebhookURL string `yaml:"neutral_webhook_url"`
}

// AuthConfig 认证服务（用户身份）管理端配置
type AuthConfig struct {
	BaseURL    string `yaml:"base_url"`
	ServiceKey string `yaml:"service_key"`
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "answerafter")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 语音AI平台配置（密钥缺省 => teardown 的 agent 清理步骤降级为告警）
	cfg.VoiceAI.BaseURL = getEnv("VOICEAI_BASE_URL", "https://api.vapi.ai")
	cfg.VoiceAI.APIKey = getEnv("VOICEAI_API_KEY", "")

	// 电话运营商配置
	cfg.Telephony.BaseURL = getEnv("TELEPHONY_BASE_URL", "https://api.twilio.com")
	cfg.Telephony.AccountSID = getEnv("TELEPHONY_ACCOUNT_SID", "")
	cfg.Telephony.AuthToken = getEnv("TELEPHONY_AUTH_TOKEN", "")
	cfg.Telephony.NeutralWebhookURL = getEnv("TELEPHONY_NEUTRAL_WEBHOOK_URL", "https://demo.twilio.com/welcome/voice/")

	// 认证服务管理端配置
	cfg.Auth.BaseURL = getEnv("AUTH_BASE_URL", "")
	cfg.Auth.ServiceKey = getEnv("AUTH_SERVICE_KEY", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
