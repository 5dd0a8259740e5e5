package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the taskbot service.
type Config struct {
	LogLevel    string
	HTTPPort    string
	MetricsAddr string

	KafkaBrokers string
	RedisAddr    string
	PostgresDSN  string
	OTelEndpoint string

	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string

	PassThreshold     int
	MaxReviewRetries  int
	MatchTimeout      time.Duration
	EvalTimeout       time.Duration
	DedupWindow       time.Duration
	MessageCacheSize  int
	CandidateCacheTTL time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:    v.GetString("log_level"),
		HTTPPort:    v.GetString("http_port"),
		MetricsAddr: v.GetString("metrics_addr"),

		KafkaBrokers: v.GetString("kafka_brokers"),
		RedisAddr:    v.GetString("redis_addr"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		OTelEndpoint: v.GetString("otel_endpoint"),

		LLMEndpoint: v.GetString("llm_endpoint"),
		LLMAPIKey:   v.GetString("llm_api_key"),
		LLMModel:    v.GetString("llm_model"),

		PassThreshold:     v.GetInt("pass_threshold"),
		MaxReviewRetries:  v.GetInt("max_review_retries"),
		MatchTimeout:      v.GetDuration("match_timeout"),
		EvalTimeout:       v.GetDuration("eval_timeout"),
		DedupWindow:       v.GetDuration("dedup_window"),
		MessageCacheSize:  v.GetInt("message_cache_size"),
		CandidateCacheTTL: v.GetDuration("candidate_cache_ttl"),
	}
}
