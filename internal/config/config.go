package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MQ       MQConfig       `mapstructure:"mq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Business BusinessConfig `mapstructure:"business"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig Driver 取值 mysql / postgres / sqlite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MQConfig Driver 取值 kafka / rabbitmq
type MQConfig struct {
	Driver string `mapstructure:"driver"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Events string `mapstructure:"events"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type BusinessConfig struct {
	MaxTxnAttempts        int    `mapstructure:"max_txn_attempts"`
	InviteCodePrefix      string `mapstructure:"invite_code_prefix"`
	InviteCodeMaxAttempts int    `mapstructure:"invite_code_max_attempts"`
	GoalCompletionBonus   int64  `mapstructure:"goal_completion_bonus"`
	OutboxMaxRetryCount   int    `mapstructure:"outbox_max_retry_count"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

// AuthConfig Tokens: bearer token -> 账户ID，真正的令牌校验由外部身份服务负责
type AuthConfig struct {
	Tokens map[string]string `mapstructure:"tokens"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// Default 返回带默认值的配置，测试和本地运行直接使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadConfig 加载配置文件，环境变量 COUPLE_* 覆盖文件中的同名配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COUPLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "读取配置文件失败: %s", configPath)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.sqlite_path", "couple.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("mq.driver", "kafka")
	v.SetDefault("kafka.topic.events", "couple-events")
	v.SetDefault("rabbitmq.exchange", "couple-events")
	v.SetDefault("business.max_txn_attempts", 5)
	v.SetDefault("business.invite_code_prefix", "MALL")
	v.SetDefault("business.invite_code_max_attempts", 5)
	v.SetDefault("business.goal_completion_bonus", 50)
	v.SetDefault("business.outbox_max_retry_count", 5)
	v.SetDefault("business.idempotency_ttl_seconds", 86400)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
