package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MQ         MQConfig         `mapstructure:"mq"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type MQConfig struct {
	Type           string        `mapstructure:"type"` // "redis" or "kafka"
	RelayInterval  time.Duration `mapstructure:"relay_interval"`
	RelayBatchSize int           `mapstructure:"relay_batch_size"`
	Group          string        `mapstructure:"group"` // 消费者组 (invest-cli events)
}

type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

type JobsConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	ProfitSpec string        `mapstructure:"profit_spec"` // cron 表达式
	RankSpec   string        `mapstructure:"rank_spec"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	Profit     ProfitConfig  `mapstructure:"profit"`
}

type ProfitConfig struct {
	// CompleteAtTarget 为 true 时，累计收益达到本金 TargetMultiplier 倍后停止计息并置为 COMPLETED
	// 默认关闭 (产品尚未确认)
	CompleteAtTarget bool    `mapstructure:"complete_at_target"`
	TargetMultiplier float64 `mapstructure:"target_multiplier"`
}

type WithdrawalConfig struct {
	MinAmount       float64 `mapstructure:"min_amount"`
	MinWalletLength int     `mapstructure:"min_wallet_length"`
}

type CacheConfig struct {
	PlanTTL time.Duration `mapstructure:"plan_ttl"`
}

// MinAmountDecimal 最小提现金额
func (w WithdrawalConfig) MinAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(w.MinAmount)
}

var Global Config

func Init() {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "invest_user")
	viper.SetDefault("db.password", "invest_password")
	viper.SetDefault("db.name", "invest_db")
	viper.SetDefault("db.timezone", "UTC")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("mq.type", "redis")
	viper.SetDefault("mq.relay_interval", 500*time.Millisecond)
	viper.SetDefault("mq.relay_batch_size", 50)
	viper.SetDefault("mq.group", "invest-core")

	viper.SetDefault("worker.enabled", true)
	viper.SetDefault("worker.concurrency", 5)

	viper.SetDefault("jobs.enabled", true)
	viper.SetDefault("jobs.profit_spec", "@hourly")
	viper.SetDefault("jobs.rank_spec", "0 0 * * *") // 每天 UTC 零点
	viper.SetDefault("jobs.lock_ttl", 30*time.Minute)
	viper.SetDefault("jobs.profit.complete_at_target", false)
	viper.SetDefault("jobs.profit.target_multiplier", 2.0)

	viper.SetDefault("withdrawal.min_amount", 5.0)
	viper.SetDefault("withdrawal.min_wallet_length", 20)

	viper.SetDefault("cache.plan_ttl", 5*time.Minute)
}

// PostgresDSN 根据配置构造 DSN
func (c DBConfig) PostgresDSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=disable TimeZone=" + c.TimeZone
}

// MigrateURL golang-migrate 使用的连接串
func (c DBConfig) MigrateURL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Name + "?sslmode=disable"
}
