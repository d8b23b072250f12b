package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	config     *Config
	configOnce sync.Once
)

// Config stores all configuration of the application
type Config struct {
	// Environment type
	EnvType string

	// Database
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "alter"(修改), "drop"(删除重建)

	// Server
	ServerPort string

	// Redis
	RedisHost string
	RedisPort string
	RedisDB   int

	// MQTT (kiosk播放器通道)
	MQTTBrokerURL  string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTSSLEnabled bool
	MQTTCACertPath string

	// 显示引擎参数
	GroupWindowMs    int // 两次呼叫在此窗口内视为同组显示
	DualKeepMs       int // 双人显示的保持时间
	IdleSeconds      int // 无呼叫后进入待机的秒数 (60-300)
	FeedTickSeconds  int // 待机/分组状态重算的时钟周期
	HistoryLimit     int // 订阅的最近呼叫条数
	RecentLimit      int // 底部滚动条显示的条数
	AnnounceQueueCap int // 播报队列上限，超出丢弃最旧

	// 播报默认值（运行时以设置文档为准）
	DuckVolume       int
	RestoreVolume    int
	LeadMs           int
	SettleMs         int
	AnnounceTemplate string
	AnnounceMode     string

	// 轮播
	FadeMs           int
	ImageSec         int
	VideoSec         int
	MaxVideoSec      int
	PreloadTimeoutMs int

	// 背景视频播放器
	StallSeconds int // 播放位置无变化超过该秒数则强制重载
	VideoRetryMs int // 播放错误后跳到下一条的延迟
}

// LoadConfig loads config from environment variables based on ENV_TYPE
func LoadConfig() *Config {
	// Get environment type (default to LOCAL if not set)
	envType := getEnv("ENV_TYPE", "LOCAL")
	prefix := ""

	// Set prefix based on environment type
	if strings.ToUpper(envType) == "LOCAL" {
		prefix = "LOCAL_"
	} else if strings.ToUpper(envType) == "SERVER" {
		prefix = "SERVER_"
	} else {
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	fmt.Printf("Loading configuration for environment: %s\n", envType)

	return &Config{
		// Environment type
		EnvType: envType,

		// Database config - use environment-specific variables if available
		DBHost:          getEnv(prefix+"DB_HOST", getEnv("DB_HOST", "localhost")),
		DBUser:          getEnv(prefix+"DB_USER", getEnv("DB_USER", "root")),
		DBPassword:      getEnv(prefix+"DB_PASSWORD", getEnv("DB_PASSWORD", "")),
		DBName:          getEnv(prefix+"DB_NAME", getEnv("DB_NAME", "webtv_db")),
		DBPort:          getEnv(prefix+"DB_PORT", getEnv("DB_PORT", "3306")),
		DBMigrationMode: getEnv(prefix+"DB_MIGRATION_MODE", getEnv("DB_MIGRATION_MODE", "auto")),

		// Server config
		ServerPort: getEnv(prefix+"SERVER_PORT", getEnv("SERVER_PORT", "8080")),

		// Redis config
		RedisHost: getEnv(prefix+"REDIS_HOST", getEnv("REDIS_HOST", "localhost")),
		RedisPort: getEnv(prefix+"REDIS_PORT", getEnv("REDIS_PORT", "6379")),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),

		// MQTT config
		MQTTBrokerURL:  getEnv(prefix+"MQTT_BROKER_URL", getEnv("MQTT_BROKER_URL", "tcp://localhost:1883")),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "webtv-display"),
		MQTTUsername:   getEnv("MQTT_USERNAME", ""),
		MQTTPassword:   getEnv("MQTT_PASSWORD", ""),
		MQTTSSLEnabled: getEnvAsBool("MQTT_SSL_ENABLED", false),
		MQTTCACertPath: getEnv("MQTT_CA_CERT_PATH", ""),

		// 显示引擎参数
		GroupWindowMs:    getEnvAsInt("GROUP_WINDOW_MS", 30000),
		DualKeepMs:       getEnvAsInt("DUAL_KEEP_MS", 60000),
		IdleSeconds:      ClampInt(getEnvAsInt("IDLE_SECONDS", 120), 60, 300),
		FeedTickSeconds:  getEnvAsInt("FEED_TICK_SECONDS", 5),
		HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 6),
		RecentLimit:      getEnvAsInt("RECENT_LIMIT", 2),
		AnnounceQueueCap: getEnvAsInt("ANNOUNCE_QUEUE_CAP", 20),

		// 播报默认值
		DuckVolume:       getEnvAsInt("DUCK_VOLUME", 20),
		RestoreVolume:    getEnvAsInt("RESTORE_VOLUME", 60),
		LeadMs:           getEnvAsInt("LEAD_MS", 450),
		SettleMs:         getEnvAsInt("SETTLE_MS", 120),
		AnnounceTemplate: getEnv("ANNOUNCE_TEMPLATE", "Atenção: paciente {{nome}}. Dirija-se à sala {{salaTxt}}."),
		AnnounceMode:     getEnv("ANNOUNCE_MODE", "auto"),

		// 轮播
		FadeMs:           getEnvAsInt("FADE_MS", 450),
		ImageSec:         getEnvAsInt("IMAGE_SEC", 7),
		VideoSec:         getEnvAsInt("VIDEO_SEC", 12),
		MaxVideoSec:      getEnvAsInt("MAX_VIDEO_SEC", 30),
		PreloadTimeoutMs: getEnvAsInt("PRELOAD_TIMEOUT_MS", 1200),

		// 背景视频播放器
		StallSeconds: getEnvAsInt("STALL_SECONDS", 12),
		VideoRetryMs: getEnvAsInt("VIDEO_RETRY_MS", 3000),
	}
}

// GetConfig returns the application configuration as a singleton
func GetConfig() *Config {
	configOnce.Do(func() {
		config = LoadConfig()
	})
	return config
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local&allowNativePasswords=true&multiStatements=true"
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// ClampInt 将整数限制在[min, max]区间内
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
