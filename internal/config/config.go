package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Consul   ConsulConfig
	Auth     AuthConfig
	Cache    CacheConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ServiceName     string
	ServiceAddress  string
	ServiceID       string
	GinMode         string
	LogDir          string
	AllowOrigins    []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type MongoDBConfig struct {
	URI               string
	QuizDatabase      string
	UserDatabase      string
	PoolSize          uint64
	MinPoolSize       uint64
	MaxConnecting     uint64
	Timeout           time.Duration
	MaxConnIdleTime   time.Duration
	EnableCompression bool
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URI string
}

type ConsulConfig struct {
	ConsulAddress string
	Enabled       bool
}

type AuthConfig struct {
	JWTSecret  string
	BcryptCost int
}

type CacheConfig struct {
	PopularTTL time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system env")
	}

	serviceName := getEnv("QUIZ_SERVICE_NAME", "quiz-service")

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ServiceName:     serviceName,
			ServiceAddress:  getEnv("QUIZ_SERVICE_ADDRESS", "quiz-service"),
			ServiceID:       serviceName + "-" + getEnv("HOSTNAME", "quiz"),
			GinMode:         getEnv("GIN_MODE", "release"),
			LogDir:          getEnv("LOG_DIR", "/app/logs"),
			AllowOrigins:    getEnvAsSlice("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		MongoDB: MongoDBConfig{
			URI:               getEnv("MONGO_URI", "mongodb://localhost:27017"),
			QuizDatabase:      getEnv("MONGO_QUIZZES_DBNAME", "quizzes"),
			UserDatabase:      getEnv("MONGO_USERS_DBNAME", "users"),
			PoolSize:          getEnvAsUint64("MONGODB_POOL_SIZE", 100),
			MinPoolSize:       getEnvAsUint64("MONGODB_MIN_POOL_SIZE", 5),
			MaxConnecting:     getEnvAsUint64("MONGODB_MAX_CONNECTING", 10),
			Timeout:           getEnvAsDuration("MONGODB_TIMEOUT", 10*time.Second),
			MaxConnIdleTime:   getEnvAsDuration("MONGODB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			EnableCompression: getEnvAsBool("MONGODB_COMPRESSION", false),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URI: getEnv("RABBITMQ_URI", ""),
		},
		Consul: ConsulConfig{
			ConsulAddress: getEnv("CONSUL_ADDRESS", "consul-server:8500"),
			Enabled:       getEnvAsBool("CONSUL_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			BcryptCost: getEnvAsInt("BCRYPT_COST", 10),
		},
		Cache: CacheConfig{
			PopularTTL: getEnvAsDuration("POPULAR_CACHE_TTL", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Warnf("error retrieve int env var %s: %s", key, err)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value, exists := os.LookupEnv(key); exists {
		uintVal, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			log.Warnf("error retrieve uint64 env var %s: %s", key, err)
			return defaultValue
		}
		return uintVal
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		duration, err := time.ParseDuration(value)
		if err != nil {
			log.Warnf("error retrieve duration env var %s: %s", key, err)
			return defaultValue
		}
		return duration
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			log.Warnf("error retrieve bool env var %s: %s", key, err)
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated value, dropping empty items.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
