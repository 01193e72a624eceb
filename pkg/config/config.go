package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	Environment     string
	FirebaseProject string
	StorageBucket   string

	ServiceAccountJSON string
	ServiceAccountPath string

	// Single pre-shared key for message text. Rotation and distribution are
	// handled outside this service.
	MessageEncryptionKey string

	GiphyAPIKey        string
	GiphyRatePerMinute int

	RedisURL      string
	MediaCacheTTL time.Duration

	TypingQuietPeriod   time.Duration
	MediaSearchDebounce time.Duration
	MaxImageBytes       int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),

		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),

		MessageEncryptionKey: getEnv("MESSAGE_ENCRYPTION_KEY", "your-secret-key"),

		GiphyAPIKey:        getEnv("GIPHY_API_KEY", ""),
		GiphyRatePerMinute: int(getEnvAsInt64("GIPHY_RATE_PER_MINUTE", 40)),

		RedisURL:      getEnv("REDIS_URL", ""),
		MediaCacheTTL: time.Duration(getEnvAsInt64("MEDIA_CACHE_TTL_SECONDS", 300)) * time.Second,

		TypingQuietPeriod:   time.Duration(getEnvAsInt64("TYPING_QUIET_PERIOD_MS", 2000)) * time.Millisecond,
		MediaSearchDebounce: time.Duration(getEnvAsInt64("MEDIA_SEARCH_DEBOUNCE_MS", 500)) * time.Millisecond,
		MaxImageBytes:       getEnvAsInt64("MAX_IMAGE_BYTES", 5*1024*1024),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
