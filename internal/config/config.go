package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string
	CORSOrigin string
	// APIToken guards every route except health checks when set.
	APIToken string

	// Local store: a Redis URL wins over the file directory.
	DataDir  string
	RedisURL string

	// Remote sync is disabled when DatabaseURL is empty.
	DatabaseURL string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MediaDir       string

	MeiliURL       string
	MeiliMasterKey string

	// Extraction runs in plain mode without a key.
	GoogleAPIKey  string
	GeminiBaseURL string

	OutputDir     string
	HistoryDir    string
	ChromeTimeout time.Duration

	AutoSaveDelay  time.Duration
	ImportDebounce time.Duration
	SaveTimeout    time.Duration
	MaxUploadBytes int64
}

// Load reads the environment. A .env file in the working directory is
// applied first without overriding variables that are already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: load .env: %v", err)
	}

	return Config{
		Addr:       getenv("API_ADDR", ":8787"),
		CORSOrigin: getenv("QSERVICE_CORS_ORIGIN", "*"),
		APIToken:   getenv("QSERVICE_API_TOKEN", ""),

		DataDir:  getenv("QSERVICE_DATA_DIR", "./data/store"),
		RedisURL: getenv("REDIS_URL", ""),

		DatabaseURL: getenv("DATABASE_URL", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "case-files"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		MediaDir:       getenv("QSERVICE_MEDIA_DIR", "./data/media"),

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		GoogleAPIKey:  getenv("GOOGLE_API_KEY", ""),
		GeminiBaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		OutputDir:     getenv("QSERVICE_OUTPUT_DIR", "./data/output"),
		HistoryDir:    getenv("QSERVICE_HISTORY_DIR", "./data/history"),
		ChromeTimeout: getenvDuration("QSERVICE_CHROME_TIMEOUT_MS", 60*time.Second),

		AutoSaveDelay:  getenvDuration("QSERVICE_AUTOSAVE_DELAY_MS", 1000*time.Millisecond),
		ImportDebounce: getenvDuration("QSERVICE_IMPORT_DEBOUNCE_MS", 1500*time.Millisecond),
		SaveTimeout:    getenvDuration("QSERVICE_SAVE_TIMEOUT_MS", 15*time.Second),
		MaxUploadBytes: int64(getenvInt("QSERVICE_MAX_UPLOAD_MB", 25)) << 20,
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvDuration reads a millisecond count.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	ms := getenvInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
