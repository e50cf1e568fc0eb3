package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default upload policy: PDF, DOC and DOCX up to 10 MiB.
const (
	DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

	MIMEPDF  = "application/pdf"
	MIMEDOC  = "application/msword"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// Zero pool limits leave the sizing to the database package.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AuthConfig points the client at the remote authentication backend.
type AuthConfig struct {
	BaseURL    string
	APIBaseURL string
	TimeoutSec int
	LoginRPS   float64
	LoginBurst int
	// BreakerFailures consecutive backend failures open the circuit for BreakerOpenSec.
	BreakerFailures int
	BreakerOpenSec  int
}

// UploadConfig is the ingestion policy of the upload view.
type UploadConfig struct {
	MaxSizeBytes int64    `yaml:"max_size_bytes"`
	AllowedTypes []string `yaml:"allowed_types"`
	TickMillis   int      `yaml:"tick_millis"`
	Step         int      `yaml:"step"`
	// Transport is "simulated" or "s3".
	Transport string `yaml:"transport"`
}

// StorageConfig selects where the durable client slot (the session token) lives.
type StorageConfig struct {
	// Driver is "file" or "postgres".
	Driver string
	Path   string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port     string
	LogLevel string
	Auth     AuthConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
}

// fileConfig is the optional YAML overlay read from CONFIG_FILE.
type fileConfig struct {
	Upload UploadConfig `yaml:"upload"`
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// When CONFIG_FILE is set its upload section is applied first and env vars override it.
func Load() (*AppConfig, error) {
	upload := defaultUpload()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		mergeUpload(&upload, fc.Upload)
	}

	upload.MaxSizeBytes = getEnvInt64("UPLOAD_MAX_SIZE_BYTES", upload.MaxSizeBytes)
	upload.AllowedTypes = getEnvList("UPLOAD_ALLOWED_TYPES", upload.AllowedTypes)
	upload.TickMillis = getEnvInt("UPLOAD_TICK_MS", upload.TickMillis)
	upload.Step = getEnvInt("UPLOAD_STEP", upload.Step)
	upload.Transport = getEnv("UPLOAD_TRANSPORT", upload.Transport)

	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Auth: AuthConfig{
			BaseURL:    getEnv("AUTH_BASE_URL", "http://localhost:3000/api/auth"),
			APIBaseURL: getEnv("API_BASE_URL", "http://localhost:3000/api"),
			TimeoutSec: getEnvInt("AUTH_TIMEOUT_SEC", 15),
			LoginRPS:   getEnvFloat("AUTH_LOGIN_RPS", 1),
			LoginBurst: getEnvInt("AUTH_LOGIN_BURST", 3),

			BreakerFailures: getEnvInt("BACKEND_BREAKER_FAILURES", 5),
			BreakerOpenSec:  getEnvInt("BACKEND_BREAKER_OPEN_SEC", 30),
		},
		Upload: upload,
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "file"),
			Path:   getEnv("STORAGE_PATH", "./data/client-storage.json"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 0),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 0),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}, nil
}

func defaultUpload() UploadConfig {
	return UploadConfig{
		MaxSizeBytes: DefaultMaxUploadBytes,
		AllowedTypes: []string{MIMEPDF, MIMEDOC, MIMEDOCX},
		TickMillis:   500,
		Step:         10,
		Transport:    "simulated",
	}
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &fc, nil
}

func mergeUpload(dst *UploadConfig, src UploadConfig) {
	if src.MaxSizeBytes > 0 {
		dst.MaxSizeBytes = src.MaxSizeBytes
	}
	if len(src.AllowedTypes) > 0 {
		dst.AllowedTypes = src.AllowedTypes
	}
	if src.TickMillis > 0 {
		dst.TickMillis = src.TickMillis
	}
	if src.Step > 0 {
		dst.Step = src.Step
	}
	if src.Transport != "" {
		dst.Transport = src.Transport
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
