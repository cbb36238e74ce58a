package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OpenFGA   OpenFGAConfig
	Telemetry TelemetryConfig
	Storage   StorageConfig
	Session   SessionConfig
	Auth      AuthConfig
	Leave     LeaveConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
	BodyLimit    int
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int
	AutoMigrate bool
}

// DSN renders the connection string shared by pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
}

type OpenFGAConfig struct {
	Enabled              bool
	APIURL               string
	APIToken             string
	StoreID              string
	AuthorizationModelID string
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

type StorageConfig struct {
	Type         string
	LocalPath    string
	LocalBaseURL string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	URLExpiry    time.Duration
	MaxFileSize  int64
}

type SessionConfig struct {
	Expiration   time.Duration
	CookieSecure bool
	GCInterval   time.Duration
}

type AuthConfig struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
}

// LeaveScope selects which leave requests a manager sees.
type LeaveScope string

const (
	LeaveScopeAll     LeaveScope = "all"
	LeaveScopeReports LeaveScope = "reports"
)

type LeaveConfig struct {
	ManagerScope LeaveScope
}

// LoadEnvFile loads variables from a dotenv file without overriding the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func NewConfig() *Config {
	environment := getEnv("SERVER_ENVIRONMENT", "development")

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "3001"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  environment,
			BodyLimit:    getEnvInt("SERVER_BODY_LIMIT", 12*1024*1024),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "password"),
			Name:        getEnv("DB_NAME", "realtycrm"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			MaxConns:    getEnvInt("DB_MAX_CONNS", 10),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:     getEnvBool("REDIS_ENABLED", true),
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			SnapshotTTL: getEnvDuration("REDIS_SNAPSHOT_TTL", 24*time.Hour),
		},
		OpenFGA: OpenFGAConfig{
			Enabled:              getEnvBool("OPENFGA_ENABLED", false),
			APIURL:               getEnv("OPENFGA_API_URL", "http://localhost:8080"),
			APIToken:             getEnv("OPENFGA_API_TOKEN", ""),
			StoreID:              getEnv("OPENFGA_STORE_ID", ""),
			AuthorizationModelID: getEnv("OPENFGA_AUTHORIZATION_MODEL_ID", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("TELEMETRY_EXPORTER_URL", "localhost:4317"),
			ServiceName:    getEnv("TELEMETRY_SERVICE_NAME", "realtycrm"),
			ServiceVersion: getEnv("TELEMETRY_SERVICE_VERSION", "dev"),
			Environment:    environment,
			SamplingRatio:  getEnvFloat("TELEMETRY_SAMPLING_RATIO", 1.0),
		},
		Storage: StorageConfig{
			Type:         getEnv("STORAGE_TYPE", "local"),
			LocalPath:    getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			LocalBaseURL: getEnv("STORAGE_LOCAL_BASE_URL", "/uploads"),
			S3Bucket:     getEnv("STORAGE_S3_BUCKET", ""),
			S3Region:     getEnv("STORAGE_S3_REGION", "eu-west-1"),
			S3Endpoint:   getEnv("STORAGE_S3_ENDPOINT", ""),
			URLExpiry:    getEnvDuration("STORAGE_URL_EXPIRY", 15*time.Minute),
			MaxFileSize:  int64(getEnvInt("STORAGE_MAX_FILE_SIZE", 10*1024*1024)),
		},
		Session: SessionConfig{
			Expiration:   getEnvDuration("SESSION_EXPIRATION", 12*time.Hour),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", environment == "production"),
			GCInterval:   getEnvDuration("SESSION_GC_INTERVAL", 10*time.Minute),
		},
		Auth: AuthConfig{
			MaxLoginAttempts: getEnvInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
			LoginWindow:      getEnvDuration("AUTH_LOGIN_WINDOW", 15*time.Minute),
		},
		Leave: LeaveConfig{
			ManagerScope: LeaveScope(strings.ToLower(getEnv("LEAVE_MANAGER_SCOPE", string(LeaveScopeAll)))),
		},
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Leave.ManagerScope {
	case LeaveScopeAll, LeaveScopeReports:
	default:
		errs = append(errs, fmt.Errorf("LEAVE_MANAGER_SCOPE must be %q or %q, got %q", LeaveScopeAll, LeaveScopeReports, c.Leave.ManagerScope))
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("STORAGE_S3_BUCKET is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_TYPE %q", c.Storage.Type))
	}
	if c.OpenFGA.Enabled && c.OpenFGA.StoreID == "" {
		errs = append(errs, errors.New("OPENFGA_STORE_ID is required when OpenFGA is enabled"))
	}
	if c.Auth.MaxLoginAttempts < 1 {
		errs = append(errs, errors.New("AUTH_MAX_LOGIN_ATTEMPTS must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
