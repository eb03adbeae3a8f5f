package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Server holds the backend settings.
type Server struct {
	Addr        string
	LogLevel    string
	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	JWTSecret   string
	TokenTTL    time.Duration
	MediaDir    string
	// MediaPublicURL prefixes the secure_url returned for uploads, e.g. https://peeps.example.com
	MediaPublicURL string
	CORSOrigins    []string
	Collections    []string
}

// Client holds the CLI/TUI settings.
type Client struct {
	ServerURL        string
	ProfilePath      string
	LogLevel         string
	CloudName        string
	UploadPreset     string
	CloudinaryBase   string
	AtomicWrites     bool
	SubscribeTimeout time.Duration
}

// LoadEnvFile reads .env into the process environment if present.
func LoadEnvFile() bool {
	return godotenv.Load() == nil
}

func LoadServer() (*Server, error) {
	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	cfg := &Server{
		Addr:           getEnv("PEEPS_ADDR", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBDriver:       getEnv("DB_DRIVER", DriverSQLite),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "mypeeps.db"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenTTL:       ttl,
		MediaDir:       getEnv("MEDIA_DIR", "media"),
		MediaPublicURL: strings.TrimRight(getEnv("MEDIA_PUBLIC_URL", ""), "/"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		Collections:    splitList(getEnv("COLLECTIONS", "persons,groups")),
	}

	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURLFromParts()
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

func LoadClient() (*Client, error) {
	timeout, err := time.ParseDuration(getEnv("PEEPS_SUBSCRIBE_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PEEPS_SUBSCRIBE_TIMEOUT: %w", err)
	}
	atomic, err := strconv.ParseBool(getEnv("PEEPS_ATOMIC_WRITES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid PEEPS_ATOMIC_WRITES: %w", err)
	}

	return &Client{
		ServerURL:        strings.TrimRight(getEnv("PEEPS_SERVER", "http://localhost:8080"), "/"),
		ProfilePath:      getEnv("PEEPS_PROFILE", defaultProfilePath()),
		LogLevel:         getEnv("LOG_LEVEL", "warn"),
		CloudName:        getEnv("CLOUDINARY_CLOUD_NAME", ""),
		UploadPreset:     getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		CloudinaryBase:   strings.TrimRight(getEnv("CLOUDINARY_BASE_URL", "https://api.cloudinary.com"), "/"),
		AtomicWrites:     atomic,
		SubscribeTimeout: timeout,
	}, nil
}

// postgresURLFromParts builds a DSN from the individual user/password/host/port/dbname variables.
func postgresURLFromParts() string {
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))
	sslMode := getEnv("sslmode", "require")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", dbUser, dbPass, dbHost, dbPort, dbName, sslMode)
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "peeps-profile.yaml"
	}
	return dir + string(os.PathSeparator) + "mypeeps" + string(os.PathSeparator) + "profile.yaml"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
