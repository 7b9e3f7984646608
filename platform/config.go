package platform

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port       string
	CORSOrigin string
	LogDir     string

	DBDriver   string
	SQLHost    string
	SQLPort    string
	SQLUser    string
	SQLPass    string
	SQLDBName  string
	SQLitePath string

	AccessSecret string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	StorageMode         string
	GCSBucket           string
	StorageEmulatorHost string

	SMTPAddr     string
	SMTPHost     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	OrphanSweepSpec string
	OrphanMaxAge    time.Duration
}

// LoadConfig reads .env (if present) and then the process environment.
func LoadConfig(envFile string) *Config {
	if err := godotenv.Load(envFile); err != nil {
		Logger.Infof("no %s file loaded, using process environment", envFile)
	}

	return &Config{
		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost"),
		LogDir:     getEnv("LOG_DIR", "./log"),

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		SQLHost:    getEnv("SQL_HOST", "127.0.0.1"),
		SQLPort:    getEnv("SQL_PORT", "3306"),
		SQLUser:    getEnv("SQL_USER", "root"),
		SQLPass:    getEnv("SQL_PASSWORD", ""),
		SQLDBName:  getEnv("SQL_DBNAME", "souschef"),
		SQLitePath: getEnv("SQLITE_PATH", "souschef.db"),

		AccessSecret: getEnv("ACCESS_SECRET", ""),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1/"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o"),

		StorageMode:         getEnv("STORAGE_MODE", "gcs"),
		GCSBucket:           getEnv("GCS_BUCKET", "souschef-uploads"),
		StorageEmulatorHost: getEnv("STORAGE_EMULATOR_HOST", ""),

		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", ""),

		OrphanSweepSpec: getEnv("ORPHAN_SWEEP_SPEC", "17 3 * * *"),
		OrphanMaxAge:    getDuration("ORPHAN_MAX_AGE", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getDuration accepts Go duration strings ("36h") or a plain number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	Logger.Warnf("invalid %s=%q, using %v", key, raw, fallback)
	return fallback
}
