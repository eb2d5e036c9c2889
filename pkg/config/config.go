package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Email      EmailConfig
	Sequences  SequencesConfig
	Imports    ImportsConfig
	Documents  DocumentsConfig
	Webhooks   WebhooksConfig
	Dashboard  DashboardConfig
	Audit      AuditConfig
}

// DatabaseConfig locates Postgres. URL wins over the discrete fields.
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig locates the snapshot cache. URL wins over the discrete fields.
type RedisConfig struct {
	URL       string
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig controls clock-in dates and the theory/practical split fallback.
type AttendanceConfig struct {
	Timezone           string
	DefaultTheoryRatio float64
}

// EmailConfig selects the outbound email provider.
type EmailConfig struct {
	Provider    string
	APIKey      string
	FromName    string
	FromAddress string
	AppName     string
}

// SequencesConfig governs the periodic "process due" invoker.
type SequencesConfig struct {
	CronSchedule  string
	BatchSize     int
	InvokerURL    string
	InvokerToken  string
	InvokeTimeout time.Duration
	RetryDelay    time.Duration
	MaxFailures   int
}

// ImportsConfig bounds spreadsheet uploads.
type ImportsConfig struct {
	MaxRows        int
	MaxUploadBytes int64
}

// DocumentsConfig selects where generated PDFs are persisted.
type DocumentsConfig struct {
	Backend         string
	StorageDir      string
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// WebhooksConfig holds inbound webhook secrets.
type WebhooksConfig struct {
	CallAnalyticsSecret string
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// AuditConfig sizes the best-effort audit queue.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:             v.GetString("DATABASE_URL"),
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 30*time.Minute),
		AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		URL:       v.GetString("REDIS_URL"),
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	ratio := v.GetFloat64("ATTENDANCE_DEFAULT_THEORY_RATIO")
	if ratio < 0 || ratio > 1 {
		ratio = 0.30
	}
	cfg.Attendance = AttendanceConfig{
		Timezone:           v.GetString("ATTENDANCE_TIMEZONE"),
		DefaultTheoryRatio: ratio,
	}

	cfg.Email = EmailConfig{
		Provider:    strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		APIKey:      v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("EMAIL_FROM_NAME"),
		FromAddress: v.GetString("EMAIL_FROM_ADDRESS"),
		AppName:     v.GetString("APP_NAME"),
	}

	cfg.Sequences = SequencesConfig{
		CronSchedule:  v.GetString("SEQUENCES_CRON"),
		BatchSize:     v.GetInt("SEQUENCES_BATCH_SIZE"),
		InvokerURL:    v.GetString("SEQUENCES_INVOKER_URL"),
		InvokerToken:  v.GetString("SEQUENCES_INVOKER_TOKEN"),
		InvokeTimeout: parseDuration(v.GetString("SEQUENCES_INVOKE_TIMEOUT"), 2*time.Minute),
		RetryDelay:    parseDuration(v.GetString("SEQUENCES_RETRY_DELAY"), time.Hour),
		MaxFailures:   v.GetInt("SEQUENCES_MAX_FAILURES"),
	}

	maxUpload := v.GetInt64("IMPORTS_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Imports = ImportsConfig{
		MaxRows:        v.GetInt("IMPORTS_MAX_ROWS"),
		MaxUploadBytes: maxUpload,
	}

	cfg.Documents = DocumentsConfig{
		Backend:         strings.ToLower(v.GetString("DOCUMENTS_BACKEND")),
		StorageDir:      v.GetString("DOCUMENTS_STORAGE_DIR"),
		S3Bucket:        v.GetString("DOCUMENTS_S3_BUCKET"),
		S3Region:        v.GetString("DOCUMENTS_S3_REGION"),
		S3Prefix:        v.GetString("DOCUMENTS_S3_PREFIX"),
		SignedURLSecret: v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Webhooks = WebhooksConfig{
		CallAnalyticsSecret: v.GetString("CALL_ANALYTICS_WEBHOOK_SECRET"),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:  v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "barber_academy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "barber:")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "barber-academy-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_TIMEZONE", "America/New_York")
	v.SetDefault("ATTENDANCE_DEFAULT_THEORY_RATIO", 0.30)

	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_NAME", "Barber Academy Admissions")
	v.SetDefault("EMAIL_FROM_ADDRESS", "admissions@example.com")
	v.SetDefault("APP_NAME", "Barber Academy")

	v.SetDefault("SEQUENCES_CRON", "*/15 * * * *")
	v.SetDefault("SEQUENCES_BATCH_SIZE", 100)
	v.SetDefault("SEQUENCES_INVOKER_URL", "http://localhost:8080/api/v1/sequences/process-due")
	v.SetDefault("SEQUENCES_INVOKER_TOKEN", "")
	v.SetDefault("SEQUENCES_INVOKE_TIMEOUT", "2m")
	v.SetDefault("SEQUENCES_RETRY_DELAY", "1h")
	v.SetDefault("SEQUENCES_MAX_FAILURES", 5)

	v.SetDefault("IMPORTS_MAX_ROWS", 5000)
	v.SetDefault("IMPORTS_MAX_UPLOAD_BYTES", 5*1024*1024)

	v.SetDefault("DOCUMENTS_BACKEND", "local")
	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./documents")
	v.SetDefault("DOCUMENTS_S3_BUCKET", "")
	v.SetDefault("DOCUMENTS_S3_REGION", "us-east-1")
	v.SetDefault("DOCUMENTS_S3_PREFIX", "documents/")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_TTL", "30m")

	v.SetDefault("CALL_ANALYTICS_WEBHOOK_SECRET", "")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
