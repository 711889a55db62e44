package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Execution modes. Production runs the full PWA rebuild, development only clears caches.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
	ModeLocal       = "local"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	AppEnv             string
	Debug              bool
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminEmails        []string
	// When false, likes fall back to the requester IP if no bearer token is present.
	LikesRequireAuth   bool
	AutoFavoriteOnLike bool
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching, token revocation and the rebuild queue
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// PWA build pipeline
	PWA PWAConfig
	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectBase  string
}

// PWAConfig groups the cache invalidation and rebuild settings.
type PWAConfig struct {
	PublicDir          string
	VersionFile        string
	MetadataFile       string
	RebuildScript      string
	CacheClearScript   string
	RebuildTimeout     time.Duration
	CacheClearTimeout  time.Duration
	JobMaxAttempts     int
	JobBackoff         time.Duration
	WarmupSchedule     string
	NotificationMaxAge time.Duration
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Missing .env is fine, production injects the environment directly.
	_ = godotenv.Load()

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("ignoring invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Override replaces the cached configuration. Used by tests and tooling that build config in code.
func Override(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// IsProduction reports whether the app runs in production mode.
func (c AppConfig) IsProduction() bool { return c.AppEnv == ModeProduction }

// IsDevelopment reports whether the app runs in development mode.
func (c AppConfig) IsDevelopment() bool { return c.AppEnv == ModeDevelopment }

// IsAdmin reports whether an account with role and email administers the API:
// either through the admin role or because its email is listed in AdminEmails.
func (c AppConfig) IsAdmin(role, email string) bool {
	return role == "admin" || c.IsAdminEmail(email)
}

// IsAdminEmail reports whether the email is configured as an administrator.
func (c AppConfig) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped JSON sections into out if the file is present.
// Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) (bool, bool) {
		b, ok := m[key].(bool)
		return b, ok
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	getSeconds := func(m map[string]any, key string) time.Duration {
		return time.Duration(getInt(m, key)) * time.Second
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.AppEnv = getString(app, "AppEnv")
		out.JWTSecret = getString(app, "JWTSecret")
		out.TokenTTLHours = getInt(app, "TokenTTLHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.AdminEmails = getStringSlice(app, "AdminEmails")
		if b, ok := getBool(app, "Debug"); ok {
			out.Debug = b
		}
		if b, ok := getBool(app, "LikesRequireAuth"); ok {
			out.LikesRequireAuth = b
		}
		if b, ok := getBool(app, "AutoFavoriteOnLike"); ok {
			out.AutoFavoriteOnLike = b
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinMode = getString(lg, "GinMode")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress, _ = getBool(lg, "Compress")
	}

	if pw, ok := raw["pwa"].(map[string]any); ok {
		out.PWA.PublicDir = getString(pw, "PublicDir")
		out.PWA.VersionFile = getString(pw, "VersionFile")
		out.PWA.MetadataFile = getString(pw, "MetadataFile")
		out.PWA.RebuildScript = getString(pw, "RebuildScript")
		out.PWA.CacheClearScript = getString(pw, "CacheClearScript")
		out.PWA.RebuildTimeout = getSeconds(pw, "RebuildTimeoutSec")
		out.PWA.CacheClearTimeout = getSeconds(pw, "CacheClearTimeoutSec")
		out.PWA.JobMaxAttempts = getInt(pw, "JobMaxAttempts")
		out.PWA.JobBackoff = getSeconds(pw, "JobBackoffSec")
		out.PWA.WarmupSchedule = getString(pw, "WarmupSchedule")
	}

	if oa, ok := raw["oauth"].(map[string]any); ok {
		out.GoogleClientID = getString(oa, "GoogleClientID")
		out.GoogleClientSecret = getString(oa, "GoogleClientSecret")
		out.OAuthRedirectBase = getString(oa, "OAuthRedirectBase")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.AppEnv == "" {
		c.AppEnv = ModeLocal
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 24 * 30
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "dinor"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "storage/dinor.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}

	p := &c.PWA
	if p.PublicDir == "" {
		p.PublicDir = "public"
	}
	if p.VersionFile == "" {
		p.VersionFile = filepath.Join(p.PublicDir, "pwa", "version.json")
	}
	if p.MetadataFile == "" {
		p.MetadataFile = filepath.Join(p.PublicDir, "pwa", "build-meta.json")
	}
	if p.RebuildScript == "" {
		p.RebuildScript = "scripts/rebuild-pwa.sh"
	}
	if p.CacheClearScript == "" {
		p.CacheClearScript = "scripts/clear-pwa-cache.sh"
	}
	if p.RebuildTimeout == 0 {
		p.RebuildTimeout = 300 * time.Second
	}
	if p.CacheClearTimeout == 0 {
		p.CacheClearTimeout = 60 * time.Second
	}
	if p.JobMaxAttempts == 0 {
		p.JobMaxAttempts = 3
	}
	if p.JobBackoff == 0 {
		p.JobBackoff = 30 * time.Second
	}
	if p.WarmupSchedule == "" {
		p.WarmupSchedule = "@every 30m"
	}
	if p.NotificationMaxAge == 0 {
		p.NotificationMaxAge = 30 * 24 * time.Hour
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("APP_ENV", ""); v != "" {
		c.AppEnv = strings.ToLower(v)
	}
	if v := getEnv("APP_DEBUG", ""); v != "" {
		c.Debug = parseBool(v, c.Debug)
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := getEnv("ADMIN_EMAILS", ""); v != "" {
		c.AdminEmails = splitList(v)
	}
	if v := getEnv("LIKES_REQUIRE_AUTH", ""); v != "" {
		c.LikesRequireAuth = parseBool(v, c.LikesRequireAuth)
	}
	if v := getEnv("AUTO_FAVORITE_ON_LIKE", ""); v != "" {
		c.AutoFavoriteOnLike = parseBool(v, c.AutoFavoriteOnLike)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitPerMinute = n
		}
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("SQLITE_PATH", ""); v != "" {
		c.SQLitePath = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisPort = n
		}
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("PWA_PUBLIC_DIR", ""); v != "" {
		c.PWA.PublicDir = v
	}
	if v := getEnv("PWA_REBUILD_SCRIPT", ""); v != "" {
		c.PWA.RebuildScript = v
	}
	if v := getEnv("PWA_CACHE_CLEAR_SCRIPT", ""); v != "" {
		c.PWA.CacheClearScript = v
	}
	if v := getEnv("PWA_WARMUP_SCHEDULE", ""); v != "" {
		c.PWA.WarmupSchedule = v
	}
	if v := getEnv("GOOGLE_CLIENT_ID", ""); v != "" {
		c.GoogleClientID = v
	}
	if v := getEnv("GOOGLE_CLIENT_SECRET", ""); v != "" {
		c.GoogleClientSecret = v
	}
	if v := getEnv("OAUTH_REDIRECT_BASE", ""); v != "" {
		c.OAuthRedirectBase = v
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
