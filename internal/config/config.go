package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	StoreBackend          string
	DataDir               string
	BackupDir             string
	DatabaseURL           string
	MySQLDSN              string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	LockTTLSeconds        int
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPassword         string
	ViewerUsername        string
	ViewerPassword        string
	CatalogFile           string
	RecomputeOnReturn     bool
	StrictCatalog         bool
	LogLevel              string
}

const (
	BackendMemory   = "memory"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Load reads the environment, plus a .env file in the working directory
// when one exists.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[config] WARN: ignoring unreadable .env: %v", err)
		}
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("STORE_BACKEND", "")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("BACKUP_DIR", "backups")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REPORT_CACHE_TTL_SECONDS", 60)
	v.SetDefault("LOCK_TTL_SECONDS", 30)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("VIEWER_USERNAME", "viewer")
	v.SetDefault("RECOMPUTE_ON_RETURN", false)
	v.SetDefault("STRICT_CATALOG", false)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := Config{
		Port:                  v.GetString("PORT"),
		AllowedOrigin:         v.GetString("ALLOWED_ORIGIN"),
		StoreBackend:          strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		DataDir:               v.GetString("DATA_DIR"),
		BackupDir:             v.GetString("BACKUP_DIR"),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		MySQLDSN:              strings.TrimSpace(v.GetString("MYSQL_DSN")),
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		ReportCacheTTLSeconds: v.GetInt("REPORT_CACHE_TTL_SECONDS"),
		LockTTLSeconds:        v.GetInt("LOCK_TTL_SECONDS"),
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: v.GetInt("ACCESS_TOKEN_TTL_MINUTES"),
		AdminUsername:         strings.TrimSpace(v.GetString("ADMIN_USERNAME")),
		AdminPassword:         v.GetString("ADMIN_PASSWORD"),
		ViewerUsername:        strings.TrimSpace(v.GetString("VIEWER_USERNAME")),
		ViewerPassword:        v.GetString("VIEWER_PASSWORD"),
		CatalogFile:           strings.TrimSpace(v.GetString("CATALOG_FILE")),
		RecomputeOnReturn:     v.GetBool("RECOMPUTE_ON_RETURN"),
		StrictCatalog:         v.GetBool("STRICT_CATALOG"),
		LogLevel:              v.GetString("LOG_LEVEL"),
	}

	if cfg.ReportCacheTTLSeconds < 1 {
		cfg.ReportCacheTTLSeconds = 60
	}
	if cfg.LockTTLSeconds < 1 {
		cfg.LockTTLSeconds = 30
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = cfg.inferBackend()
	}

	return cfg
}

func (c Config) inferBackend() string {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.MySQLDSN != "":
		return BackendMySQL
	default:
		return BackendCSV
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
