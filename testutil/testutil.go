// Package testutil builds throwaway databases, Redis servers and config for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/models"
)

// NewDB opens a migrated SQLite database in a temp dir.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	c := config.AppConfig{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "test.db")}
	db, err := config.Open(c, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// NewRedis starts an in-process Redis and returns a client bound to it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

// Config installs a test configuration and returns it. mutate may adjust it first.
func Config(t *testing.T, mutate func(*config.AppConfig)) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	c := config.AppConfig{
		JWTSecret: "test-secret",
		AppEnv:    config.ModeLocal,
		GinMode:   "test",
		GinPath:   filepath.Join(dir, "gin.log"),
		LogLevel:  "error",
		DBDriver:  "sqlite",
	}
	c.PWA.PublicDir = filepath.Join(dir, "public")
	if mutate != nil {
		mutate(&c)
	}
	config.Override(c)
	return config.Get()
}

// Seed creates rows and fails the test on error.
func Seed(t *testing.T, db *gorm.DB, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, db.Create(v).Error)
	}
}

// Published returns a published recipe ready to insert.
func Published(title string) *models.Recipe {
	r := &models.Recipe{Title: title}
	r.IsPublished = true
	return r
}
