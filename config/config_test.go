package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, ModeLocal, c.AppEnv)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, 6379, c.RedisPort)
	assert.Equal(t, filepath.Join("public", "pwa", "version.json"), c.PWA.VersionFile)
	assert.Equal(t, 300*time.Second, c.PWA.RebuildTimeout)
	assert.Equal(t, 60*time.Second, c.PWA.CacheClearTimeout)
	assert.Equal(t, 3, c.PWA.JobMaxAttempts)
	assert.Equal(t, "@every 30m", c.PWA.WarmupSchedule)
	assert.False(t, c.LikesRequireAuth)
	assert.False(t, c.AutoFavoriteOnLike)
}

func TestVersionFilesFollowPublicDir(t *testing.T) {
	c := AppConfig{PWA: PWAConfig{PublicDir: "/srv/www"}}
	applyDefaults(&c)
	assert.Equal(t, "/srv/www/pwa/version.json", c.PWA.VersionFile)
	assert.Equal(t, "/srv/www/pwa/build-meta.json", c.PWA.MetadataFile)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("ADMIN_EMAILS", " chef@dinor.test , ops@dinor.test ,")
	t.Setenv("LIKES_REQUIRE_AUTH", "true")
	t.Setenv("AUTO_FAVORITE_ON_LIKE", "not-a-bool")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "abc")

	c := AppConfig{RateLimitPerMinute: 60, AutoFavoriteOnLike: true}
	applyEnvOverrides(&c)

	assert.True(t, c.IsProduction())
	assert.False(t, c.IsDevelopment())
	assert.Equal(t, []string{"chef@dinor.test", "ops@dinor.test"}, c.AdminEmails)
	assert.True(t, c.LikesRequireAuth)
	assert.True(t, c.AutoFavoriteOnLike, "unparsable values keep the previous setting")
	assert.Equal(t, 6380, c.RedisPort)
	assert.Equal(t, 60, c.RateLimitPerMinute)
}

func TestIsAdminEmail(t *testing.T) {
	c := AppConfig{AdminEmails: []string{"Chef@Dinor.test"}}
	assert.True(t, c.IsAdminEmail(" chef@dinor.test"))
	assert.False(t, c.IsAdminEmail("guest@dinor.test"))

	assert.True(t, c.IsAdmin("user", "chef@dinor.test"))
	assert.True(t, c.IsAdmin("admin", "guest@dinor.test"))
	assert.False(t, c.IsAdmin("professional", "guest@dinor.test"))
}

func TestLoadJSONConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppEnv": "development", "LikesRequireAuth": true, "AdminEmails": ["a@dinor.test"]},
		"database": {"Driver": "sqlite", "SQLitePath": "/tmp/dinor.db"},
		"pwa": {"RebuildTimeoutSec": 120, "WarmupSchedule": "@hourly"}
	}`), 0o644))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	assert.Equal(t, ModeDevelopment, c.AppEnv)
	assert.True(t, c.LikesRequireAuth)
	assert.Equal(t, []string{"a@dinor.test"}, c.AdminEmails)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 120*time.Second, c.PWA.RebuildTimeout)
	assert.Equal(t, "@hourly", c.PWA.WarmupSchedule)

	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "missing.json"), &c))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	assert.Error(t, loadJSONConfig(bad, &c))
}

func TestOpenSQLite(t *testing.T) {
	c := AppConfig{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "dinor.db")}
	db, err := Open(c, &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	_, err = Open(AppConfig{DBDriver: "oracle"}, &gorm.Config{})
	assert.Error(t, err)
}
