package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 20, cfg.List.DefaultPageSize)
	assert.Equal(t, 100, cfg.List.MaxPageSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
	assert.Equal(t, time.Hour, cfg.Exports.CleanupInterval)
	assert.Equal(t, int64(5*1024*1024), cfg.Import.MaxBytes)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestListBoundsAreSane(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("LIST_DEFAULT_PAGE_SIZE", 50)
	v.Set("LIST_MAX_PAGE_SIZE", 10)
	v.Set("CACHE_TTL", "nonsense")

	cfg := fromViper(v)
	assert.Equal(t, 50, cfg.List.DefaultPageSize)
	assert.Equal(t, 50, cfg.List.MaxPageSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"http://a", "http://b"}, splitAndTrim(" http://a, ,http://b "))
}
