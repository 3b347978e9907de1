package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPQ, cfg.Database.Driver)
	assert.Equal(t, 104, cfg.Booking.MaxOccurrences)
	assert.Equal(t, 3, cfg.Booking.TxMaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Booking.TxRetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.Booking.CacheTTL)
	assert.True(t, cfg.Audit.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "lesson:", cfg.Redis.KeyPrefix)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "PGX")
	v.Set("BOOKING_MAX_OCCURRENCES", 0)
	v.Set("BOOKING_TX_RETRY_DELAY", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)

	assert.Equal(t, DriverPGX, cfg.Database.Driver)
	assert.Equal(t, 104, cfg.Booking.MaxOccurrences)
	assert.Equal(t, 10*time.Millisecond, cfg.Booking.TxRetryDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperUnknownDriverFallsBack(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "mysql")

	assert.Equal(t, DriverPQ, fromViper(v).Database.Driver)
}
