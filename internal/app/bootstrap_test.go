package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLifetime(t *testing.T) {
	t.Parallel()

	fallback := 7 * 24 * time.Hour

	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"minutes", "15m", 15 * time.Minute},
		{"hours", "12h", 12 * time.Hour},
		{"days", "7d", 7 * 24 * time.Hour},
		{"single day", "1d", 24 * time.Hour},
		{"empty falls back", "", fallback},
		{"garbage falls back", "soon", fallback},
		{"negative falls back", "-5m", fallback},
		{"zero days falls back", "0d", fallback},
		{"fractional days fall back", "1.5d", fallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLifetime(tc.value, fallback))
		})
	}
}

func TestEnvBoolOrDefault(t *testing.T) {
	t.Setenv("APP_TEST_BOOL", "yes")
	assert.True(t, EnvBoolOrDefault("APP_TEST_BOOL", false))

	t.Setenv("APP_TEST_BOOL", "off")
	assert.False(t, EnvBoolOrDefault("APP_TEST_BOOL", true))

	t.Setenv("APP_TEST_BOOL", "maybe")
	assert.True(t, EnvBoolOrDefault("APP_TEST_BOOL", true))

	t.Setenv("APP_TEST_BOOL", "")
	assert.False(t, EnvBoolOrDefault("APP_TEST_BOOL", false))
}
