package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/config"
)

type testConfig struct {
	Name    string        `env:"CONFIG_TEST_NAME" envDefault:"billing"`
	Port    int           `env:"CONFIG_TEST_PORT" envDefault:"8080"`
	Timeout time.Duration `env:"CONFIG_TEST_TIMEOUT" envDefault:"5s"`
}

type requiredConfig struct {
	Token string `env:"CONFIG_TEST_REQUIRED_TOKEN,required"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "billing", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONFIG_TEST_OVERRIDE_NAME", "studio")

	type overrideConfig struct {
		Name string `env:"CONFIG_TEST_OVERRIDE_NAME" envDefault:"billing"`
	}

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "studio", cfg.Name)
}

func TestLoad_CachedPerType(t *testing.T) {
	var first testConfig
	require.NoError(t, config.Load(&first))

	// Changing the environment after the first load must not affect
	// subsequent loads of the same type.
	t.Setenv("CONFIG_TEST_PORT", "9999")

	var second testConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first.Port, second.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	err := config.Load[testConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}
