package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
env: dev
plant:
  name: plant-7
  checkout_path: /etc/checkout/plant-7.yaml
  devices_path: /etc/checkout/devices.yaml
gateway:
  url: http://gateway.local:9300
run:
  interval: 1m
  sequential: true
publisher:
  url: http://results.local/api/reports
history:
  path: /tmp/history.db
`

func TestMustLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))

	cfg := MustLoad(path)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "plant-7", cfg.Plant.Name)
	assert.Equal(t, "http://gateway.local:9300", cfg.Gateway.URL)
	assert.Equal(t, time.Minute, cfg.Run.Interval)
	assert.True(t, cfg.Run.Sequential)

	// Defaults fill everything the file leaves out.
	assert.Equal(t, 2*time.Minute, cfg.Run.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 5, cfg.Publisher.Retry.MaxAttempts)
	assert.Equal(t, ":8080", cfg.Health.Address)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestMustLoadMissingFilePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv("PUBLISHER_TOKEN", "sekret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))

	cfg := MustLoad(path)
	assert.Equal(t, "sekret", cfg.Publisher.Token)
}
