package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	tempConfigsSubDir := filepath.Join(tempDir, "configs")
	err = os.Mkdir(tempConfigsSubDir, 0755)
	require.NoError(t, err)

	testAppName := "reconciler-test"
	testLogLevel := "debug"
	testInterval := 90 * time.Second
	testGatewayUser := "sender-01"

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nLOG_LEVEL=%s\nRECONCILER_POLLING_INTERVAL=%s\nGATEWAY_USERNAME=%s\n",
		testAppName, testLogLevel, testInterval, testGatewayUser,
	)
	envFilePath := filepath.Join(tempConfigsSubDir, "test_happy.env")
	err = os.WriteFile(envFilePath, []byte(envContent), 0644)
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	err = os.Chdir(tempDir)
	require.NoError(t, err)

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.Application.Name)
	assert.Equal(t, testLogLevel, cfg.Logging.Level)
	assert.Equal(t, testInterval, cfg.Reconciler.PollingInterval)
	assert.Equal(t, testGatewayUser, cfg.Gateway.Username)

	// untouched keys keep their defaults
	assert.Equal(t, time.Minute, cfg.Reconciler.InitialDelay)
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.ErrorBackoff)
	assert.Equal(t, time.Second, cfg.Reconciler.PollDelay)
	assert.Equal(t, 24*time.Hour, cfg.Reconciler.MaxBatchAge)
	assert.Equal(t, "https://api.payamak-panel.com/post/numberbulk.asmx", cfg.Gateway.StatusURL)
	assert.Equal(t, "Asia/Tehran", cfg.Gateway.Timezone)
	assert.Equal(t, "sms_batch_outcomes", cfg.Kafka.OutcomeTopic)
	assert.Equal(t, 3, cfg.Notification.MaxAttempts)

	cfgWithName, err := LoadConfigWithName("configs/test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfgWithName)
	assert.Equal(t, testAppName, cfgWithName.Application.Name)

	cfgWithNameAndType, err := LoadConfigWithNameAndType("configs/test_happy", "env")
	require.NoError(t, err)
	require.NotNil(t, cfgWithNameAndType)
	assert.Equal(t, testAppName, cfgWithNameAndType.Application.Name)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "configs"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(tempDir, "configs", "test_env.env"),
		[]byte("RECONCILER_BATCH_LIMIT=50\n"), 0644))

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()
	require.NoError(t, os.Chdir(tempDir))

	t.Setenv("RECONCILER_BATCH_LIMIT", "75")

	cfg, err := LoadConfig("test_env")
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Reconciler.BatchLimit)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tempDir := t.TempDir()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()
	require.NoError(t, os.Chdir(tempDir))

	t.Setenv("RECONCILER_POLLING_INTERVAL", "0s")
	t.Setenv("NOTIFICATION_SMTP_HOST", "smtp.example.com")

	cfg, err := LoadConfig("does_not_exist")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "RECONCILER_POLLING_INTERVAL must be greater than 0")
	assert.Contains(t, err.Error(), "NOTIFICATION_OPS_EMAIL is required")
}

func TestConfig_Validate_HappyPath(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := buildConfig(v)

	err := cfg.validate()
	assert.NoError(t, err, "Default config should be valid")
}
