package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_MissingFileWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	_, err := Load(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, path, cfgErr.Path)
	assert.Contains(t, cfgErr.Reason, "template was created")

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "store:")

	// The generated template is itself a loadable config.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite://.config/flights.db", cfg.Store.DSN)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  dsn: memory://
search:
  api_key: tequila-key
  currency: PLN
notify:
  account_sid: AC123
  auth_token: secret
  from: "+15550100"
  to: "+15550199"
sweep:
  interval: 90s
  throttle: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory://", cfg.Store.DSN)
	assert.Equal(t, "tequila-key", cfg.Search.APIKey)
	assert.Equal(t, "PLN", cfg.Search.Currency)
	require.NotNil(t, cfg.Notify)
	assert.Equal(t, "AC123", cfg.Notify.AccountSID)
	assert.Equal(t, 90*time.Second, cfg.Sweep.Interval.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Sweep.Throttle.Std())
	assert.True(t, cfg.NotificationsEnabled())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  dsn: memory://
search:
  api_key: tequila-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Search.Currency)
	assert.Equal(t, 2*time.Minute, cfg.Sweep.Interval.Std())
	assert.Equal(t, time.Second, cfg.Sweep.Throttle.Std())
	assert.Nil(t, cfg.Notify)
	assert.False(t, cfg.NotificationsEnabled())
}

func TestLoad_SchemaViolations(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{
			name: "empty dsn",
			contents: `
store:
  dsn: ""
search:
  api_key: k
`,
		},
		{
			name: "incomplete notify section",
			contents: `
store:
  dsn: memory://
search:
  api_key: k
notify:
  account_sid: ""
  auth_token: secret
  from: "+15550100"
  to: "+15550199"
`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)

			_, err := Load(path)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
store:
  dsn: memory://
search:
  api_key: k
sweep:
  interval: soon
`)

	_, err := Load(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "soon")
}

func TestLoad_SheetsRequiresGoogleSection(t *testing.T) {
	path := writeConfig(t, `
store:
  dsn: sheets://spreadsheet-1
search:
  api_key: k
`)

	_, err := Load(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "google section")
}

func TestLoad_SheetsRequiresProvisionedTokenCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	missingToken := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  dsn: sheets://spreadsheet-1
google:
  client_id: cid
  client_secret: secret
  token_file: `+missingToken+`
search:
  api_key: k
`), 0o600))

	_, err := Load(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "not provisioned")

	// Provisioning the token cache makes the same config valid.
	require.NoError(t, os.WriteFile(missingToken, []byte(`{}`), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Google)
	assert.Equal(t, missingToken, cfg.Google.TokenFile)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [unclosed")

	_, err := Load(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
