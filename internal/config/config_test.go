package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/router"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Dedup.TTL)
	assert.Equal(t, "Week %d", cfg.Notion.WeekTitle)
	require.Len(t, cfg.Mail.Providers, 1)
	assert.Equal(t, 30*time.Second, cfg.Mail.Providers[0].Breaker.OpenFor)

	rules, err := cfg.RouterRules()
	require.NoError(t, err)
	assert.Equal(t, router.DefaultRules, rules)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
notion:
  databases:
    events: file-events
routing:
  rules:
    - marker: calendar
      pipeline: events
`), 0o600))
	t.Setenv("RELAY_NOTION_TOKEN", "secret")
	t.Setenv("RELAY_HTTP_ADDR", ":9999")
	t.Setenv("RELAY_MAIL_API_KEY", "re_key")
	t.Setenv("RELAY_MAIL_FROM", "relay@example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.Notion.Token)
	assert.Equal(t, "file-events", cfg.Notion.Databases.Events)

	rules, err := cfg.RouterRules()
	require.NoError(t, err)
	assert.Equal(t, []router.Rule{{Marker: "calendar", Kind: model.PipelineEvent}}, rules)

	presence := cfg.Presence()
	assert.True(t, presence["notion"])
	assert.True(t, presence["eventsDatabase"])
	assert.False(t, presence["anthropic"])
	assert.True(t, presence["mail"])
	assert.Equal(t, "re_key", cfg.Mail.Providers[0].APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RELAY_ANTHROPIC_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RELAY_ANTHROPIC_API_KEY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Anthropic.APIKey)
	assert.Equal(t, "2023-06-01", cfg.Anthropic.Version)
	assert.True(t, cfg.Presence()["anthropic"])
}

func TestLoadRejectsUnknownPipeline(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routing:
  rules:
    - marker: x
      pipeline: archive
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
