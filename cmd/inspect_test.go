package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runInspect(t *testing.T, args ...string) map[string]any {
	t.Helper()
	chdir(t, t.TempDir())

	cmd := newInspectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	return got
}

func TestInspectDate(t *testing.T) {
	got := runInspect(t, "date", "2025-07-01", "18:00")
	assert.Equal(t, map[string]any{"start": "2025-07-01T18:00:00+02:00"}, got)

	got = runInspect(t, "date", "2025-03-15")
	assert.Equal(t, map[string]any{"start": "2025-03-15"}, got)
}

func TestInspectWeek(t *testing.T) {
	got := runInspect(t, "week", "--at", "2025-07-03T09:00:00Z")
	assert.Equal(t, float64(28), got["weekNumber"])
	assert.Equal(t, "2025-07-10", got["publicationDate"])
	assert.Equal(t, "Week 28", got["containerTitle"])
	assert.Nil(t, got["linkedContainerId"])
}

func TestInspectPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sender":"Jane <jane@example.com>","recipient":"newsletter@relay.example.com","subject":"Hi","body-plain":"hello"}`), 0o600))

	got := runInspect(t, "payload", path)
	assert.Equal(t, "mailgun", got["provider"])
	assert.Equal(t, "newsletter_item", got["pipeline"])
	env := got["envelope"].(map[string]any)
	assert.Equal(t, "jane@example.com", env["from"])
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
