package di

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/hr-notifier/internal/core"
	"github.com/mikey/hr-notifier/internal/ports"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
lark:
  app_id: cli_app
  app_secret: secret
  spreadsheet_token: sheet-token
ledger:
  driver: file
  file_path: ` + filepath.Join(dir, "sent_emails.json") + `
smtp:
  transport: smtp
  host: smtp.example.com
  from: hr@example.com
routing:
  vendor_email: vendor@example.com
  hr_email: hr@example.com
reminder:
  timezone: UTC
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFlagSet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := ParseFlagSet(fs, []string{"-mode", "separations", "-dry-run", "-from", "2025-02-01", "-transport", "log"})

	assert.Equal(t, "separations", flags.Mode)
	assert.True(t, flags.DryRun)
	assert.Equal(t, "2025-02-01", flags.From)
	assert.Equal(t, "log", flags.Transport)
}

func TestBuildCLIContainer_WiresPipeline(t *testing.T) {
	flags := &CLIFlags{Mode: "remind", ConfigFile: writeConfig(t), Transport: "log"}
	var out bytes.Buffer

	container, err := buildCLIContainer(flags, &out)
	require.NoError(t, err)

	err = container.Invoke(func(runner ports.ReminderRunner, ledger core.LedgerRepository, notifier core.Notifier) {
		assert.Equal(t, core.BackendFile, runner.Backend())
		assert.Equal(t, core.BackendFile, ledger.Kind())
		assert.NotNil(t, notifier)
	})
	require.NoError(t, err)
}

func TestBuildCLIContainer_LedgerProbedOnce(t *testing.T) {
	flags := &CLIFlags{ConfigFile: writeConfig(t), Transport: "log"}

	container, err := buildCLIContainer(flags, &bytes.Buffer{})
	require.NoError(t, err)

	var first, second core.LedgerRepository
	require.NoError(t, container.Invoke(func(l core.LedgerRepository) { first = l }))
	require.NoError(t, container.Invoke(func(g *core.DuplicateGuard, l core.LedgerRepository) { second = l }))
	assert.Same(t, first, second)
}

func TestBuildCLIContainer_InvalidConfig(t *testing.T) {
	flags := &CLIFlags{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}

	container, err := buildCLIContainer(flags, &bytes.Buffer{})
	require.NoError(t, err)

	err = container.Invoke(func(ports.ReminderRunner) {})
	assert.Error(t, err)
}
