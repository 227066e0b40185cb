package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/logging"
)

func writePolicy(t *testing.T, dir, name string, policy map[string]any) string {
	t.Helper()
	data, err := json.MarshalIndent(policy, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func validPolicy() map[string]any {
	return map[string]any{
		"displayName": "Require secure transfer for storage accounts",
		"description": "Audits storage accounts that do not enforce HTTPS-only traffic",
		"mode":        "Indexed",
		"policyRule": map[string]any{
			"if":   map[string]any{"field": "type", "equals": "Microsoft.Storage/storageAccounts"},
			"then": map[string]any{"effect": "Audit"},
		},
	}
}

func newTestConfig() *config.Config {
	return &config.Config{Logger: logging.New(false, true)}
}

func TestValidateCommand_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "storage-secure-transfer.json", validPolicy())

	cmd := NewValidateCommand(newTestConfig())
	cmd.SetArgs([]string{path})

	assert.NoError(t, cmd.Execute())
}

func TestValidateCommand_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	broken := validPolicy()
	delete(broken, "description")
	path := writePolicy(t, dir, "storage-secure-transfer.json", broken)

	cmd := NewValidateCommand(newTestConfig())
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}

func TestValidateCommand_Directory(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "storage-secure-transfer.json", validPolicy())
	writePolicy(t, dir, "resource-group-tagging.json", validPolicy())

	cmd := NewValidateCommand(newTestConfig())
	cmd.SetArgs([]string{dir})

	assert.NoError(t, cmd.Execute())
}

func TestValidateCommand_MissingPath(t *testing.T) {
	cmd := NewValidateCommand(newTestConfig())
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.json")})

	assert.Error(t, cmd.Execute())
}

func TestValidateCommand_RequiresArgs(t *testing.T) {
	cmd := NewValidateCommand(newTestConfig())
	cmd.SetArgs([]string{})

	assert.Error(t, cmd.Execute())
}
