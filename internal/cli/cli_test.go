package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/savex"
	"github.com/hengadev/savex/providers/kv/sqlite"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seed writes an archive with a few keys into dir and returns the flags
// addressing it.
func seed(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	defaults := savex.DefaultConfig()
	defaults.BaseDir = dir
	e, err := savex.New(savex.WithDefaults(defaults))
	require.NoError(t, err)

	cfg, err := e.Config("slot.pak")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, e.Save(ctx, "player.name", "ada", cfg))
	require.NoError(t, e.Save(ctx, "player.level", 12, cfg))
	require.NoError(t, e.Save(ctx, "settings.volume", 0.8, cfg))
	return dir, []string{"--env-file", filepath.Join(dir, "none.env"), "--base-dir", dir, "-f", "slot.pak"}
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"keys", "get", "raw", "rm", "rmkey", "backup", "restore", "copy", "rename", "timestamp", "encrypt", "decrypt"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestKeysCommand(t *testing.T) {
	_, flags := seed(t)

	out, err := run(t, "", append([]string{"keys"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "player.name\nplayer.level\nsettings.volume\n", out)

	out, err = run(t, "", append([]string{"keys", "--filter", `key startsWith "player." && type == "int"`}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "player.level\n", out)

	_, err = run(t, "", append([]string{"keys", "--filter", "size +"}, flags...)...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestKeysCommandJSON(t *testing.T) {
	_, flags := seed(t)

	out, err := run(t, "", append([]string{"keys", "--format", "json"}, flags...)...)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []savex.EntryInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "float64", resp.Data[2].Type)
}

func TestGetCommand(t *testing.T) {
	_, flags := seed(t)

	out, err := run(t, "", append([]string{"get", "player.level"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "player.level\tint\t")
	assert.Contains(t, out, "12\n")

	_, err = run(t, "", append([]string{"get", "missing"}, flags...)...)
	assert.ErrorIs(t, err, savex.ErrKeyNotFound)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMaintenanceCommands(t *testing.T) {
	dir, flags := seed(t)
	slot := filepath.Join(dir, "slot.pak")

	_, err := run(t, "", append([]string{"backup"}, flags...)...)
	require.NoError(t, err)
	assert.FileExists(t, slot+".bak")

	_, err = run(t, "", append([]string{"rmkey", "player.name"}, flags...)...)
	require.NoError(t, err)
	out, err := run(t, "", append([]string{"keys"}, flags...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "player.name")

	out, err = run(t, "", append([]string{"restore"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "restored")
	out, err = run(t, "", append([]string{"keys"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "player.name")

	_, err = run(t, "", append([]string{"copy", "copy.pak"}, flags...)...)
	require.NoError(t, err)
	_, err = run(t, "", append([]string{"rename", "moved.pak"}, flags...)...)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "copy.pak"))
	assert.FileExists(t, filepath.Join(dir, "moved.pak"))
	assert.NoFileExists(t, slot)

	out, err = run(t, "", append([]string{"restore"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "no backup")

	_, err = run(t, "", append([]string{"rm", "-f", "copy.pak"}, flags[:4]...)...)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "copy.pak"))
}

func TestRawAndTimestamp(t *testing.T) {
	_, flags := seed(t)

	out, err := run(t, "", append([]string{"raw"}, flags...)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SVX"))
	assert.Contains(t, out, "ada")

	out, err = run(t, "", append([]string{"timestamp"}, flags...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "1970")
}

func TestEncryptDecrypt(t *testing.T) {
	dir := t.TempDir()
	flags := []string{"--env-file", filepath.Join(dir, "none.env"), "--base-dir", dir, "-p", "pw"}

	ciphertext, err := run(t, "top secret", append([]string{"encrypt"}, flags...)...)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "top secret")

	plaintext, err := run(t, ciphertext, append([]string{"decrypt"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "top secret", plaintext)
}

func TestKeyValueLocationUsesSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "kv.db")

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	e, err := savex.New(savex.WithKeyValueStore(store))
	require.NoError(t, err)
	cfg, err := e.Config("profile", savex.WithLocation(savex.KeyValue))
	require.NoError(t, err)
	require.NoError(t, e.Save(context.Background(), "coins", 99, cfg))
	require.NoError(t, store.Close())

	out, err := run(t, "", "keys", "--env-file", filepath.Join(dir, "none.env"),
		"-l", "kv", "--kv-db", dbPath, "-f", "profile")
	require.NoError(t, err)
	assert.Equal(t, "coins\n", out)
}

func TestDotEnvConfiguration(t *testing.T) {
	dir, _ := seed(t)
	envFile := filepath.Join(dir, "savex.env")
	content := "SAVEX_BASE_DIR=" + dir + "\nSAVEX_PATH=slot.pak\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	out, err := run(t, "", "keys", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "settings.volume")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "", "keys", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidLocation(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "", "keys", "--env-file", filepath.Join(dir, "none.env"), "--base-dir", dir, "-l", "tape")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
