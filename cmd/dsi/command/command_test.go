package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi/cmd/dsi/console"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	console.SetOutput(&out, &errOut)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	app := &cli.App{
		Name:           "dsi",
		Flags:          GlobalFlags,
		Commands:       []*cli.Command{EepromCmd, GainCmd},
		ExitErrHandler: func(*cli.Context, error) {},
	}
	err := app.Run(append([]string{"dsi", "--simulate"}, args...))
	return out.String(), err
}

func TestEepromName(t *testing.T) {
	out, err := run(t, "eeprom", "name")
	require.NoError(t, err)
	assert.Contains(t, out, "simulator")

	out, err = run(t, "eeprom", "name", "--set", "guider")
	require.NoError(t, err)
	assert.Contains(t, out, "guider")
}

func TestEepromRead(t *testing.T) {
	out, err := run(t, "eeprom", "read", "--offset", "28", "--length", "16")
	require.NoError(t, err)
	// length byte followed by "simulator"
	assert.Contains(t, out, "09 73 69 6d 75 6c 61 74  6f 72")
}

func TestEepromReadRange(t *testing.T) {
	_, err := run(t, "eeprom", "read", "--offset", "300")
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, console.ExitUsage, exitErr.ExitCode())
}

func TestEepromWrite(t *testing.T) {
	out, err := run(t, "eeprom", "write", "--offset", "2", "--data", "01ff", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 bytes at 0x2: 01 FF")

	_, err = run(t, "eeprom", "write", "--offset", "2", "--data", "zz", "--yes")
	assert.Error(t, err)
}

func TestEepromSerial(t *testing.T) {
	out, err := run(t, "eeprom", "serial")
	require.NoError(t, err)
	assert.Contains(t, out, "ffffffffffffffff")
}

func TestGain(t *testing.T) {
	out, err := run(t, "gain", "--set", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "42")

	_, err = run(t, "gain", "--set", "64")
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, console.ExitUsage, exitErr.ExitCode())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dsi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  selector: bogus\n"), 0o600))
	_, err := run(t, "--config", path, "gain")
	assert.Error(t, err)
}
