package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/robot-bridge/errors"
	"github.com/wippyai/robot-bridge/transport"
)

var fixtureModule = filepath.Join("..", "..", "engine", "testdata", "daemon.wasm")

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "linkbot", cmd.Use)

	for _, name := range []string{"inspect", "led", "interactive"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	for _, name := range []string{"config", "module", "server", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linkbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("module: from-file.wasm\nserver:\n  address: file:1\n"), 0o600))

	opts := &RootOptions{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindGlobalFlags(fs, opts)
	require.NoError(t, fs.Parse([]string{"--config", path, "--server", "flag:2", "-v"}))

	cfg, err := loadConfig(fs, opts)
	require.NoError(t, err)
	assert.Equal(t, "from-file.wasm", cfg.Module, "unset flag keeps the file value")
	assert.Equal(t, "flag:2", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts.ConfigPath = filepath.Join(dir, "missing.yaml")
	_, err = loadConfig(fs, opts)
	assert.True(t, errors.IsPhase(err, errors.PhaseConfig))
}

func TestParseColor(t *testing.T) {
	rgb, err := parseColor([]string{"255", "0", "16"})
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{255, 0, 16}, rgb)

	for _, bad := range [][]string{{"256", "0", "0"}, {"-1", "0", "0"}, {"a", "b", "c"}, {"1", "2"}} {
		_, err := parseColor(bad)
		assert.True(t, errors.HasKind(err, errors.KindInvalidInput), "%v", bad)
	}
}

func TestInspect(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"inspect", "--module", fixtureModule})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "robot_set_led_color (robot, u8, u8, u8, token) -> none")
	assert.Contains(t, out, "Daemon ABI: ok")
}

func TestInspect_MissingExports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wasm")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}, 0o600))

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"inspect", "--module", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "daemon_new: not exported")
}

// serveAcks accepts one connection and acknowledges every connect and led
// request frame the test daemon emits.
func serveAcks(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			frame, err := transport.ReadFrame(conn, transport.MaxFrame)
			if err != nil {
				return
			}
			if len(frame) >= 5 && (frame[0] == 0x01 || frame[0] == 0x02) {
				reply := append([]byte{0x81}, frame[1:5]...)
				if err := transport.WriteFrame(conn, reply, transport.MaxFrame); err != nil {
					return
				}
			}
		}
	}()
	return ln.Addr().String()
}

func TestLed(t *testing.T) {
	addr := serveAcks(t)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"led", "ZRG6", "255", "0", "0", "--module", fixtureModule, "--server", addr, "--log-level", "error"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "ZRG6: led set to 255,0,0")
}

func TestLed_BadColour(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"led", "ZRG6", "300", "0", "0", "--module", fixtureModule})
	err := cmd.Execute()
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput), "got %v", err)
}

func TestInteractiveModel_Commands(t *testing.T) {
	m := newInteractiveModel()
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	cmd, quit := m.execute("led ZRG6 1 2 3")
	assert.Nil(t, cmd)
	assert.False(t, quit)
	assert.Contains(t, m.lines[len(m.lines)-1].text, "not connected")

	cmd, _ = m.execute("connect ZRG6")
	assert.Nil(t, cmd, "no session yet")

	_, _ = m.execute("bogus")
	assert.Contains(t, m.lines[len(m.lines)-1].text, "unknown command")

	_, quit = m.execute("quit")
	assert.True(t, quit)

	assert.Contains(t, m.View(), "linkbot")
}
