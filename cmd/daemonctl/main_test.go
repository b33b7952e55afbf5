package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexmonitor/daemonctl/internal/config"
	"github.com/codexmonitor/daemonctl/internal/lifecycle"
	"github.com/codexmonitor/daemonctl/internal/preview"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.TokenEnvVar, "")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fakeDaemon(t *testing.T) (dataDir, binary string) {
	t.Helper()
	dataDir = t.TempDir()
	binary = filepath.Join(dataDir, config.DaemonBinaryName())
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))
	resolved, err := filepath.EvalSymlinks(binary)
	require.NoError(t, err)
	return dataDir, resolved
}

func TestCommandPreview(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX quoting expected")
	}
	dataDir, binary := fakeDaemon(t)

	out, err := execute(t, "command-preview",
		"--data-dir", dataDir,
		"--daemon-path", binary,
		"--listen", "127.0.0.1:4800",
		"--token", "super-secret")
	require.NoError(t, err)

	want := strings.Join([]string{
		preview.Quote(binary, preview.POSIX),
		"'--listen'", "'127.0.0.1:4800'",
		"'--data-dir'", preview.Quote(dataDir, preview.POSIX),
		"'--token'", "'<remote-backend-token>'",
	}, " ") + "\n"
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "super-secret")
}

func TestCommandPreview_JSON(t *testing.T) {
	dataDir, binary := fakeDaemon(t)

	out, err := execute(t, "command-preview", "--json", "--insecure-no-auth", "--token", "ignored",
		"--data-dir", dataDir, "--daemon-path", binary)
	require.NoError(t, err)

	var got preview.Command
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, binary, got.DaemonPath)
	assert.Equal(t, []string{"--listen", config.DefaultListenAddr, "--data-dir", dataDir, "--insecure-no-auth"}, got.Args)
	assert.False(t, got.TokenConfigured, "--insecure-no-auth drops the token")
}

func TestBlankFlagValuesRejected(t *testing.T) {
	for _, flag := range []string{"--listen", "--token", "--data-dir", "--daemon-path"} {
		t.Run(flag, func(t *testing.T) {
			_, err := execute(t, "status", flag, "   ")
			require.Error(t, err)
			assert.Contains(t, err.Error(), flag+" requires a non-empty value")
		})
	}
}

func TestInvalidListenAddress(t *testing.T) {
	_, err := execute(t, "status", "--data-dir", t.TempDir(), "--listen", "localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid --listen address")
}

func TestStartWithoutToken(t *testing.T) {
	dataDir, binary := fakeDaemon(t)

	_, err := execute(t, "start", "--data-dir", dataDir, "--daemon-path", binary, "--listen", "127.0.0.1:4800")
	require.Error(t, err)
	assert.Equal(t, lifecycle.MissingTokenMessage, err.Error())
}

func TestStatus_Stopped(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	out, err := execute(t, "status", "--json", "--data-dir", t.TempDir(), "--listen", addr)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "stopped", got["state"])
	assert.Nil(t, got["pid"])
	assert.Nil(t, got["startedAtMs"])
	assert.Nil(t, got["lastError"])
	assert.Equal(t, addr, got["listenAddr"])
}

func TestPrintStatus(t *testing.T) {
	pid := uint32(4242)
	listen := "0.0.0.0:4732"
	message := "Daemon is running but requires a remote backend token."

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, lifecycle.Status{
		State:      lifecycle.StateRunning,
		PID:        &pid,
		LastError:  &message,
		ListenAddr: &listen,
	}, false))

	assert.Equal(t, "state: running\nlisten: 0.0.0.0:4732\npid: 4242\nerror: "+message+"\n", out.String())

	out.Reset()
	require.NoError(t, printStatus(&out, lifecycle.Status{State: lifecycle.StateStopped}, false))
	assert.Equal(t, "state: stopped\n", out.String())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, appName+" v"), out)
}
