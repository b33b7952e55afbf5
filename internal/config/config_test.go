package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParsePortFromRemoteHost(t *testing.T) {
	tests := []struct {
		host   string
		want   uint16
		wantOK bool
	}{
		{"100.100.100.1:4732", 4732, true},
		{"mac.tailnet.ts.net:8888", 8888, true},
		{"[fd7a:115c:a1e0::1]:4545", 4545, true},
		{"  127.0.0.1:9000  ", 9000, true},
		{"mac.local", 0, false},
		{"mac.local:", 0, false},
		{":4732", 0, false},
		{"host:70000", 0, false},
		{"host:abc", 0, false},
		{"fd7a:115c:a1e0::1:4732", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, ok := ParsePortFromRemoteHost(tt.host)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListenAddrFromSettingsHost(t *testing.T) {
	assert.Equal(t, "0.0.0.0:7777", ListenAddrFromSettingsHost("devbox:7777"))
	assert.Equal(t, "0.0.0.0:4732", ListenAddrFromSettingsHost("devbox"))
	assert.Equal(t, DefaultListenAddr, ListenAddrFromSettingsHost(""))
}

func TestResolveListenAddress(t *testing.T) {
	settings := &Settings{RemoteBackendHost: "mac.ts.net:5000"}

	tests := []struct {
		name     string
		flag     string
		file     string
		settings *Settings
		want     string
		wantErr  bool
	}{
		{name: "flag wins", flag: "127.0.0.1:9999", file: "127.0.0.1:1", settings: settings, want: "127.0.0.1:9999"},
		{name: "file before settings", file: "127.0.0.1:6000", settings: settings, want: "127.0.0.1:6000"},
		{name: "settings host port", settings: settings, want: "0.0.0.0:5000"},
		{name: "default", want: DefaultListenAddr},
		{name: "ipv6 flag", flag: "[::1]:4732", want: "[::1]:4732"},
		{name: "invalid flag", flag: "localhost:4732", wantErr: true},
		{name: "invalid file", file: "not-an-address", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveListenAddress(tt.flag, tt.file, tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveToken(t *testing.T) {
	settings := &Settings{RemoteBackendToken: " from-settings "}

	assert.Equal(t, "flag", ResolveToken(" flag ", "env", settings))
	assert.Equal(t, "env", ResolveToken("  ", "env", settings))
	assert.Equal(t, "from-settings", ResolveToken("", "", settings))
	assert.Equal(t, "", ResolveToken("", "", nil))
}

func TestLoadSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, SettingsFile, `{
  "remoteBackendHost": "100.64.0.2:4800",
  "remoteBackendToken": "secret",
  "theme": "dark"
}`)

	settings, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, "100.64.0.2:4800", settings.RemoteBackendHost)
	assert.Equal(t, "secret", settings.RemoteBackendToken)

	_, err = LoadSettings(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseControllerFile(t *testing.T) {
	cfg, err := ParseControllerFile(`// daemonctl.kdl
listen "127.0.0.1:4800"
daemon-path "/opt/codex/codex-monitor-daemon"
log-level "debug"
`)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4800", cfg.Listen)
	assert.Equal(t, "/opt/codex/codex-monitor-daemon", cfg.DaemonPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadControllerFile_Missing(t *testing.T) {
	cfg, err := LoadControllerFile(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &ControllerFile{}, cfg)
}

func TestLoad(t *testing.T) {
	t.Run("defaults without any files", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(Overrides{DataDir: dir}, envOf(nil), quietLogger())
		require.NoError(t, err)
		assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
		assert.Equal(t, dir, cfg.DataDir)
		assert.Empty(t, cfg.Token)
	})

	t.Run("settings feed listen and token", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, SettingsFile, `{"remoteBackendHost":"box:4999","remoteBackendToken":"tok"}`)

		cfg, err := Load(Overrides{DataDir: dir}, envOf(nil), quietLogger())
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:4999", cfg.ListenAddr)
		assert.Equal(t, "tok", cfg.Token)
	})

	t.Run("environment beats settings token", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, SettingsFile, `{"remoteBackendToken":"tok"}`)

		cfg, err := Load(Overrides{DataDir: dir}, envOf(map[string]string{TokenEnvVar: "env-tok"}), quietLogger())
		require.NoError(t, err)
		assert.Equal(t, "env-tok", cfg.Token)
	})

	t.Run("insecure clears token", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(Overrides{DataDir: dir, Token: "tok", InsecureNoAuth: true}, envOf(nil), quietLogger())
		require.NoError(t, err)
		assert.True(t, cfg.InsecureNoAuth)
		assert.Empty(t, cfg.Token)
	})

	t.Run("controller file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ControllerConfigFile, "listen \"127.0.0.1:4100\"\nlog-level \"info\"\n")

		cfg, err := Load(Overrides{DataDir: dir}, envOf(nil), quietLogger())
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:4100", cfg.ListenAddr)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("malformed settings are ignored", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, SettingsFile, `{not json`)

		cfg, err := Load(Overrides{DataDir: dir}, envOf(nil), quietLogger())
		require.NoError(t, err)
		assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	})

	t.Run("invalid listen flag", func(t *testing.T) {
		_, err := Load(Overrides{DataDir: t.TempDir(), Listen: "nope"}, envOf(nil), quietLogger())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
	})
}

func TestDefaultDataDir(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want string
	}{
		{
			name: "darwin",
			goos: "darwin",
			env:  map[string]string{"HOME": "/Users/dev"},
			want: filepath.Join("/Users/dev", "Library", "Application Support", AppIdentifier),
		},
		{
			name: "linux xdg",
			goos: "linux",
			env:  map[string]string{"HOME": "/home/dev", "XDG_DATA_HOME": "/data"},
			want: filepath.Join("/data", AppIdentifier),
		},
		{
			name: "linux home",
			goos: "linux",
			env:  map[string]string{"HOME": "/home/dev"},
			want: filepath.Join("/home/dev", ".local", "share", AppIdentifier),
		},
		{
			name: "linux no home",
			goos: "linux",
			want: filepath.Join(".", ".local", "share", AppIdentifier),
		},
		{
			name: "windows appdata",
			goos: "windows",
			env:  map[string]string{"APPDATA": "C:/Users/dev/AppData/Roaming"},
			want: filepath.Join("C:/Users/dev/AppData/Roaming", AppIdentifier),
		},
		{
			name: "windows profile",
			goos: "windows",
			env:  map[string]string{"USERPROFILE": "C:/Users/dev"},
			want: filepath.Join("C:/Users/dev", "AppData", "Roaming", AppIdentifier),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultDataDir(tt.goos, envOf(tt.env)))
		})
	}
}

func TestResolveDaemonPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink canonicalization differs on windows")
	}
	dir := t.TempDir()
	binary := writeFile(t, dir, "codex-monitor-daemon", "#!/bin/sh\n")
	want, err := filepath.EvalSymlinks(binary)
	require.NoError(t, err)

	t.Run("explicit file", func(t *testing.T) {
		got, err := ResolveDaemonPath(binary, "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("symlink is canonicalized", func(t *testing.T) {
		link := filepath.Join(dir, "daemon-link")
		require.NoError(t, os.Symlink(binary, link))
		got, err := ResolveDaemonPath(link, "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("controller file path", func(t *testing.T) {
		got, err := ResolveDaemonPath("", binary)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("directory rejected", func(t *testing.T) {
		_, err := ResolveDaemonPath(dir, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Daemon binary path is not a file")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ResolveDaemonPath(filepath.Join(dir, "nope"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Failed to resolve --daemon-path")
		assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
	})
}
