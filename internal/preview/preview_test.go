package preview

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unquotePOSIX reverses Quote for the POSIX style. It only understands the
// single-quote form Quote produces.
func unquotePOSIX(t *testing.T, word string) string {
	t.Helper()
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(word); i++ {
		c := word[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case !inQuote && c == '"':
			end := strings.IndexByte(word[i+1:], '"')
			require.GreaterOrEqual(t, end, 0, "unterminated double quote in %q", word)
			b.WriteString(word[i+1 : i+1+end])
			i += end + 1
		default:
			require.True(t, inQuote, "bare character %q in %q", c, word)
			b.WriteByte(c)
		}
	}
	require.False(t, inQuote, "unterminated single quote in %q", word)
	return b.String()
}

func unquoteWindows(t *testing.T, word string) string {
	t.Helper()
	require.True(t, len(word) >= 2 && word[0] == '"' && word[len(word)-1] == '"', "not double quoted: %q", word)
	return strings.ReplaceAll(word[1:len(word)-1], `\"`, `"`)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		style Style
		want  string
	}{
		{"empty posix", "", POSIX, "''"},
		{"empty windows", "", Windows, "''"},
		{"plain posix", "--listen", POSIX, "'--listen'"},
		{"spaces posix", "/Users/me/Library/Application Support/x", POSIX, "'/Users/me/Library/Application Support/x'"},
		{"single quote posix", "it's", POSIX, `'it'"'"'s'`},
		{"plain windows", `C:\Program Files\daemon.exe`, Windows, `"C:\Program Files\daemon.exe"`},
		{"double quote windows", `say "hi"`, Windows, `"say \"hi\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in, tt.style))
		})
	}
}

func TestQuote_POSIXRoundTrip(t *testing.T) {
	for _, in := range []string{"a", "a b", "'", "''", "it's a 'test'", `"double"`, "$HOME", "a\nb"} {
		assert.Equal(t, in, unquotePOSIX(t, Quote(in, POSIX)), "round trip of %q", in)
	}
}

func TestQuote_WindowsRoundTrip(t *testing.T) {
	for _, in := range []string{"a", "a b", `"`, `say "hi"`, `C:\dir\`, `a\"b`, "it's"} {
		assert.Equal(t, in, unquoteWindows(t, Quote(in, Windows)), "round trip of %q", in)
	}
}

func TestBuild(t *testing.T) {
	t.Run("token", func(t *testing.T) {
		cmd := Build(Options{
			DaemonPath:      "/opt/codex monitor/codex-monitor-daemon",
			ListenAddr:      "0.0.0.0:4732",
			DataDir:         "/data",
			TokenConfigured: true,
			Style:           POSIX,
		})

		assert.Equal(t, []string{"--listen", "0.0.0.0:4732", "--data-dir", "/data", "--token", TokenPlaceholder}, cmd.Args)
		assert.Equal(t,
			"'/opt/codex monitor/codex-monitor-daemon' '--listen' '0.0.0.0:4732' '--data-dir' '/data' '--token' '<remote-backend-token>'",
			cmd.Command)
		assert.True(t, cmd.TokenConfigured)
	})

	t.Run("insecure", func(t *testing.T) {
		cmd := Build(Options{
			DaemonPath:     `C:\codex\codex-monitor-daemon.exe`,
			ListenAddr:     "127.0.0.1:4732",
			DataDir:        `C:\data`,
			InsecureNoAuth: true,
			Style:          Windows,
		})

		assert.Equal(t, []string{"--listen", "127.0.0.1:4732", "--data-dir", `C:\data`, "--insecure-no-auth"}, cmd.Args)
		assert.Equal(t, `"C:\codex\codex-monitor-daemon.exe" "--listen" "127.0.0.1:4732" "--data-dir" "C:\data" "--insecure-no-auth"`, cmd.Command)
		assert.False(t, cmd.TokenConfigured)
	})
}

func TestCommand_JSON(t *testing.T) {
	cmd := Build(Options{DaemonPath: "/bin/d", ListenAddr: "127.0.0.1:1", DataDir: "/d", Style: POSIX})
	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.ElementsMatch(t, []string{"command", "daemonPath", "args", "tokenConfigured"}, keys(fields))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
