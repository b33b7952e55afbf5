package process

import (
	"strconv"
	"strings"
	"unicode"
)

// Parsers for the listing tools. Every parser compares the port of the
// local-address column exactly; a query for 4732 never matches 47320.

// portFromAddrToken parses the port after the last colon of an address
// column such as "0.0.0.0:4732", "[::]:4732" or "*:4732".
func portFromAddrToken(value string) (uint16, bool) {
	value = strings.TrimSpace(value)
	idx := strings.LastIndex(value, ":")
	if idx < 0 {
		return 0, false
	}
	port, err := strconv.ParseUint(value[idx+1:], 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(port), true
}

// parseSSListenerPID extracts the pid from `ss -ltnp` output:
//
//	LISTEN 0 4096 0.0.0.0:4732 0.0.0.0:* users:(("codex-monitor-da",pid=12345,fd=7))
func parseSSListenerPID(output string, port uint16) (uint32, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		columns := strings.Fields(line)
		if len(columns) < 4 {
			continue
		}
		if p, ok := portFromAddrToken(columns[3]); !ok || p != port {
			continue
		}
		tokens := strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || r == '(' || r == ')' || r == ','
		})
		for _, token := range tokens {
			value, found := strings.CutPrefix(token, "pid=")
			if !found {
				continue
			}
			if pid, err := strconv.ParseUint(value, 10, 32); err == nil {
				return uint32(pid), true
			}
		}
	}
	return 0, false
}

// parseNetstatListenerPID extracts the pid from Linux `netstat -ltnp` output:
//
//	tcp 0 0 0.0.0.0:4732 0.0.0.0:* LISTEN 6789/codex-monitor-da
func parseNetstatListenerPID(output string, port uint16) (uint32, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		columns := strings.Fields(line)
		if len(columns) < 4 {
			continue
		}
		if p, ok := portFromAddrToken(columns[3]); !ok || p != port {
			continue
		}
		for i := len(columns) - 1; i >= 0; i-- {
			if columns[i] == "-" {
				continue
			}
			pidPart, _, found := strings.Cut(columns[i], "/")
			if !found {
				continue
			}
			if pid, err := strconv.ParseUint(pidPart, 10, 32); err == nil {
				return uint32(pid), true
			}
		}
	}
	return 0, false
}

// parseWindowsNetstatListenerPID extracts the pid from `netstat -ano -p tcp`:
//
//	TCP    0.0.0.0:4732    0.0.0.0:0    LISTENING    6789
func parseWindowsNetstatListenerPID(output string, port uint16) (uint32, bool) {
	for _, line := range strings.Split(output, "\n") {
		columns := strings.Fields(line)
		if len(columns) < 5 || !strings.EqualFold(columns[0], "TCP") {
			continue
		}
		if !strings.EqualFold(columns[3], "LISTENING") {
			continue
		}
		if p, ok := portFromAddrToken(columns[1]); !ok || p != port {
			continue
		}
		if pid, err := strconv.ParseUint(columns[4], 10, 32); err == nil {
			return uint32(pid), true
		}
	}
	return 0, false
}

// parsePIDLines returns the first pid of newline-separated pid output, as
// printed by `lsof -t`.
func parsePIDLines(output string) (uint32, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pid, err := strconv.ParseUint(line, 10, 32); err == nil {
			return uint32(pid), true
		}
	}
	return 0, false
}
