package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/codexmonitor/daemonctl/internal/protocol"
)

// Identity is what a daemon reports about itself through daemon_info.
type Identity struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Mode       string `json:"mode"`
	PID        uint32 `json:"pid,omitempty"`        // 0 when not reported
	BinaryPath string `json:"binaryPath,omitempty"` // empty when not reported
}

// ParseIdentity decodes a daemon_info result. The name, version and mode
// fields are trimmed and must be non-empty. A pid that is not an unsigned
// 32-bit integer is ignored.
func ParseIdentity(result []byte) (*Identity, error) {
	dec := json.NewDecoder(bytes.NewReader(result))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, &protocol.ProtocolError{Err: fmt.Errorf("daemon_info result is not an object")}
	}

	id := &Identity{}
	var ok bool
	if id.Name, ok = trimmedString(fields, "name"); !ok {
		return nil, missingField("name")
	}
	if id.Version, ok = trimmedString(fields, "version"); !ok {
		return nil, missingField("version")
	}
	if id.Mode, ok = trimmedString(fields, "mode"); !ok {
		return nil, missingField("mode")
	}
	if num, isNum := fields["pid"].(json.Number); isNum {
		if pid, err := strconv.ParseUint(num.String(), 10, 32); err == nil {
			id.PID = uint32(pid)
		}
	}
	id.BinaryPath, _ = trimmedString(fields, "binaryPath")
	return id, nil
}

func trimmedString(fields map[string]any, key string) (string, bool) {
	value, ok := fields[key].(string)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func missingField(name string) error {
	return &protocol.ProtocolError{Err: fmt.Errorf("daemon_info missing `%s`", name)}
}
