// Package protocol implements the line-delimited JSON-RPC control channel
// spoken by the codex-monitor daemon.
//
// Every message is a single JSON object terminated by "\n". Requests carry a
// numeric id chosen by the client; responses echo it back:
//
//	{"id":1,"method":"ping","params":{}}
//	{"id":1,"result":{"ok":true}}
//	{"id":10,"error":{"message":"unauthorized"}}
package protocol

// Methods consumed by the controller.
const (
	MethodPing           = "ping"
	MethodAuth           = "auth"
	MethodDaemonInfo     = "daemon_info"
	MethodDaemonShutdown = "daemon_shutdown"
)

// Request is a single request line.
type Request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// AuthParams are the params of the auth method.
type AuthParams struct {
	Token string `json:"token"`
}

// EmptyParams serializes as {}.
type EmptyParams struct{}
