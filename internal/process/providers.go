package process

import (
	"context"
	"os/exec"
	"strconv"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// toolTimeout bounds a single listing tool invocation.
const toolTimeout = 2 * time.Second

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

// commandProvider runs an OS listing tool and parses its output.
type commandProvider struct {
	name  string
	args  func(port uint16) []string
	parse func(output string, port uint16) (uint32, bool)
	run   runFunc
}

func (p *commandProvider) Name() string { return p.name }

func (p *commandProvider) ListenerPID(ctx context.Context, port uint16) (uint32, bool) {
	run := p.run
	if run == nil {
		run = runTool
	}
	output, err := run(ctx, p.name, p.args(port)...)
	if err != nil {
		// Missing tool, non-zero exit (lsof exits 1 on no match) or timeout.
		return 0, false
	}
	return p.parse(string(output), port)
}

// LsofProvider asks lsof for the pid listening on the port.
func LsofProvider() Provider {
	return &commandProvider{
		name: "lsof",
		args: func(port uint16) []string {
			return []string{"-nP", "-iTCP:" + strconv.Itoa(int(port)), "-sTCP:LISTEN", "-t"}
		},
		parse: func(output string, _ uint16) (uint32, bool) { return parsePIDLines(output) },
	}
}

// SSProvider parses `ss -ltnp` (Linux).
func SSProvider() Provider {
	return &commandProvider{
		name:  "ss",
		args:  func(uint16) []string { return []string{"-ltnp"} },
		parse: parseSSListenerPID,
	}
}

// NetstatProvider parses Linux `netstat -ltnp`.
func NetstatProvider() Provider {
	return &commandProvider{
		name:  "netstat",
		args:  func(uint16) []string { return []string{"-ltnp"} },
		parse: parseNetstatListenerPID,
	}
}

// WindowsNetstatProvider parses `netstat -ano -p tcp`.
func WindowsNetstatProvider() Provider {
	return &commandProvider{
		name:  "netstat",
		args:  func(uint16) []string { return []string{"-ano", "-p", "tcp"} },
		parse: parseWindowsNetstatListenerPID,
	}
}

// SocketTableProvider reads the kernel socket table in-process.
type SocketTableProvider struct {
	connections func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)
}

// NewSocketTableProvider creates a provider backed by gopsutil.
func NewSocketTableProvider() *SocketTableProvider {
	return &SocketTableProvider{connections: psnet.ConnectionsWithContext}
}

func (p *SocketTableProvider) Name() string { return "sockets" }

func (p *SocketTableProvider) ListenerPID(ctx context.Context, port uint16) (uint32, bool) {
	conns, err := p.connections(ctx, "tcp")
	if err != nil {
		return 0, false
	}
	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(port) {
			continue
		}
		// Sockets owned by other users report pid 0 without privileges.
		if conn.Pid > 0 {
			return uint32(conn.Pid), true
		}
	}
	return 0, false
}
