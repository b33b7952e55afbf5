// Package daemontest provides an in-process daemon speaking the control
// protocol, for tests of code that probes and stops daemons.
package daemontest

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"testing"
)

// Config controls how a Server answers.
type Config struct {
	// Token, when set, is required through auth before any other method.
	Token string
	// Info is returned by daemon_info. A nil Info makes daemon_info fail.
	Info map[string]any
	// IgnoreShutdown acknowledges daemon_shutdown but keeps serving.
	IgnoreShutdown bool
	// RejectShutdown answers daemon_shutdown with an error.
	RejectShutdown bool
}

// Server is a fake daemon listening on a loopback TCP port.
type Server struct {
	cfg Config
	ln  net.Listener

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	methods   []string
	shutdowns int
	closed    bool

	wg sync.WaitGroup
}

// Start starts a Server on addr ("" picks a free loopback port) and closes
// it when the test ends.
func Start(t testing.TB, addr string, cfg Config) *Server {
	t.Helper()
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("daemontest: listen %s: %v", addr, err)
	}
	s := &Server{cfg: cfg, ln: ln, conns: make(map[net.Conn]struct{})}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Methods returns the methods received so far, in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

// Shutdowns returns how many daemon_shutdown requests were acknowledged.
func (s *Server) Shutdowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdowns
}

// Close stops listening and drops every connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ln.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	authed := s.cfg.Token == ""
	reader := bufio.NewReader(conn)
	enc := json.NewEncoder(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			return
		}
		s.mu.Lock()
		s.methods = append(s.methods, req.Method)
		s.mu.Unlock()

		reply := func(result any) { enc.Encode(map[string]any{"id": req.ID, "result": result}) }
		fail := func(message string) {
			enc.Encode(map[string]any{"id": req.ID, "error": map[string]any{"message": message}})
		}

		if req.Method == "auth" {
			var params struct {
				Token string `json:"token"`
			}
			json.Unmarshal(req.Params, &params)
			if s.cfg.Token != "" && params.Token != s.cfg.Token {
				fail("invalid token")
				continue
			}
			authed = true
			reply(map[string]any{"ok": true})
			continue
		}
		if !authed {
			fail("unauthorized")
			continue
		}

		switch req.Method {
		case "ping":
			reply(map[string]any{"ok": true})
		case "daemon_info":
			if s.cfg.Info == nil {
				fail("unknown method: daemon_info")
				continue
			}
			reply(s.cfg.Info)
		case "daemon_shutdown":
			if s.cfg.RejectShutdown {
				fail("shutdown not allowed")
				continue
			}
			s.mu.Lock()
			s.shutdowns++
			s.mu.Unlock()
			reply(map[string]any{"ok": true})
			if !s.cfg.IgnoreShutdown {
				go s.Close()
				return
			}
		default:
			fail("unknown method: " + req.Method)
		}
	}
}

// StartSilent listens on a loopback port, accepts connections and never
// answers, like a service that does not speak the protocol.
func StartSilent(t testing.TB) net.Listener {
	t.Helper()
	return startRaw(t, nil)
}

// StartPlainText listens on a loopback port and answers every request line
// with reply followed by a newline, like a text service whose banner or
// error happens to contain auth vocabulary.
func StartPlainText(t testing.TB, reply string) net.Listener {
	t.Helper()
	return startRaw(t, func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		for {
			if _, err := reader.ReadBytes('\n'); err != nil {
				return
			}
			if _, err := conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}
	})
}

// startRaw accepts connections and hands each to handle. A nil handle
// leaves connections open and unanswered.
func startRaw(t testing.TB, handle func(net.Conn)) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("daemontest: listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
			if handle != nil {
				go handle(conn)
			}
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, conn := range conns {
			conn.Close()
		}
		mu.Unlock()
	})
	return ln
}

// Info builds a daemon_info result.
func Info(name, version, mode string, pid uint32) map[string]any {
	info := map[string]any{"name": name, "version": version, "mode": mode}
	if pid != 0 {
		info["pid"] = pid
	}
	return info
}
