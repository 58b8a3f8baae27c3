package domain

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	sshBackoffBase = 500 * time.Millisecond
	sshBackoffCap  = 30 * time.Second
)

// SSHConfig carries connection parameters for one remote host. Exactly
// one of AuthAgent/PrivateKey/Password should be set; they are tried in
// that order.
type SSHConfig struct {
	Addr       string
	User       string
	AuthAgent  ssh.AuthMethod
	PrivateKey ssh.AuthMethod
	Password   string

	HostKeyCallback ssh.HostKeyCallback
}

// Stats tracks per-domain read/write totals (spec.md §4.7: "Read/write
// statistics are maintained per domain").
type Stats struct {
	BytesRead    uint64
	BytesWritten uint64
}

// SSH multiplexes every pane it spawns over a single ssh.Client
// connection, reconnecting with exponential backoff and jitter on drop.
type SSH struct {
	cfg SSHConfig

	mu                sync.Mutex
	client            *ssh.Client
	connected         bool
	reconnectAttempts int
	stats             Stats
	handles           []*sshHandle
	closed            bool
}

// NewSSH constructs an SSH domain. The connection is established lazily
// on the first Spawn call.
func NewSSH(cfg SSHConfig) *SSH {
	return &SSH{cfg: cfg}
}

func (s *SSH) Spawn(cfg Config) (Handle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()

	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	session, err := client.NewSession()
	if err != nil {
		s.markDisconnected()
		return nil, fmt.Errorf("open ssh session: %w", err)
	}
	if err := session.RequestPty("xterm-256color", cfg.Rows, cfg.Cols, ssh.TerminalModes{}); err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh pty-req: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh stdout pipe: %w", err)
	}
	shellCmd := cfg.Command
	if shellCmd == "" {
		shellCmd = "$SHELL"
	}
	if err := session.Start(shellCmd); err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh start shell: %w", err)
	}

	h := &sshHandle{dom: s, session: session, stdin: stdin, stdout: stdout}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

func (s *SSH) ensureConnected() error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var auth []ssh.AuthMethod
	for _, m := range []ssh.AuthMethod{s.cfg.AuthAgent, s.cfg.PrivateKey} {
		if m != nil {
			auth = append(auth, m)
		}
	}
	if s.cfg.Password != "" {
		auth = append(auth, ssh.Password(s.cfg.Password))
	}

	hostKeyCB := s.cfg.HostKeyCallback
	if hostKeyCB == nil {
		hostKeyCB = ssh.InsecureIgnoreHostKey()
	}

	client, err := ssh.Dial("tcp", s.cfg.Addr, &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCB,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("dial ssh %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *SSH) markDisconnected() {
	s.mu.Lock()
	s.connected = false
	attempt := s.reconnectAttempts
	s.mu.Unlock()
	go s.reconnectWithBackoff(attempt)
}

// reconnectWithBackoff waits base*2^attempt (capped), plus jitter, then
// retries the connection once. Spawn calls also trigger a connect
// attempt directly, so this is a best-effort background retry that lets
// a dormant domain recover before the next pane spawn needs it.
func (s *SSH) reconnectWithBackoff(attempt int) {
	delay := sshBackoffBase * time.Duration(1<<uint(attempt))
	if delay > sshBackoffCap {
		delay = sshBackoffCap
	}
	delay += time.Duration(rand.Int63n(int64(sshBackoffBase)))
	time.Sleep(delay)

	s.mu.Lock()
	if s.connected || s.closed {
		s.mu.Unlock()
		return
	}
	s.reconnectAttempts++
	s.mu.Unlock()

	s.ensureConnected()
}

func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, h := range s.handles {
		h.session.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

type sshHandle struct {
	dom     *SSH
	session *ssh.Session
	stdin   interface {
		Write([]byte) (int, error)
	}
	stdout interface {
		Read([]byte) (int, error)
	}
}

func (h *sshHandle) Read(p []byte) (int, error) {
	n, err := h.stdout.Read(p)
	if n > 0 {
		h.dom.mu.Lock()
		h.dom.stats.BytesRead += uint64(n)
		h.dom.mu.Unlock()
	}
	if err != nil {
		h.dom.markDisconnected()
	}
	return n, err
}

func (h *sshHandle) Write(p []byte) (int, error) {
	n, err := h.stdin.Write(p)
	if n > 0 {
		h.dom.mu.Lock()
		h.dom.stats.BytesWritten += uint64(n)
		h.dom.mu.Unlock()
	}
	if err != nil {
		h.dom.markDisconnected()
	}
	return n, err
}

func (h *sshHandle) Resize(cols, rows int) error {
	return h.session.WindowChange(rows, cols)
}

func (h *sshHandle) Close() error {
	return h.session.Close()
}

// Stats reports cumulative bytes moved over this domain's lifetime.
func (s *SSH) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ReconnectAttempts reports how many reconnect attempts this domain has
// made over its lifetime; the count is not reset on a successful connect.
func (s *SSH) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}

// Connected reports whether the underlying SSH connection is currently
// believed to be live.
func (s *SSH) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
