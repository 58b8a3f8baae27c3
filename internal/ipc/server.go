package ipc

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"scarabd/internal/pane"
	"scarabd/internal/session"
	"scarabd/internal/sessionmgr"
	"scarabd/internal/socketdir"
	"scarabd/internal/tab"
)

func paneIDFromWire(id uint64) pane.ID { return pane.ID(id) }

// DefaultSessionName is used when a client's first message carries no
// explicit SessionName.
const DefaultSessionName = "default"

// CommandDispatcher forwards opaque CommandSelected messages to whatever
// is listening for them (the plugin dispatcher once one is registered).
// A nil dispatcher makes CommandSelected a no-op.
type CommandDispatcher interface {
	DispatchCommand(clientID, commandID string)
}

// Server accepts IPC connections on one Unix-domain socket and routes
// ControlMessages between clients and the session manager.
type Server struct {
	mgr        *sessionmgr.Manager
	defaultCfg sessionmgr.DefaultConfig
	dispatcher CommandDispatcher

	sockPath string
	ln       net.Listener

	mu      sync.Mutex
	clients map[string]*clientConn
}

// NewServer builds a server bound to mgr; defaultCfg seeds any session
// created on demand (including the implicit "default" session).
func NewServer(mgr *sessionmgr.Manager, defaultCfg sessionmgr.DefaultConfig) *Server {
	return &Server{
		mgr:        mgr,
		defaultCfg: defaultCfg,
		clients:    make(map[string]*clientConn),
	}
}

// SetCommandDispatcher registers the plugin dispatcher (or any other
// CommandDispatcher) to receive CommandSelected messages.
func (s *Server) SetCommandDispatcher(d CommandDispatcher) { s.dispatcher = d }

// Listen probes sockPath for a stale or live socket, then binds it,
// following the teacher's socketdir.ProbeSocket + net.Listen("unix", ...)
// pattern (bridgeservice.Service.Run).
func (s *Server) Listen(sockPath string) error {
	if err := socketdir.ProbeSocket(sockPath, "scarab-daemon IPC socket"); err != nil {
		return err
	}
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", sockPath, err)
	}
	s.sockPath = sockPath
	s.ln = ln
	return nil
}

// Serve accepts connections until the listener is closed (by Close).
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ipc: accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	os.Remove(s.sockPath)
	return err
}

// clientConn tracks one accepted connection's binding and outbound queue.
type clientConn struct {
	id    string
	conn  net.Conn
	queue *outboundQueue

	mu        sync.Mutex
	sessionID session.ID
	bound     bool
	markers   *markerWatcher
}

func (s *Server) handleConn(conn net.Conn) {
	c := &clientConn{
		id:    uuid.New().String(),
		conn:  conn,
		queue: newOutboundQueue(),
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	writerDone := make(chan struct{})
	go s.writeLoop(c, writerDone)

	defer func() {
		conn.Close()
		c.queue.Close()
		<-writerDone
		c.stopMarkerWatcher()
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		s.detachClient(c)
	}()

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			return
		}
		s.dispatch(c, msg)
	}
}

// writeLoop drains c's outbound queue and frames each message onto the
// connection, waking on Notify rather than polling.
func (s *Server) writeLoop(c *clientConn, done chan struct{}) {
	defer close(done)
	for range c.queue.Notify() {
		for _, msg := range c.queue.Drain() {
			if err := WriteMessage(c.conn, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) detachClient(c *clientConn) {
	c.mu.Lock()
	sessionID, bound := c.sessionID, c.bound
	c.mu.Unlock()
	if !bound {
		return
	}
	if sess, err := s.mgr.Get(sessionID); err == nil {
		sess.Detach(c.id)
	}
}

// ensureBound resolves the session a client's message applies to,
// binding the connection permanently to the first session it resolves
// to (spec.md §4.6, "on the first Input or on explicit attach, it is
// bound to the default (or named) session").
func (s *Server) ensureBound(c *clientConn, msg ControlMessage) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound {
		sess, err := s.mgr.Get(c.sessionID)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	name := msg.SessionName
	if name == "" {
		name = DefaultSessionName
	}
	sess, err := s.mgr.GetOrCreateByName(name, s.defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("ipc: bind session %q: %w", name, err)
	}
	sess.Attach(c.id)
	c.sessionID = sess.ID
	c.bound = true
	c.startMarkerWatcher(sess)
	return sess, nil
}

func (s *Server) dispatch(c *clientConn, msg ControlMessage) {
	sess, err := s.ensureBound(c, msg)
	if err != nil {
		c.queue.Push(ControlMessage{Kind: KindError, ErrorText: err.Error()})
		return
	}

	switch msg.Kind {
	case KindInput:
		pane, err := sess.ActivePane()
		if err != nil {
			c.queue.Push(errMsg(err))
			return
		}
		if err := pane.Write(msg.Data); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindResize:
		t, err := sess.ActiveTab()
		if err != nil {
			c.queue.Push(errMsg(err))
			return
		}
		if err := t.Resize(msg.Cols, msg.Rows); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindTabCreate:
		if _, err := sess.CreateTab(msg.Title); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindTabClose:
		if err := sess.CloseTab(msg.TabID); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindTabSwitch:
		if err := sess.SwitchTab(msg.TabID); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindPaneSplit:
		t, err := sess.ActiveTab()
		if err != nil {
			c.queue.Push(errMsg(err))
			return
		}
		dir := tab.Horizontal
		if msg.Direction == "vertical" {
			dir = tab.Vertical
		}
		if _, err := t.SplitActive(dir); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindPaneClose:
		t, err := sess.ActiveTab()
		if err != nil {
			c.queue.Push(errMsg(err))
			return
		}
		if err := t.ClosePane(paneIDFromWire(msg.PaneID)); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindPaneFocus:
		t, err := sess.ActiveTab()
		if err != nil {
			c.queue.Push(errMsg(err))
			return
		}
		if err := t.Focus(paneIDFromWire(msg.PaneID)); err != nil {
			c.queue.Push(errMsg(err))
		}

	case KindCommandSelected:
		if s.dispatcher != nil {
			s.dispatcher.DispatchCommand(c.id, msg.CommandID)
		}

	default:
		log.Printf("ipc: client %s sent unhandled message kind %d", c.id, msg.Kind)
	}
}

func errMsg(err error) ControlMessage {
	return ControlMessage{Kind: KindError, ErrorText: err.Error()}
}
