package mcpserver

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/todoservice"
)

// Session pairs one tool server with one transport for the lifetime of
// a single protocol request. No session outlives its request and no two
// requests share a session.
type Session struct {
	ID        string
	srv       *toolServer
	tr        *transport
	closeOnce sync.Once
}

// close tears down the transport and then the server. Both steps are
// attempted even if the first fails; failures are logged, never
// rethrown. Entered exactly once.
func (s *Session) close(logger *slog.Logger) {
	s.closeOnce.Do(func() {
		if err := s.tr.Close(); err != nil {
			logger.Warn("session: transport close failed",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()))
		}
		if err := s.srv.Close(); err != nil {
			logger.Warn("session: server close failed",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()))
		}
	})
}

// Manager owns the live-session registry and constructs one session per
// inbound protocol request. The registry lives on the Manager instance,
// never in package state.
type Manager struct {
	newServer func() *toolServer
	logger    *slog.Logger

	mu   sync.Mutex
	live map[string]*Session
}

// NewManager creates a session manager dispatching into svc's tools.
func NewManager(svc *todoservice.Service, logger *slog.Logger) *Manager {
	return &Manager{
		newServer: func() *toolServer { return newToolServer(svc) },
		logger:    logger,
		live:      make(map[string]*Session),
	}
}

// OpenSession constructs a fresh server instance with the full tool
// registry and a fresh transport. Pure construction, no I/O.
func (m *Manager) OpenSession() *Session {
	return &Session{
		ID:  uuid.New().String(),
		srv: m.newServer(),
		tr:  newTransport(m.logger),
	}
}

// ServeHTTP handles the /mcp endpoint: POST serves exactly one
// request/response exchange through a dedicated session; every other
// method gets a JSON-RPC "Method not allowed" body with HTTP 405.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	sess := m.OpenSession()
	m.track(sess)
	// The exchange ends when ServeHTTP unwinds, whether by response
	// completion, client disconnect, or panic. Teardown runs in all
	// three cases.
	defer m.release(sess)

	sess.tr.serve(w, r, sess.srv.handle)
}

// CloseAll force-closes every live session. Called on process shutdown
// so no transport handles leak past the listener.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.live))
	for _, s := range m.live {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.release(s)
	}
	if len(sessions) > 0 {
		m.logger.Info("session manager: force-closed live sessions", slog.Int("count", len(sessions)))
	}
}

// Live returns the number of sessions currently tracked.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) track(s *Session) {
	m.mu.Lock()
	m.live[s.ID] = s
	m.mu.Unlock()
}

// release closes the session and only then removes it from the live
// set, so shutdown never skips a session whose closes are in flight.
func (m *Manager) release(s *Session) {
	s.close(m.logger)
	m.mu.Lock()
	delete(m.live, s.ID)
	m.mu.Unlock()
}
