package api

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtv4 "github.com/golang-jwt/jwt/v4"

	"github.com/illegalcall/automark/internal/generator"
	"github.com/illegalcall/automark/internal/instagram"
)

var errNoSession = errors.New("token carries no session")

// jwtLocalsKey is where jwtware leaves the parsed token.
const jwtLocalsKey = "user"

// session holds the view state of one logged-in client.
type session struct {
	generator *generator.View
	modal     *instagram.Modal
	lastSeen  time.Time
}

func (s *session) close() {
	s.generator.Close()
	s.modal.Close()
}

type sessions struct {
	mu      sync.Mutex
	m       map[string]*session
	maxIdle time.Duration
}

func newSessions(maxIdle time.Duration) *sessions {
	return &sessions{m: make(map[string]*session), maxIdle: maxIdle}
}

// get returns the session for id, creating it with create if absent.
func (r *sessions) get(id string, create func() *session) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	sess, ok := r.m[id]
	if !ok {
		r.evictLocked(now)
		sess = create()
		r.m[id] = sess
	}
	sess.lastSeen = now
	return sess
}

func (r *sessions) remove(id string) {
	r.mu.Lock()
	sess, ok := r.m[id]
	delete(r.m, id)
	r.mu.Unlock()
	if ok {
		sess.close()
	}
}

func (r *sessions) evictLocked(now time.Time) {
	if r.maxIdle <= 0 {
		return
	}
	for id, sess := range r.m {
		if now.Sub(sess.lastSeen) > r.maxIdle {
			sess.close()
			delete(r.m, id)
		}
	}
}

func (r *sessions) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.m {
		sess.close()
		delete(r.m, id)
	}
}

func (r *sessions) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// sessionID reads the sid claim of the token jwtware verified and stored in
// the request locals. jwtware v3 stores a golang-jwt v4 token.
func (s *Server) sessionID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals(jwtLocalsKey).(*jwtv4.Token)
	if !ok || token == nil {
		return "", errNoSession
	}
	claims, ok := token.Claims.(jwtv4.MapClaims)
	if !ok {
		return "", errNoSession
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", errNoSession
	}
	return sid, nil
}

func (s *Server) session(c *fiber.Ctx) (*session, error) {
	sid, err := s.sessionID(c)
	if err != nil {
		return nil, err
	}
	return s.sessions.get(sid, s.newSession), nil
}

func (s *Server) newSession() *session {
	userID := s.cfg.Backend.UserID
	return &session{
		generator: generator.New(s.backend, s.store,
			generator.WithStorage(s.storage),
			generator.WithPublisher(s.publisher),
			generator.WithUserID(userID),
		),
		modal: instagram.NewModal(s.backend,
			instagram.WithCloseDelay(s.cfg.Instagram.CloseDelay),
			instagram.WithModalPublisher(s.publisher),
			instagram.WithModalUserID(userID),
		),
	}
}

// withSession resolves the caller's session before running h.
func (s *Server) withSession(h func(c *fiber.Ctx, sess *session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.session(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid session",
			})
		}
		return h(c, sess)
	}
}
