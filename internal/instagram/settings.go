package instagram

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/illegalcall/automark/internal/automark"
)

const (
	MsgConnected        = "Instagram connected successfully!"
	MsgDisconnected     = "Instagram disconnected successfully!"
	MsgDisconnectFailed = "Failed to disconnect Instagram."
	MsgConnectFailed    = "Failed to initiate Instagram connection."
	MsgNotConfigured    = "Instagram credentials not configured. Please set up your .env file with INSTAGRAM_APP_ID and INSTAGRAM_APP_SECRET. See INSTAGRAM_SETUP.md for instructions."
)

const (
	MessageKindSuccess = "success"
	MessageKindError   = "error"
)

// ErrNotConfigured is returned by Connect when the backend lacks app
// credentials.
var ErrNotConfigured = errors.New("instagram app credentials are not configured")

// SettingsBackend is the part of the remote client the settings page needs.
type SettingsBackend interface {
	InstagramStatus(ctx context.Context, userID string) (automark.InstagramStatus, error)
	InstagramConfigStatus(ctx context.Context) (automark.ConfigStatus, error)
	InstagramAuthURL(ctx context.Context) (string, error)
	DisconnectInstagram(ctx context.Context, userID string) (automark.Ack, error)
}

// Message is a banner shown on the settings page.
type Message struct {
	Kind string `json:"type"`
	Text string `json:"text"`
}

type SettingsSnapshot struct {
	Status  automark.InstagramStatus `json:"status"`
	Config  *automark.ConfigStatus   `json:"config,omitempty"`
	Message *Message                 `json:"message,omitempty"`
}

// Settings tracks the Instagram connection for one user.
type Settings struct {
	backend SettingsBackend
	userID  string

	mu      sync.Mutex
	status  automark.InstagramStatus
	config  *automark.ConfigStatus
	message *Message
}

func NewSettings(backend SettingsBackend, userID string) *Settings {
	if userID == "" {
		userID = "default_user"
	}
	return &Settings{backend: backend, userID: userID}
}

// Refresh reloads the configuration and connection status. A failed status
// call counts as disconnected; a failed config call leaves the last known
// config in place.
func (s *Settings) Refresh(ctx context.Context) SettingsSnapshot {
	cfg, err := s.backend.InstagramConfigStatus(ctx)
	if err != nil {
		slog.Warn("Instagram config status check failed", "error", err)
	} else {
		s.mu.Lock()
		s.config = &cfg
		s.mu.Unlock()
	}
	s.refreshStatus(ctx)
	return s.Snapshot()
}

func (s *Settings) refreshStatus(ctx context.Context) {
	st, err := s.backend.InstagramStatus(ctx, s.userID)
	if err != nil {
		slog.Warn("Instagram status check failed", "error", err)
		st = automark.InstagramStatus{Connected: false}
	}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Connect returns the OAuth URL the user should be redirected to. The
// backend configuration is checked first.
func (s *Settings) Connect(ctx context.Context) (string, error) {
	cfg, err := s.backend.InstagramConfigStatus(ctx)
	if err != nil {
		s.setMessage(MessageKindError, detailOr(err, MsgConnectFailed))
		return "", err
	}
	s.mu.Lock()
	s.config = &cfg
	s.mu.Unlock()

	if !cfg.Configured() {
		text := cfg.Message
		if text == "" {
			text = MsgNotConfigured
		}
		s.setMessage(MessageKindError, text)
		return "", ErrNotConfigured
	}

	authURL, err := s.backend.InstagramAuthURL(ctx)
	if err != nil {
		s.setMessage(MessageKindError, detailOr(err, MsgConnectFailed))
		return "", err
	}
	return authURL, nil
}

func (s *Settings) Disconnect(ctx context.Context) error {
	if _, err := s.backend.DisconnectInstagram(ctx, s.userID); err != nil {
		slog.Error("Instagram disconnect failed", "error", err)
		s.setMessage(MessageKindError, MsgDisconnectFailed)
		return err
	}
	s.mu.Lock()
	s.status = automark.InstagramStatus{Connected: false}
	s.message = &Message{Kind: MessageKindSuccess, Text: MsgDisconnected}
	s.mu.Unlock()
	return nil
}

// HandleCallback interprets the query the OAuth flow redirects back with.
func (s *Settings) HandleCallback(ctx context.Context, query url.Values) SettingsSnapshot {
	if query.Get("connected") == "true" {
		s.setMessage(MessageKindSuccess, MsgConnected)
		s.refreshStatus(ctx)
	}
	if msg := query.Get("error"); msg != "" {
		s.setMessage(MessageKindError, msg)
	}
	return s.Snapshot()
}

func (s *Settings) setMessage(kind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = &Message{Kind: kind, Text: text}
}

func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SettingsSnapshot{Status: s.status}
	if s.config != nil {
		cfg := *s.config
		snap.Config = &cfg
	}
	if s.message != nil {
		msg := *s.message
		snap.Message = &msg
	}
	return snap
}

func detailOr(err error, fallback string) string {
	var remote *automark.RemoteError
	if errors.As(err, &remote) && remote.Detail != "" {
		return remote.Detail
	}
	return fallback
}
