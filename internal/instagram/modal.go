// Package instagram holds the cross-posting flow: the post modal and the
// connection settings page.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/illegalcall/automark/internal/automark"
	"github.com/illegalcall/automark/internal/events"
	"github.com/illegalcall/automark/internal/metrics"
	"github.com/illegalcall/automark/internal/models"
)

type ModalState string

const (
	StateClosed         ModalState = "closed"
	StateCaptionLoading ModalState = "captionLoading"
	StateReady          ModalState = "ready"
	StatePosting        ModalState = "posting"
	StatePosted         ModalState = "posted"
)

// MaxCaptionLength is Instagram's caption limit in characters.
const MaxCaptionLength = 2200

const (
	MsgPostFailed      = "Failed to post to Instagram. Please check your connection."
	defaultProductName = "Product"
	defaultCloseDelay  = 2 * time.Second
)

var (
	ErrModalClosed        = errors.New("instagram modal is not open")
	ErrCaptionRequired    = errors.New("caption is required for feed posts")
	ErrCaptionTooLong     = fmt.Errorf("caption exceeds %d characters", MaxCaptionLength)
	ErrInvalidPostType    = errors.New("post type must be feed or story")
	ErrBusy               = errors.New("instagram modal is busy")
	ErrCaptionUnsupported = errors.New("stories do not carry a caption")
)

// PostDraft is the generated ad the modal was opened for.
type PostDraft struct {
	ImageURL    string `json:"image_url"`
	AdText      string `json:"ad_text"`
	ProductName string `json:"product_name"`
	Description string `json:"description"`
}

// PostBackend is the part of the remote client the modal needs.
type PostBackend interface {
	GenerateCaption(ctx context.Context, req automark.CaptionRequest) (string, error)
	PostToInstagram(ctx context.Context, req automark.PostRequest) (automark.PostResult, error)
}

type ModalSnapshot struct {
	State         ModalState        `json:"state"`
	PostType      automark.PostType `json:"post_type"`
	Caption       string            `json:"caption"`
	CaptionLength int               `json:"caption_length"`
	Draft         PostDraft         `json:"draft"`
	Error         string            `json:"error,omitempty"`
	Message       string            `json:"message,omitempty"`
	PostID        string            `json:"post_id,omitempty"`
}

// Modal is the post-to-Instagram dialog for one session.
type Modal struct {
	backend    PostBackend
	publisher  events.Publisher
	userID     string
	closeDelay time.Duration

	mu       sync.Mutex
	state    ModalState
	postType automark.PostType
	caption  string
	draft    PostDraft
	errMsg   string
	message  string
	postID   string
	epoch    uint64
	timer    *time.Timer
}

type ModalOption func(*Modal)

func WithCloseDelay(d time.Duration) ModalOption {
	return func(m *Modal) { m.closeDelay = d }
}

func WithModalPublisher(p events.Publisher) ModalOption {
	return func(m *Modal) { m.publisher = p }
}

func WithModalUserID(id string) ModalOption {
	return func(m *Modal) { m.userID = id }
}

func NewModal(backend PostBackend, opts ...ModalOption) *Modal {
	m := &Modal{
		backend:    backend,
		publisher:  events.Nop{},
		userID:     "default_user",
		closeDelay: defaultCloseDelay,
		state:      StateClosed,
		postType:   automark.PostTypeFeed,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FallbackCaption is used when caption generation fails.
func FallbackCaption(adText, productName string) string {
	return fmt.Sprintf("%s\n\n✨ %s\n\n#marketing #advertising", adText, productName)
}

// Open shows the modal for draft. For a feed post with ad text a caption is
// generated before Open returns; stories open ready with no caption call.
// The post type chosen last time is kept.
func (m *Modal) Open(ctx context.Context, draft PostDraft) (ModalSnapshot, error) {
	m.mu.Lock()
	if m.state == StatePosting || m.state == StateCaptionLoading {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, ErrBusy
	}
	m.stopTimerLocked()
	m.epoch++
	m.draft = draft
	m.errMsg = ""
	m.message = ""
	m.postID = ""
	m.state = StateReady
	generate := draft.AdText != "" && m.postType == automark.PostTypeFeed
	if generate {
		m.state = StateCaptionLoading
	}
	m.mu.Unlock()

	if generate {
		m.loadCaption(ctx)
	}
	return m.Snapshot(), nil
}

// RegenerateCaption asks the backend for a fresh feed caption.
func (m *Modal) RegenerateCaption(ctx context.Context) (ModalSnapshot, error) {
	m.mu.Lock()
	switch {
	case m.state == StateClosed:
		m.mu.Unlock()
		return m.Snapshot(), ErrModalClosed
	case m.state != StateReady:
		m.mu.Unlock()
		return m.Snapshot(), ErrBusy
	case m.postType != automark.PostTypeFeed:
		m.mu.Unlock()
		return m.Snapshot(), ErrCaptionUnsupported
	}
	m.state = StateCaptionLoading
	m.mu.Unlock()

	m.loadCaption(ctx)
	return m.Snapshot(), nil
}

func (m *Modal) loadCaption(ctx context.Context) {
	m.mu.Lock()
	epoch := m.epoch
	draft := m.draft
	m.mu.Unlock()

	caption, err := m.backend.GenerateCaption(ctx, automark.CaptionRequest{
		AdText:      draft.AdText,
		ProductName: draft.ProductName,
		Description: draft.Description,
	})
	if err != nil {
		slog.Warn("Caption generation failed, using fallback", "error", err)
		caption = FallbackCaption(draft.AdText, draft.ProductName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.state != StateCaptionLoading {
		return
	}
	m.caption = caption
	m.state = StateReady
}

func (m *Modal) SetPostType(pt automark.PostType) error {
	if !pt.Valid() {
		return ErrInvalidPostType
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePosting {
		return ErrBusy
	}
	m.postType = pt
	return nil
}

func (m *Modal) SetCaption(caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return ErrModalClosed
	}
	if m.state != StateReady {
		return ErrBusy
	}
	m.caption = caption
	return nil
}

// Post publishes the draft. On success the modal closes by itself after the
// close delay and the caption is cleared.
func (m *Modal) Post(ctx context.Context) (ModalSnapshot, error) {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return m.Snapshot(), ErrModalClosed
	case StateReady:
	default:
		m.mu.Unlock()
		return m.Snapshot(), ErrBusy
	}

	caption := ""
	if m.postType == automark.PostTypeFeed {
		if strings.TrimSpace(m.caption) == "" {
			m.mu.Unlock()
			return m.Snapshot(), ErrCaptionRequired
		}
		if utf8.RuneCountInString(m.caption) > MaxCaptionLength {
			m.mu.Unlock()
			return m.Snapshot(), ErrCaptionTooLong
		}
		caption = m.caption
	}

	productName := m.draft.ProductName
	if productName == "" {
		productName = defaultProductName
	}
	req := automark.PostRequest{
		UserID:      m.userID,
		ImageURL:    m.draft.ImageURL,
		AdText:      m.draft.AdText,
		ProductName: productName,
		Description: m.draft.Description,
		PostType:    m.postType,
		Caption:     caption,
	}
	epoch := m.epoch
	m.state = StatePosting
	m.errMsg = ""
	m.mu.Unlock()

	res, err := m.backend.PostToInstagram(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		metrics.InstagramPosts.WithLabelValues(string(req.PostType), "error").Inc()
		slog.Error("Instagram post failed", "post_type", req.PostType, "error", err)
		if m.epoch == epoch {
			m.state = StateReady
			m.errMsg = detailOr(err, MsgPostFailed)
		}
		return m.snapshotLocked(), err
	}

	metrics.InstagramPosts.WithLabelValues(string(req.PostType), "success").Inc()
	events.PublishAsync(m.publisher, models.Activity{
		Type:        models.ActivityInstagramPosted,
		ProductName: req.ProductName,
		PostType:    string(req.PostType),
	})
	if m.epoch != epoch {
		return m.snapshotLocked(), nil
	}
	m.state = StatePosted
	m.message = res.Message
	m.postID = res.PostID
	m.timer = time.AfterFunc(m.closeDelay, func() { m.autoClose(epoch) })
	return m.snapshotLocked(), nil
}

func (m *Modal) autoClose(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.state != StatePosted {
		return
	}
	m.state = StateClosed
	m.caption = ""
	m.message = ""
	m.postID = ""
	m.timer = nil
	m.epoch++
}

func (m *Modal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.state = StateClosed
	m.errMsg = ""
	m.message = ""
	m.epoch++
}

func (m *Modal) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Modal) Snapshot() ModalSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Modal) snapshotLocked() ModalSnapshot {
	return ModalSnapshot{
		State:         m.state,
		PostType:      m.postType,
		Caption:       m.caption,
		CaptionLength: utf8.RuneCountInString(m.caption),
		Draft:         m.draft,
		Error:         m.errMsg,
		Message:       m.message,
		PostID:        m.postID,
	}
}
