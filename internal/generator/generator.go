// Package generator implements the ad generator view: a per-session state
// machine that drives the backend client and records results in the profile
// store.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/illegalcall/automark/internal/automark"
	"github.com/illegalcall/automark/internal/events"
	"github.com/illegalcall/automark/internal/metrics"
	"github.com/illegalcall/automark/internal/models"
	"github.com/illegalcall/automark/internal/storage"
)

type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Messages shown to the user.
const (
	MsgGenerationFailed = "Something went wrong."
	MsgNoFileSelected   = "Please upload an image"
	MsgDownloadFailed   = "Failed to download image. Please try again."
)

var (
	ErrGenerationInFlight = errors.New("a generation is already in progress")
	ErrNoFileSelected     = errors.New(MsgNoFileSelected)
	ErrNoImage            = errors.New("no generated image to download")
	ErrClosed             = errors.New("generator view is closed")
	ErrInvalidMode        = errors.New("invalid generation mode")
)

// Backend is the part of the remote client the view needs.
type Backend interface {
	GenerateTextAd(ctx context.Context, req automark.AdRequest) (automark.TextAd, error)
	GenerateImageAd(ctx context.Context, req automark.AdRequest) (automark.ImageAd, error)
	EnhanceImage(ctx context.Context, req automark.AdRequest, up automark.Upload) (automark.ImageAd, error)
	InstagramStatus(ctx context.Context, userID string) (automark.InstagramStatus, error)
}

// AdStore records successful generations.
type AdStore interface {
	AddGeneratedAd(ctx context.Context, ad models.NewAd) (models.AdRecord, error)
}

// Output is what the last generation produced for the current mode.
type Output struct {
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	ImageText string `json:"image_text,omitempty"`
}

func (o Output) empty() bool {
	return o == Output{}
}

// Snapshot is a read-only copy of the view. Busy is set while a request is
// in flight, even one whose result the current mode will no longer show.
type Snapshot struct {
	Mode               models.AdType    `json:"mode"`
	State              State            `json:"state"`
	ProductName        string           `json:"product_name"`
	Description        string           `json:"description"`
	UploadName         string           `json:"upload_name,omitempty"`
	Output             Output           `json:"output"`
	Message            string           `json:"message,omitempty"`
	InstagramConnected bool             `json:"instagram_connected"`
	LastRecord         *models.AdRecord `json:"last_record,omitempty"`
	Busy               bool             `json:"busy"`
}

// Input is what one generate action submits. An empty Mode keeps the current
// mode; a nil Upload keeps the selected file.
type Input struct {
	Mode        models.AdType
	ProductName string
	Description string
	Upload      *automark.Upload
}

type View struct {
	backend   Backend
	store     AdStore
	files     storage.Storage
	publisher events.Publisher
	userID    string

	mu          sync.Mutex
	mode        models.AdType
	state       State
	productName string
	description string
	upload      *automark.Upload
	output      Output
	message     string
	lastRecord  *models.AdRecord
	igConnected bool
	inFlight    bool
	epoch       uint64
	closed      bool
}

type Option func(*View)

func WithStorage(s storage.Storage) Option {
	return func(v *View) { v.files = s }
}

func WithPublisher(p events.Publisher) Option {
	return func(v *View) { v.publisher = p }
}

func WithUserID(id string) Option {
	return func(v *View) { v.userID = id }
}

// New returns a view in text mode.
func New(backend Backend, store AdStore, opts ...Option) *View {
	v := &View{
		backend:   backend,
		store:     store,
		publisher: events.Nop{},
		userID:    "default_user",
		mode:      models.AdTypeText,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetMode switches the generation mode and clears every generated output,
// including a selected upload. A request still in flight will not update
// the view when it returns.
func (v *View) SetMode(mode models.AdType) error {
	if _, err := models.ParseAdType(string(mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.resetLocked(mode)
	return nil
}

func (v *View) resetLocked(mode models.AdType) {
	v.mode = mode
	v.output = Output{}
	v.upload = nil
	v.lastRecord = nil
	v.message = ""
	v.state = StateIdle
	if v.inFlight {
		v.state = StateGenerating
	}
	v.epoch++
}

func (v *View) SetFields(productName, description string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.productName = productName
	v.description = description
}

// SetUpload selects the image used in upload mode.
func (v *View) SetUpload(up automark.Upload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := up
	cp.Data = append([]byte(nil), up.Data...)
	v.upload = &cp
}

// Generate runs one generation for the current mode. On success exactly one
// AdRecord is stored. The returned snapshot reflects the view after the call.
func (v *View) Generate(ctx context.Context) (Snapshot, error) {
	return v.run(ctx, nil)
}

// Submit applies in and then generates. The in-flight check comes first, so
// a rejected call leaves the view untouched.
func (v *View) Submit(ctx context.Context, in Input) (Snapshot, error) {
	if in.Mode != "" {
		if _, err := models.ParseAdType(string(in.Mode)); err != nil {
			return v.Snapshot(), fmt.Errorf("%w: %v", ErrInvalidMode, err)
		}
	}
	return v.run(ctx, &in)
}

func (v *View) run(ctx context.Context, in *Input) (Snapshot, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if v.inFlight {
		snap := v.snapshotLocked()
		v.mu.Unlock()
		return snap, ErrGenerationInFlight
	}
	if in != nil {
		if in.Mode != "" && in.Mode != v.mode {
			v.resetLocked(in.Mode)
		}
		v.productName = in.ProductName
		v.description = in.Description
		if in.Upload != nil {
			cp := *in.Upload
			cp.Data = append([]byte(nil), in.Upload.Data...)
			v.upload = &cp
		}
	}
	if v.mode == models.AdTypeUpload && v.upload == nil {
		v.message = MsgNoFileSelected
		snap := v.snapshotLocked()
		v.mu.Unlock()
		return snap, ErrNoFileSelected
	}

	mode := v.mode
	epoch := v.epoch
	req := automark.AdRequest{ProductName: v.productName, Description: v.description}
	var up automark.Upload
	if v.upload != nil {
		up = *v.upload
	}
	v.inFlight = true
	v.state = StateGenerating
	v.message = ""
	v.mu.Unlock()

	start := time.Now()
	out, ad, err := v.call(ctx, mode, req, up)
	metrics.GenerationDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	if err == nil {
		v.mu.Lock()
		closed := v.closed
		v.mu.Unlock()
		if closed {
			v.finish(epoch, nil)
			slog.Info("Discarding generation result for closed view", "mode", mode)
			return Snapshot{}, ErrClosed
		}

		rec, storeErr := v.store.AddGeneratedAd(ctx, ad)
		if storeErr != nil {
			err = fmt.Errorf("failed to record generated ad: %w", storeErr)
		} else {
			metrics.AdsGenerated.WithLabelValues(string(mode)).Inc()
			events.PublishAsync(v.publisher, models.Activity{
				Type:        models.ActivityAdGenerated,
				AdID:        rec.ID,
				AdType:      string(rec.Type),
				ProductName: rec.ProductName,
			})
			return v.finish(epoch, func() {
				v.output = out
				v.lastRecord = &rec
				v.state = StateSuccess
			}), nil
		}
	}

	metrics.GenerationFailures.WithLabelValues(string(mode)).Inc()
	slog.Error("Ad generation failed", "mode", mode, "error", err)
	snap := v.finish(epoch, func() {
		v.state = StateError
		v.message = MsgGenerationFailed
	})
	return snap, err
}

// finish clears the in-flight flag and applies fn only if the view has not
// changed mode or closed since the request started.
func (v *View) finish(epoch uint64, fn func()) Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inFlight = false
	if v.closed {
		return Snapshot{}
	}
	if v.epoch != epoch {
		slog.Info("Generation result is stale, view not updated", "mode", v.mode)
		if v.state == StateGenerating {
			v.state = StateIdle
		}
		return v.snapshotLocked()
	}
	if fn != nil {
		fn()
	}
	return v.snapshotLocked()
}

func (v *View) call(ctx context.Context, mode models.AdType, req automark.AdRequest, up automark.Upload) (Output, models.NewAd, error) {
	ad := models.NewAd{Type: mode, ProductName: req.ProductName, Description: req.Description}

	switch mode {
	case models.AdTypeText:
		res, err := v.backend.GenerateTextAd(ctx, req)
		if err != nil {
			return Output{}, ad, err
		}
		ad.AdText = res.AdText
		return Output{Text: res.AdText}, ad, nil

	case models.AdTypeImage, models.AdTypeUpload:
		var (
			res automark.ImageAd
			err error
		)
		if mode == models.AdTypeImage {
			res, err = v.backend.GenerateImageAd(ctx, req)
		} else {
			res, err = v.backend.EnhanceImage(ctx, req, up)
		}
		if err != nil {
			return Output{}, ad, err
		}
		url := res.ImageURL
		ad.AdText = res.AdText
		ad.ImageURL = &url
		return Output{ImageURL: url, ImageText: res.AdText}, ad, nil
	}
	return Output{}, ad, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

// CheckInstagram refreshes whether cross-posting is offered. Any failure
// counts as not connected.
func (v *View) CheckInstagram(ctx context.Context) bool {
	v.mu.Lock()
	userID := v.userID
	v.mu.Unlock()

	connected := false
	st, err := v.backend.InstagramStatus(ctx, userID)
	if err != nil {
		slog.Warn("Instagram status check failed", "error", err)
	} else {
		connected = st.Connected
	}

	v.mu.Lock()
	v.igConnected = connected
	v.mu.Unlock()
	return connected
}

// Download saves the current generated image and returns its local path.
func (v *View) Download(ctx context.Context) (string, error) {
	v.mu.Lock()
	imageURL := v.output.ImageURL
	v.mu.Unlock()

	if strings.TrimSpace(imageURL) == "" {
		return "", ErrNoImage
	}
	if v.files == nil {
		return "", errors.New("image storage is not configured")
	}

	path, err := v.files.StoreFromURL(ctx, imageURL)
	if err != nil {
		slog.Error("Image download failed", "url", imageURL, "error", err)
		return "", fmt.Errorf("%s: %w", MsgDownloadFailed, err)
	}
	metrics.ImagesDownloaded.Inc()
	slog.Info("Image downloaded", "path", path)
	return path, nil
}

// Close ends the view. Results of requests still in flight are discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.epoch++
	v.upload = nil
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	s := Snapshot{
		Mode:               v.mode,
		State:              v.state,
		ProductName:        v.productName,
		Description:        v.description,
		Output:             v.output,
		Message:            v.message,
		InstagramConnected: v.igConnected,
		Busy:               v.inFlight,
	}
	if v.upload != nil {
		s.UploadName = v.upload.Filename
	}
	if v.lastRecord != nil {
		rec := models.CloneAds([]models.AdRecord{*v.lastRecord})[0]
		s.LastRecord = &rec
	}
	return s
}

// HasOutput reports whether the current mode shows a generated result.
func (s Snapshot) HasOutput() bool {
	return !s.Output.empty()
}
