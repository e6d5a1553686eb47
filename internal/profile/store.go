// Package profile owns the persisted user profile and its ad history.
//
// Every mutation is written through to the KV before the call returns. If the
// write fails the in-memory profile is left untouched, so memory never gets
// ahead of storage.
package profile

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/illegalcall/automark/internal/models"
)

// DefaultKey is the storage key used by the original web client.
const DefaultKey = "automark_user"

const timestampLayout = "2006-01-02T15:04:05.000Z"

var ErrInvalidProfile = errors.New("invalid profile update")

// Store is the single source of truth for the profile.
type Store struct {
	kv      KV
	key     string
	now     func() time.Time
	entropy io.Reader

	mu      sync.Mutex
	profile models.Profile
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, used for record ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open builds a store over kv and loads the profile stored under key. A
// missing or unreadable value yields the default profile.
func Open(ctx context.Context, kv KV, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		kv:      kv,
		key:     key,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.profile = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) models.Profile {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Failed to read stored profile, using defaults", "key", s.key, "error", err)
		}
		return models.DefaultProfile()
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.DefaultProfile()
	}

	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("Stored profile is malformed, using defaults", "key", s.key, "error", err)
		return models.DefaultProfile()
	}
	if p.GeneratedAds == nil {
		p.GeneratedAds = []models.AdRecord{}
	}
	if p.AdsGenerated < 0 {
		p.AdsGenerated = 0
	}
	return p
}

func (s *Store) save(ctx context.Context, p models.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, b); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the profile, persists it and only then
// makes it current.
func (s *Store) mutate(ctx context.Context, fn func(p *models.Profile) error) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.profile.Clone()
	if err := fn(&next); err != nil {
		return s.profile.Clone(), err
	}
	if err := s.save(ctx, next); err != nil {
		return s.profile.Clone(), err
	}
	s.profile = next
	return next.Clone(), nil
}

// Profile returns a snapshot of the current profile.
func (s *Store) Profile() models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// Ads returns a snapshot of the stored records, newest first.
func (s *Store) Ads() []models.AdRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAds(s.profile.GeneratedAds)
}

// Ad looks up a single record.
func (s *Store) Ad(id string) (models.AdRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ad := range s.profile.GeneratedAds {
		if ad.ID == id {
			return models.CloneAds([]models.AdRecord{ad})[0], true
		}
	}
	return models.AdRecord{}, false
}

// Update shallow-merges the non-nil fields of u.
func (s *Store) Update(ctx context.Context, u models.ProfileUpdate) (models.Profile, error) {
	return s.mutate(ctx, func(p *models.Profile) error {
		if u.Plan != nil && !u.Plan.Valid() {
			return fmt.Errorf("%w: unknown plan %q", ErrInvalidProfile, *u.Plan)
		}
		if u.AdsGenerated != nil && *u.AdsGenerated < 0 {
			return fmt.Errorf("%w: adsGenerated must be non-negative", ErrInvalidProfile)
		}
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.Email != nil {
			p.Email = *u.Email
		}
		if u.Avatar != nil {
			p.Avatar = *u.Avatar
		}
		if u.JoinDate != nil {
			p.JoinDate = *u.JoinDate
		}
		if u.Plan != nil {
			p.Plan = *u.Plan
		}
		if u.AdsGenerated != nil {
			p.AdsGenerated = *u.AdsGenerated
		}
		if u.GeneratedAds != nil {
			p.GeneratedAds = models.CloneAds(*u.GeneratedAds)
		}
		return nil
	})
}

// IncrementAdsGenerated bumps the lifetime counter without adding a record.
func (s *Store) IncrementAdsGenerated(ctx context.Context) (models.Profile, error) {
	return s.mutate(ctx, func(p *models.Profile) error {
		p.AdsGenerated++
		return nil
	})
}

// AddGeneratedAd stores a new record at the head of the history and counts it.
func (s *Store) AddGeneratedAd(ctx context.Context, ad models.NewAd) (models.AdRecord, error) {
	var rec models.AdRecord
	_, err := s.mutate(ctx, func(p *models.Profile) error {
		now := s.now()
		id, err := ulid.New(ulid.Timestamp(now), s.entropy)
		if err != nil {
			return fmt.Errorf("failed to generate ad id: %w", err)
		}
		rec = models.AdRecord{
			ID:          id.String(),
			Timestamp:   now.UTC().Format(timestampLayout),
			Type:        ad.Type,
			ProductName: ad.ProductName,
			Description: ad.Description,
			AdText:      ad.AdText,
		}
		if ad.ImageURL != nil {
			u := *ad.ImageURL
			rec.ImageURL = &u
		}
		p.GeneratedAds = append([]models.AdRecord{rec}, p.GeneratedAds...)
		p.AdsGenerated++
		return nil
	})
	if err != nil {
		return models.AdRecord{}, err
	}
	return rec, nil
}

// DeleteGeneratedAd removes the record with the given id. The counter is not
// touched. It reports whether a record was removed; an unknown id is a no-op.
func (s *Store) DeleteGeneratedAd(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	found := false
	for _, ad := range s.profile.GeneratedAds {
		if ad.ID == id {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return false, nil
	}

	removed := false
	_, err := s.mutate(ctx, func(p *models.Profile) error {
		kept := p.GeneratedAds[:0]
		for _, ad := range p.GeneratedAds {
			if ad.ID == id {
				removed = true
				continue
			}
			kept = append(kept, ad)
		}
		p.GeneratedAds = kept
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ResetProfile restores the identity fields to their defaults and keeps the
// counter and history.
func (s *Store) ResetProfile(ctx context.Context) (models.Profile, error) {
	return s.mutate(ctx, func(p *models.Profile) error {
		d := models.DefaultProfile()
		p.Name = d.Name
		p.Email = d.Email
		p.Avatar = d.Avatar
		p.JoinDate = d.JoinDate
		p.Plan = d.Plan
		return nil
	})
}
