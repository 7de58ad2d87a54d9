// Package services contains the business logic layer for the URL shortener application
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/internal/cache"
	apperrors "github.com/encurtaweb/encurtador/internal/errors"
	"github.com/encurtaweb/encurtador/internal/models"
	"github.com/encurtaweb/encurtador/internal/queue"
	"github.com/encurtaweb/encurtador/internal/repository"
)

// codeCharset defines the character set used for generating short codes:
// the 64 url-safe characters also accepted for custom aliases.
const codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// codeLength is the length of generated codes. 64^8 combinations; collisions
// are treated as negligible and, should one ever happen, the unique index on
// the code column refuses the insert.
const codeLength = 8

// codePattern is the character pattern every code and custom alias must match.
var codePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ClickEnqueuer enqueues one click persistence job per successful redirect.
type ClickEnqueuer interface {
	EnqueueSync(ctx context.Context, p queue.SyncClicksPayload) error
}

// LinkService provides the creation and resolution logic for short links.
// It decides what to read from the cache versus the store, enforces the
// business invariants, and produces the click persistence jobs.
type LinkService struct {
	linkRepo  repository.LinkRepository
	cache     *cache.LinkCache
	clicks    ClickEnqueuer
	forbidden []string // destination substrings refused at creation
	log       *zap.Logger
}

// NewLinkService creates and returns a new instance of LinkService.
func NewLinkService(linkRepo repository.LinkRepository, linkCache *cache.LinkCache, clicks ClickEnqueuer, forbidden []string, log *zap.Logger) *LinkService {
	return &LinkService{
		linkRepo:  linkRepo,
		cache:     linkCache,
		clicks:    clicks,
		forbidden: forbidden,
		log:       log,
	}
}

// CreateLinkInput carries the caller-supplied fields for link creation.
type CreateLinkInput struct {
	Destination string
	CustomAlias string
	Title       string
	ExpiresAt   *time.Time
	MaxClicks   *int64
	OwnerID     *uint
}

// CreateLink validates the input, assigns a code and persists the new link.
// Validation fails fast: the first broken rule wins. The cache is not
// touched on create; it is populated lazily on the first redirect.
func (s *LinkService) CreateLink(ctx context.Context, in CreateLinkInput) (*models.Link, error) {
	if !strings.HasPrefix(in.Destination, "http://") && !strings.HasPrefix(in.Destination, "https://") {
		return nil, apperrors.ErrInvalidDestination
	}

	for _, forbidden := range s.forbidden {
		if strings.Contains(in.Destination, forbidden) {
			return nil, apperrors.ErrForbiddenDestination
		}
	}

	if in.CustomAlias != "" {
		// The collision check intentionally runs before the character
		// check; clients depend on getting the "already taken" message
		// first when both rules are broken.
		_, err := s.linkRepo.FindByCode(in.CustomAlias)
		switch {
		case err == nil:
			return nil, apperrors.ErrAliasAlreadyExists
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to check alias availability: %w", err)
		}

		if !codePattern.MatchString(in.CustomAlias) {
			return nil, apperrors.ErrAliasInvalidCharacters
		}
	}

	if in.ExpiresAt != nil && !in.ExpiresAt.After(time.Now().UTC()) {
		return nil, apperrors.ErrExpirationInPast
	}

	code := in.CustomAlias
	if code == "" {
		generated, err := generateCode(codeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}
		code = generated
	}

	link := &models.Link{
		Code:        code,
		Destination: in.Destination,
		Title:       in.Title,
		ExpiresAt:   in.ExpiresAt,
		MaxClicks:   in.MaxClicks,
		OwnerID:     in.OwnerID,
	}
	if err := s.linkRepo.Create(link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	s.log.Info("Short link created", zap.String("code", link.Code), zap.Uint("id", link.ID))
	return link, nil
}

// Resolve looks up a code for redirection and accounts the click.
//
// Read path: snapshot from the cache, store on miss (populating the cache,
// fire-and-forget). The live click count comes from the cache counter; the
// durable clicks column is only a fallback when the counter is unset or
// unreadable. Expiration and quota are enforced before the increment, so
// with maxClicks = N the Nth redirect is the last one served.
func (s *LinkService) Resolve(ctx context.Context, code string) (*models.Link, error) {
	var link *models.Link
	var fromStore bool

	snap, err := s.cache.GetSnapshot(ctx, code)
	if err != nil {
		// Degraded cache: fall through to the store.
		s.log.Warn("Snapshot read failed, falling back to store", zap.String("code", code), zap.Error(err))
	}
	if snap != nil {
		link = snap.Link()
	} else {
		stored, err := s.linkRepo.FindByCode(code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrCodeNotFound
			}
			return nil, fmt.Errorf("failed to load link %q: %w", code, err)
		}
		link = stored
		fromStore = true

		// Populate the snapshot for the next reader. A cache write failure
		// must not fail the redirect.
		if err := s.cache.SetSnapshot(ctx, link.Snapshot()); err != nil {
			s.log.Warn("Snapshot write failed", zap.String("code", code), zap.Error(err))
		}
	}

	clicks, counted, err := s.cache.GetClicks(ctx, code)
	if err != nil {
		// Quota enforcement needs a count. Fall back to the last known
		// durable value instead of serving an unbounded redirect.
		s.log.Warn("Counter read failed, falling back to stored clicks", zap.String("code", code), zap.Error(err))
		if !fromStore {
			stored, serr := s.linkRepo.FindByCode(code)
			if serr != nil {
				return nil, fmt.Errorf("failed to load click count for %q: %w", code, serr)
			}
			link = stored
		}
		clicks = link.Clicks
	} else if !counted {
		// Counter not seeded yet: the durable count is authoritative. When
		// the link came from a cached snapshot this is zero, matching the
		// counter that the first post-snapshot redirect creates.
		clicks = link.Clicks
	}

	if link.ExpiresAt != nil && !time.Now().UTC().Before(*link.ExpiresAt) {
		return nil, apperrors.ErrLinkExpired
	}
	if link.MaxClicks != nil && clicks >= *link.MaxClicks {
		return nil, apperrors.ErrMaxClicksReached
	}

	updated, err := s.cache.IncrClicks(ctx, code)
	if err != nil {
		// The redirect survives a cache outage; the click is simply not
		// accounted. There is nothing meaningful to enqueue without an
		// incremented counter.
		s.log.Error("Click increment failed, serving redirect unaccounted", zap.String("code", code), zap.Error(err))
		link.Clicks = clicks
		return link, nil
	}
	link.Clicks = updated

	job := queue.SyncClicksPayload{Code: code, ID: link.ID, Clicks: updated}
	if err := s.clicks.EnqueueSync(ctx, job); err != nil {
		// Best effort: the counter already advanced, and the next
		// successful redirect's job re-derives the durable count from it,
		// so a lost job only delays convergence.
		s.log.Error("Failed to enqueue click sync", zap.String("code", code), zap.Error(err))
	}

	return link, nil
}

// generateCode generates a cryptographically secure random short code.
func generateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
