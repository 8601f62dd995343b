package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/domain/hygiene"
	"hygienefix/internal/errs"
	"hygienefix/internal/ports"
)

// Service answers the consumer-facing lookup paths from the store the
// pipeline keeps fresh: search, single-establishment lookup, rating-tier
// counts, and the subscriber list. The subscriber list lives in the same
// store as everything else; the process may be restarted or scaled at any
// time.
type Service struct {
	repo  ports.RatingsRepository
	cache ports.Cache
}

func NewService(repo ports.RatingsRepository, cache ports.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

const (
	SearchTypeName     = "name"
	SearchTypePostcode = "postcode"

	ratingCountsCacheKey = "rating_counts"
	ratingCountsCacheTTL = 24 * time.Hour
)

var (
	ErrQueryTooShort = errors.New("search query must be at least 2 characters")
	ErrInvalidEmail  = errors.New("valid email required")
)

type SearchInput struct {
	Query          string
	Type           string
	LocalAuthority string
	MaxRating      *int
	Page           int
	PageSize       int
}

func (s *Service) Search(ctx context.Context, in SearchInput) ([]ports.Establishment, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	query := strings.TrimSpace(in.Query)
	if len(query) < 2 {
		return nil, ErrQueryTooShort
	}

	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := in.Page
	if page <= 0 {
		page = 1
	}

	filter := ports.EstablishmentFilter{
		LocalAuthority: in.LocalAuthority,
		MaxRating:      in.MaxRating,
		Limit:          pageSize,
		Offset:         (page - 1) * pageSize,
	}

	if in.Type == SearchTypePostcode {
		filter.Postcode = formatPostcode(query)
	} else {
		filter.NameContains = query
	}

	rows, err := s.repo.SearchEstablishments(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "search establishments")
	}
	return rows, nil
}

// Lookup is one establishment plus the jurisdiction rules that apply to
// it (scheme, mandatory display, reinspection rights).
type Lookup struct {
	Establishment ports.Establishment
	Jurisdiction  hygiene.JurisdictionInfo
}

func (s *Service) Lookup(ctx context.Context, fhrsid int64) (Lookup, error) {
	if ctx == nil {
		return Lookup{}, errors.New("context is required")
	}
	if fhrsid <= 0 {
		return Lookup{}, fmt.Errorf("invalid FHRSID %d", fhrsid)
	}

	est, err := s.repo.GetEstablishment(ctx, fhrsid)
	if err != nil {
		return Lookup{}, err
	}

	return Lookup{
		Establishment: est,
		Jurisdiction:  hygiene.DetectJurisdiction(est.SchemeType, est.LocalAuthorityName),
	}, nil
}

// RatingCounts returns stored establishment counts per rating value,
// cached for a day; the distribution moves at the pace of the daily run.
func (s *Service) RatingCounts(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	if s.cache != nil {
		if cached, found, err := s.cache.Get(ctx, ratingCountsCacheKey); err == nil && found {
			var counts map[string]int64
			if err := json.Unmarshal([]byte(cached), &counts); err == nil {
				return counts, nil
			}
		}
	}

	counts, err := s.repo.CountEstablishmentsByRating(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "count establishments by rating")
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(counts); err == nil {
			if err := s.cache.Set(ctx, ratingCountsCacheKey, string(encoded), ratingCountsCacheTTL); err != nil {
				logging.Warn(ctx, "rating counts cache write failed", slog.String("err", err.Error()))
			}
		}
	}

	return counts, nil
}

type SubscribeInput struct {
	Email        string
	FHRSID       *int64
	BusinessName string
	Source       string
}

func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "website"
	}

	if err := s.repo.UpsertSubscriber(ctx, ports.Subscriber{
		Email:        email,
		FHRSID:       in.FHRSID,
		BusinessName: strings.TrimSpace(in.BusinessName),
		Source:       source,
	}); err != nil {
		return errs.Wrap(err, "subscribe")
	}
	return nil
}

func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	if err := s.repo.SetSubscriberStatus(ctx, email, "unsubscribed"); err != nil {
		return errs.Wrap(err, "unsubscribe")
	}
	return nil
}

// formatPostcode uppercases and re-inserts the space before the inward
// code so "ec1a1bb" matches stored "EC1A 1BB" prefixes.
func formatPostcode(raw string) string {
	clean := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	if len(clean) > 3 {
		return clean[:len(clean)-3] + " " + clean[len(clean)-3:]
	}
	return clean
}
