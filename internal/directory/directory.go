package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
)

var (
	ErrInvalidReview   = errors.New("invalid review")
	ErrEmptyComment    = errors.New("review comment is empty")
	ErrNotClient       = errors.New("only clients can review providers")
	ErrAlreadyReviewed = errors.New("provider already reviewed by this client")
	ErrInvalidSort     = errors.New("invalid sort order, use asc or desc")

	log = logger.New("directory")
)

// SortOrder orders search results by average rating
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder accepts "", "asc" and "desc"
func ParseSortOrder(s string) (SortOrder, error) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case SortNone, SortAsc, SortDesc:
		return order, nil
	}
	return SortNone, fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

const defaultClientName = "Cliente"

// Store is the part of the backend holding providers and reviews
type Store interface {
	ListProviders(ctx context.Context) ([]models.Provider, error)
	ProviderRating(ctx context.Context, providerID string) (float64, int, error)
	ListReviews(ctx context.Context, providerID string, limit int) ([]models.Review, error)
	InsertReview(ctx context.Context, review *models.Review) error
}

// Service answers the provider search and the review pages
type Service struct {
	store    Store
	validate *validator.Validate
}

func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// Search lists providers whose display name, services or city contain the
// query (case-insensitive), optionally ordered by rating. Without an order
// the backend order is kept.
func (s *Service) Search(ctx context.Context, query string, order SortOrder) ([]models.Provider, error) {
	providers, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}

	providers = Filter(providers, query)
	switch order {
	case SortAsc:
		sort.SliceStable(providers, func(i, j int) bool { return providers[i].Rating < providers[j].Rating })
	case SortDesc:
		sort.SliceStable(providers, func(i, j int) bool { return providers[i].Rating > providers[j].Rating })
	}
	return providers, nil
}

// Filter keeps the providers matching query. An empty query keeps all.
func Filter(providers []models.Provider, query string) []models.Provider {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]models.Provider{}, providers...)
	}
	return lo.Filter(providers, func(p models.Provider, _ int) bool {
		return strings.Contains(strings.ToLower(p.DisplayName()), q) ||
			strings.Contains(strings.ToLower(strings.Join(p.Services, " ")), q) ||
			strings.Contains(strings.ToLower(p.City), q)
	})
}

// Reviews returns the provider's average, review count and newest reviews.
// limit <= 0 returns every review.
func (s *Service) Reviews(ctx context.Context, providerID string, limit int) (models.RatingSummary, error) {
	average, count, err := s.store.ProviderRating(ctx, providerID)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("failed to load rating: %w", err)
	}

	reviews, err := s.store.ListReviews(ctx, providerID, limit)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("failed to load reviews: %w", err)
	}
	reviews = lo.Map(reviews, func(r models.Review, _ int) models.Review {
		if r.ClientName == "" {
			r.ClientName = defaultClientName
		}
		return r
	})
	if reviews == nil {
		reviews = []models.Review{}
	}

	return models.RatingSummary{Average: average, Count: count, Reviews: reviews}, nil
}

// Submit stores the session client's review of the provider
func (s *Service) Submit(ctx context.Context, self models.Session, providerID string, req models.ReviewRequest) (models.Review, error) {
	if self.Role != models.RoleClient {
		return models.Review{}, ErrNotClient
	}

	req.Comment = strings.TrimSpace(req.Comment)
	if req.Comment == "" {
		return models.Review{}, ErrEmptyComment
	}
	if err := s.validate.Struct(req); err != nil {
		return models.Review{}, fmt.Errorf("%w: %v", ErrInvalidReview, err)
	}

	review := models.Review{
		ProviderID: providerID,
		ClientID:   self.UserID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	err := s.store.InsertReview(ctx, &review)
	if errors.Is(err, database.ErrDuplicateReview) {
		return models.Review{}, ErrAlreadyReviewed
	}
	if err != nil {
		return models.Review{}, fmt.Errorf("failed to save review: %w", err)
	}

	log.Info("Client %s reviewed provider %s with %d", self.UserID, providerID, req.Rating)
	return review, nil
}
