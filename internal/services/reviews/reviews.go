package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/generics"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
)

type ratingRecomputer interface {
	Recompute(ctx context.Context, tourId string) (mongodb.RatingStats, error)
}

// Service owns every review write. Each successful create, update or delete
// is followed by exactly one rating recompute of the affected tour.
type Service struct {
	store      Store
	recomputer ratingRecomputer
}

func NewService(store Store, recomputer *Recomputer) *Service {
	return &Service{store: store, recomputer: recomputer}
}

// GetReviews lists reviews, restricted to one tour when tourId is set.
func (s *Service) GetReviews(ctx context.Context, params query.Params, tourId string) (generics.Page[Review], error) {
	builder := query.New(params)
	if tourId != "" {
		builder.Where(bson.M{"tourId": tourId})
	}

	spec, err := builder.Filter().Sort().LimitFields().Paginate(ctx, s.store.CountReviews)
	if err != nil {
		return generics.Page[Review]{}, apperrors.Ensure(err)
	}

	reviewsDb, err := s.store.GetReviews(ctx, spec)
	if err != nil {
		return generics.Page[Review]{}, apperrors.InternalError(fmt.Errorf("get reviews: %w", err))
	}

	reviews := generics.Map(reviewsDb, MapDbReviewToApiReview)
	if err := s.populateAuthors(ctx, reviews); err != nil {
		return generics.Page[Review]{}, err
	}

	return generics.NewPage(spec, reviews), nil
}

func (s *Service) GetReview(ctx context.Context, reviewId string) (Review, error) {
	reviewDb, err := s.store.GetReviewById(ctx, reviewId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return Review{}, ErrReviewNotFound
		}
		return Review{}, apperrors.InternalError(fmt.Errorf("get review %s: %w", reviewId, err))
	}

	reviews := []Review{MapDbReviewToApiReview(reviewDb)}
	if err := s.populateAuthors(ctx, reviews); err != nil {
		return Review{}, err
	}

	return reviews[0], nil
}

// GetTourReviews returns every review of a tour with its author.
func (s *Service) GetTourReviews(ctx context.Context, tourId string) ([]Review, error) {
	spec := query.Spec{Filter: bson.M{"tourId": tourId}}
	reviewsDb, err := s.store.GetReviews(ctx, spec)
	if err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("get reviews of tour %s: %w", tourId, err))
	}

	reviews := generics.Map(reviewsDb, MapDbReviewToApiReview)
	if err := s.populateAuthors(ctx, reviews); err != nil {
		return nil, err
	}

	return reviews, nil
}

// CreateReview stores principal's review of tourId and recomputes the tour.
func (s *Service) CreateReview(ctx context.Context, principal mongodb.UserDb, tourId string, req CreateReviewRequest) (Review, error) {
	req.Review = strings.TrimSpace(req.Review)
	if err := generics.Validate(req); err != nil {
		return Review{}, err
	}
	if tourId == "" {
		return Review{}, apperrors.New(apperrors.InvalidRequest, "a review must belong to a tour")
	}

	exists, err := s.store.TourExists(ctx, tourId)
	if err != nil {
		return Review{}, apperrors.InternalError(fmt.Errorf("check tour %s: %w", tourId, err))
	}
	if !exists {
		return Review{}, ErrTourNotFound
	}

	created, err := s.store.AddReview(ctx, mongodb.ReviewDb{
		Review: req.Review,
		Rating: req.Rating,
		TourId: tourId,
		UserId: principal.Id,
	})
	if err != nil {
		if errors.Is(err, mongodb.ErrDuplicateKey) {
			return Review{}, apperrors.Wrap(ErrReviewAlreadyExists, err)
		}
		return Review{}, apperrors.InternalError(fmt.Errorf("add review: %w", err))
	}

	s.recompute(ctx, created.TourId)

	return MapDbReviewToApiReview(created), nil
}

// UpdateReview changes the text and/or rating of a review written by principal
// (or any review when principal is an admin).
func (s *Service) UpdateReview(ctx context.Context, principal mongodb.UserDb, reviewId string, req UpdateReviewRequest) (Review, error) {
	if req.Review != nil {
		trimmed := strings.TrimSpace(*req.Review)
		req.Review = &trimmed
	}
	if err := generics.Validate(req); err != nil {
		return Review{}, err
	}

	fields := bson.M{}
	if req.Review != nil {
		fields["review"] = *req.Review
	}
	if req.Rating != nil {
		fields["rating"] = *req.Rating
	}
	if len(fields) == 0 {
		return Review{}, ErrEmptyUpdate
	}

	m, err := s.capture(ctx, reviewId)
	if err != nil {
		return Review{}, err
	}
	if err := m.authorize(principal); err != nil {
		return Review{}, err
	}

	affected, err := s.store.UpdateReview(ctx, m.reviewId, fields)
	if err != nil {
		return Review{}, apperrors.InternalError(fmt.Errorf("update review %s: %w", m.reviewId, err))
	}
	if affected == 0 {
		return Review{}, ErrReviewNotFound
	}

	s.afterWrite(ctx, m, affected)

	updated, err := s.store.GetReviewById(ctx, m.reviewId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return Review{}, ErrReviewNotFound
		}
		return Review{}, apperrors.InternalError(fmt.Errorf("reload review %s: %w", m.reviewId, err))
	}

	return MapDbReviewToApiReview(updated), nil
}

// DeleteReview removes a review written by principal (or any review when
// principal is an admin).
func (s *Service) DeleteReview(ctx context.Context, principal mongodb.UserDb, reviewId string) error {
	m, err := s.capture(ctx, reviewId)
	if err != nil {
		return err
	}
	if err := m.authorize(principal); err != nil {
		return err
	}

	affected, err := s.store.DeleteReview(ctx, m.reviewId)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("delete review %s: %w", m.reviewId, err))
	}
	if affected == 0 {
		return ErrReviewNotFound
	}

	s.afterWrite(ctx, m, affected)

	return nil
}

func (s *Service) populateAuthors(ctx context.Context, reviews []Review) error {
	seen := map[string]bool{}
	var ids []string
	for _, review := range reviews {
		if review.UserId != "" && !seen[review.UserId] {
			seen[review.UserId] = true
			ids = append(ids, review.UserId)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	authors, err := s.store.GetUsersByIds(ctx, ids)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("get review authors: %w", err))
	}

	byId := make(map[string]mongodb.UserSummary, len(authors))
	for _, author := range authors {
		// only the name is public next to a review
		byId[author.Id] = mongodb.UserSummary{Id: author.Id, Name: author.Name}
	}

	for i := range reviews {
		if author, ok := byId[reviews[i].UserId]; ok {
			reviews[i].Author = &author
		}
	}

	return nil
}
