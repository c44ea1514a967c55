package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/config"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/services/reviews"
	"go.mongodb.org/mongo-driver/bson"
)

// seedUser carries a plain password; only its hash is stored.
type seedUser struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func readJSON(dir, name string, dst any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

/*
importDevData loads tours.json, users.json and reviews.json from dir.

Documents keep the ids from the files so reviews can reference tours and
users. Rating statistics are not trusted from the files: every imported tour
is recomputed from the imported reviews.
*/
func importDevData(ctx context.Context, db *mongodb.DB, dir string, cfg config.DatabaseConfig) error {
	logger := logx.FromContext(ctx)

	var tours []mongodb.TourDb
	if err := readJSON(dir, "tours.json", &tours); err != nil {
		return err
	}
	var seedUsers []seedUser
	if err := readJSON(dir, "users.json", &seedUsers); err != nil {
		return err
	}
	var reviewDocs []mongodb.ReviewDb
	if err := readJSON(dir, "reviews.json", &reviewDocs); err != nil {
		return err
	}

	now := time.Now()

	tourDocs := make([]any, 0, len(tours))
	for _, tour := range tours {
		tour.RatingsAverage = 0
		tour.RatingsQuantity = 0
		tour.CreatedAt, tour.UpdatedAt = now, now
		tourDocs = append(tourDocs, tour)
	}

	userDocs := make([]any, 0, len(seedUsers))
	for _, u := range seedUsers {
		if !auth.Role(u.Role).Valid() {
			return fmt.Errorf("user %s has unknown role %q", u.Email, u.Role)
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("hash password of %s: %w", u.Email, err)
		}
		userDocs = append(userDocs, mongodb.UserDb{
			Id:           u.Id,
			Name:         u.Name,
			Email:        u.Email,
			Role:         u.Role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	reviewAny := make([]any, 0, len(reviewDocs))
	for _, review := range reviewDocs {
		review.CreatedAt, review.UpdatedAt = now, now
		reviewAny = append(reviewAny, review)
	}

	for _, batch := range []struct {
		collection string
		docs       []any
	}{
		{mongodb.ToursCollection, tourDocs},
		{mongodb.UsersCollection, userDocs},
		{mongodb.ReviewsCollection, reviewAny},
	} {
		if len(batch.docs) == 0 {
			continue
		}
		if _, err := db.Collection(batch.collection).InsertMany(ctx, batch.docs); err != nil {
			return fmt.Errorf("insert into %s: %w", batch.collection, err)
		}
		logger.Info().Str("collection", batch.collection).Int("documents", len(batch.docs)).Msg("imported")
	}

	recomputer := reviews.NewRecomputer(db, cfg.RecomputeMaxRetries, cfg.RecomputeTimeout)
	for _, tour := range tours {
		if _, err := recomputer.Recompute(ctx, tour.Id); err != nil {
			return fmt.Errorf("recompute ratings of tour %s: %w", tour.Id, err)
		}
	}

	return nil
}

func clearDevData(ctx context.Context, db *mongodb.DB) error {
	logger := logx.FromContext(ctx)

	for _, collection := range []string{mongodb.ReviewsCollection, mongodb.ToursCollection, mongodb.UsersCollection} {
		result, err := db.Collection(collection).DeleteMany(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("clear %s: %w", collection, err)
		}
		logger.Info().Str("collection", collection).Int64("deleted", result.DeletedCount).Msg("cleared")
	}
	return nil
}
