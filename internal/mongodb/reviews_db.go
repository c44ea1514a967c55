package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ----- Types for the database -----

type ReviewDb struct {
	Id        string    `json:"id" bson:"_id"`
	Review    string    `json:"review" bson:"review"`
	Rating    int       `json:"rating" bson:"rating"`
	TourId    string    `json:"tourId" bson:"tourId"`
	UserId    string    `json:"userId" bson:"userId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// RatingStats is the count and mean rating of one tour's reviews.
type RatingStats struct {
	Quantity int     `json:"ratingsQuantity" bson:"quantity"`
	Average  float64 `json:"ratingsAverage" bson:"average"`
}

// ----- Methods for the database -----

func (db *DB) AddReview(ctx context.Context, review ReviewDb) (ReviewDb, error) {
	coll := db.Collection(ReviewsCollection)

	review.Id = primitive.NewObjectID().Hex()
	now := time.Now()
	review.CreatedAt = now
	review.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, review); err != nil {
		return ReviewDb{}, translateWriteError(err)
	}

	return review, nil
}

func (db *DB) GetReviewById(ctx context.Context, id string) (ReviewDb, error) {
	coll := db.Collection(ReviewsCollection)

	var review ReviewDb
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ReviewDb{}, ErrRecordNotFound
		}
		return ReviewDb{}, err
	}

	return review, nil
}

func (db *DB) GetReviews(ctx context.Context, spec query.Spec) ([]ReviewDb, error) {
	coll := db.Collection(ReviewsCollection)

	cursor, err := coll.Find(ctx, filterOrAll(spec.Filter), findOptions(spec))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reviews := []ReviewDb{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return []ReviewDb{}, err
	}

	return reviews, nil
}

func (db *DB) CountReviews(ctx context.Context, filter bson.M) (int64, error) {
	coll := db.Collection(ReviewsCollection)
	return coll.CountDocuments(ctx, filterOrAll(filter))
}

// UpdateReview sets review text and/or rating and returns how many reviews matched.
func (db *DB) UpdateReview(ctx context.Context, id string, fields bson.M) (int64, error) {
	coll := db.Collection(ReviewsCollection)

	set := bson.M{"updatedAt": time.Now()}
	for _, key := range []string{"review", "rating"} {
		if value, ok := fields[key]; ok {
			set[key] = value
		}
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}

	return result.MatchedCount, nil
}

func (db *DB) DeleteReview(ctx context.Context, id string) (int64, error) {
	coll := db.Collection(ReviewsCollection)

	result, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func (db *DB) DeleteReviewsByTourId(ctx context.Context, tourId string) (int64, error) {
	coll := db.Collection(ReviewsCollection)

	result, err := coll.DeleteMany(ctx, bson.M{"tourId": tourId})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

// GetReviewedTourIds returns every distinct tourId referenced by a review.
func (db *DB) GetReviewedTourIds(ctx context.Context) ([]string, error) {
	coll := db.Collection(ReviewsCollection)

	values, err := coll.Distinct(ctx, "tourId", bson.M{})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(values))
	for _, value := range values {
		if id, ok := value.(string); ok {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// AggregateTourRatings computes count and mean rating of a tour's reviews.
// A tour without reviews yields zero for both.
func (db *DB) AggregateTourRatings(ctx context.Context, tourId string) (RatingStats, error) {
	coll := db.Collection(ReviewsCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tourId": tourId}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$tourId",
			"quantity": bson.M{"$sum": 1},
			"average":  bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return RatingStats{}, err
	}
	defer cursor.Close(ctx)

	var stats []RatingStats
	if err := cursor.All(ctx, &stats); err != nil {
		return RatingStats{}, err
	}

	if len(stats) == 0 {
		return RatingStats{}, nil
	}

	return stats[0], nil
}
