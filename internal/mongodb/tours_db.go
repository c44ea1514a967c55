package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ----- Types for the database -----

// Location is a GeoJSON point. Coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Day         int       `json:"day,omitempty" bson:"day,omitempty"`
}

type TourDb struct {
	Id              string      `json:"id" bson:"_id"`
	Name            string      `json:"name" bson:"name"`
	Duration        int         `json:"duration" bson:"duration"`
	MaxGroupSize    int         `json:"maxGroupSize" bson:"maxGroupSize"`
	Difficulty      string      `json:"difficulty" bson:"difficulty"`
	Price           float64     `json:"price" bson:"price"`
	PriceDiscount   float64     `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty"`
	RatingsAverage  float64     `json:"ratingsAverage" bson:"ratingsAverage"`
	RatingsQuantity int         `json:"ratingsQuantity" bson:"ratingsQuantity"`
	Summary         string      `json:"summary" bson:"summary"`
	Description     string      `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string      `json:"imageCover" bson:"imageCover"`
	Images          []string    `json:"images,omitempty" bson:"images,omitempty"`
	StartDates      []time.Time `json:"startDates,omitempty" bson:"startDates,omitempty"`
	StartLocation   *Location   `json:"startLocation,omitempty" bson:"startLocation,omitempty"`
	Locations       []Location  `json:"locations,omitempty" bson:"locations,omitempty"`
	Guides          []string    `json:"guides,omitempty" bson:"guides,omitempty"`
	CreatedAt       time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updatedAt"`
}

type TourStats struct {
	Difficulty string  `json:"difficulty" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

type MonthlyPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

type TourDistance struct {
	Id       string  `json:"id" bson:"_id"`
	Name     string  `json:"name" bson:"name"`
	Distance float64 `json:"distance" bson:"distance"`
}

// ----- Methods for the database -----

func (db *DB) AddTour(ctx context.Context, tour TourDb) (TourDb, error) {
	coll := db.Collection(ToursCollection)

	tour.Id = primitive.NewObjectID().Hex()
	now := time.Now()
	tour.CreatedAt = now
	tour.UpdatedAt = now
	tour.RatingsAverage = 0
	tour.RatingsQuantity = 0

	if _, err := coll.InsertOne(ctx, tour); err != nil {
		return TourDb{}, translateWriteError(err)
	}

	return tour, nil
}

func (db *DB) GetTourById(ctx context.Context, id string) (TourDb, error) {
	coll := db.Collection(ToursCollection)
	var tourDb TourDb
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&tourDb); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return TourDb{}, ErrRecordNotFound
		}
		return TourDb{}, err
	}
	return tourDb, nil
}

func (db *DB) GetTours(ctx context.Context, spec query.Spec) ([]TourDb, error) {
	coll := db.Collection(ToursCollection)

	cursor, err := coll.Find(ctx, filterOrAll(spec.Filter), findOptions(spec))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tours := []TourDb{}
	if err := cursor.All(ctx, &tours); err != nil {
		return []TourDb{}, err
	}

	return tours, nil
}

func (db *DB) CountTours(ctx context.Context, filter bson.M) (int64, error) {
	coll := db.Collection(ToursCollection)
	return coll.CountDocuments(ctx, filterOrAll(filter))
}

func (db *DB) TourExists(ctx context.Context, id string) (bool, error) {
	coll := db.Collection(ToursCollection)

	// Only ask MongoDB for the _id field
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})

	err := coll.FindOne(ctx, bson.M{"_id": id}, opts).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetTourIds returns the id of every tour.
func (db *DB) GetTourIds(ctx context.Context) ([]string, error) {
	coll := db.Collection(ToursCollection)

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			Id string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.Id)
	}

	return ids, cursor.Err()
}

// UpdateTour sets the given fields and returns how many tours matched.
// Rating statistics are not writable through here.
func (db *DB) UpdateTour(ctx context.Context, id string, fields bson.M) (int64, error) {
	coll := db.Collection(ToursCollection)

	set := bson.M{"updatedAt": time.Now()}
	for key, value := range fields {
		if key == "ratingsAverage" || key == "ratingsQuantity" || key == "_id" {
			continue
		}
		set[key] = value
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, translateWriteError(err)
	}

	return result.MatchedCount, nil
}

func (db *DB) DeleteTour(ctx context.Context, id string) (int64, error) {
	coll := db.Collection(ToursCollection)
	result, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// SetTourRatingStats is the only write path for ratingsQuantity and ratingsAverage.
func (db *DB) SetTourRatingStats(ctx context.Context, tourId string, stats RatingStats) error {
	coll := db.Collection(ToursCollection)

	update := bson.M{
		"$set": bson.M{
			"ratingsQuantity": stats.Quantity,
			"ratingsAverage":  stats.Average,
		},
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": tourId}, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// TourStats groups the well rated tours by difficulty.
func (db *DB) TourStats(ctx context.Context, minRating float64) ([]TourStats, error) {
	coll := db.Collection(ToursCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": minRating}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := []TourStats{}
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}

	return stats, nil
}

// MonthlyPlan counts tour starts per month of the given year, busiest month first.
func (db *DB) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlan, error) {
	coll := db.Collection(ToursCollection)

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lt": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plan := []MonthlyPlan{}
	if err := cursor.All(ctx, &plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// WithinRadius is the filter for tours starting inside a sphere of radius
// radians around (lng, lat). It needs the 2dsphere index on startLocation.
func WithinRadius(lng, lat, radius float64) bson.M {
	return bson.M{
		"startLocation": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lng, lat}, radius},
			},
		},
	}
}

// TourDistances returns every tour's distance from (lng, lat), nearest first.
// Distances in meters are multiplied by multiplier.
func (db *DB) TourDistances(ctx context.Context, lng, lat, multiplier float64) ([]TourDistance, error) {
	coll := db.Collection(ToursCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
			"key":                "startLocation",
		}}},
		{{Key: "$project", Value: bson.M{"name": 1, "distance": 1}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("geo near: %w", err)
	}
	defer cursor.Close(ctx)

	distances := []TourDistance{}
	if err := cursor.All(ctx, &distances); err != nil {
		return nil, err
	}

	return distances, nil
}
