package mongodb

import (
	"context"
	"fmt"

	"github.com/lealre/natours-backend/internal/logx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeleteAllIndexes deletes all indexes from all collections in the database
// (except the default _id_ index which cannot be deleted)
func DeleteAllIndexes(ctx context.Context, db *mongo.Database) error {
	logger := logx.FromContext(ctx)

	// Get all collections in the database
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, collName := range collections {
		coll := db.Collection(collName)

		// List all indexes for this collection
		cursor, err := coll.Indexes().List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list indexes for collection '%s': %w", collName, err)
		}

		// Iterate through indexes and delete them (except _id_ which is the default and cannot be deleted)
		for cursor.Next(ctx) {
			var index bson.M
			if err := cursor.Decode(&index); err != nil {
				cursor.Close(ctx)
				return fmt.Errorf("failed to decode index for collection '%s': %w", collName, err)
			}

			indexName, ok := index["name"].(string)
			if !ok {
				continue
			}

			// Skip the default _id_ index as it cannot be deleted
			if indexName == "_id_" {
				continue
			}

			// Delete the index
			_, err := coll.Indexes().DropOne(ctx, indexName)
			if err != nil {
				cursor.Close(ctx)
				return fmt.Errorf("failed to delete index '%s' from collection '%s': %w", indexName, collName, err)
			}
			logger.Info().Str("index", indexName).Str("collection", collName).Msg("deleted index")
		}

		if err := cursor.Err(); err != nil {
			cursor.Close(ctx)
			return fmt.Errorf("cursor error for collection '%s': %w", collName, err)
		}
		cursor.Close(ctx)
	}

	return nil
}

// CreateAllIndexes creates the indexes of the tours, reviews and users collections
func CreateAllIndexes(ctx context.Context, db *mongo.Database, reset bool) error {
	if err := CreateTourIndexes(ctx, db, reset); err != nil {
		return fmt.Errorf("failed to create tour indexes: %w", err)
	}

	if err := CreateReviewIndexes(ctx, db, reset); err != nil {
		return fmt.Errorf("failed to create review indexes: %w", err)
	}

	if err := CreateUserIndexes(ctx, db, reset); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}

// CreateTourIndexes creates indexes for the tours collection
func CreateTourIndexes(ctx context.Context, db *mongo.Database, reset bool) error {
	coll := db.Collection(ToursCollection)

	toursNameIndexName := "name_unique"
	nameIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName(toursNameIndexName),
	}
	if err := createIndexIfNotExists(ctx, coll, nameIndex, toursNameIndexName, reset); err != nil {
		return err
	}

	// Serves the most common listing: cheapest first, best rated first
	toursPriceIndexName := "price_and_ratingsAverage"
	priceIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}},
		Options: options.Index().SetName(toursPriceIndexName),
	}
	if err := createIndexIfNotExists(ctx, coll, priceIndex, toursPriceIndexName, reset); err != nil {
		return err
	}

	// Required by $geoWithin/$centerSphere and $geoNear
	toursStartLocationIndexName := "startLocation_2dsphere"
	startLocationIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "startLocation", Value: "2dsphere"}},
		Options: options.Index().SetName(toursStartLocationIndexName),
	}
	if err := createIndexIfNotExists(ctx, coll, startLocationIndex, toursStartLocationIndexName, reset); err != nil {
		return err
	}

	return nil
}

// CreateReviewIndexes creates indexes for the reviews collection
func CreateReviewIndexes(ctx context.Context, db *mongo.Database, reset bool) error {
	coll := db.Collection(ReviewsCollection)

	// One review per user and tour
	reviewsIndexName := "userId_and_tourId_unique"
	reviewsIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "tourId", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName(reviewsIndexName),
	}
	if err := createIndexIfNotExists(ctx, coll, reviewsIndex, reviewsIndexName, reset); err != nil {
		return err
	}

	// Used by the rating aggregation and the cascade delete
	reviewsTourIndexName := "tourId"
	tourIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "tourId", Value: 1}},
		Options: options.Index().SetName(reviewsTourIndexName),
	}
	if err := createIndexIfNotExists(ctx, coll, tourIndex, reviewsTourIndexName, reset); err != nil {
		return err
	}

	return nil
}

// CreateUserIndexes creates indexes for the users collection
func CreateUserIndexes(ctx context.Context, db *mongo.Database, reset bool) error {
	coll := db.Collection(UsersCollection)
	usersEmailIndexName := "email_unique"

	// Create unique index on email (case-insensitive)
	// Exclude empty strings and null values from uniqueness constraint
	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName(usersEmailIndexName).
			SetCollation(&options.Collation{
				Locale:   "en",
				Strength: 2,
			}).
			SetPartialFilterExpression(bson.M{
				"$and": []bson.M{
					{"email": bson.M{"$type": "string"}},
					{"email": bson.M{"$gt": ""}},
				},
			}),
	}
	if err := createIndexIfNotExists(ctx, coll, emailIndex, usersEmailIndexName, reset); err != nil {
		return err
	}

	return nil
}

// createIndexIfNotExists checks if an index exists and creates it if it doesn't
// If reset is true, it will delete the existing index and recreate it
func createIndexIfNotExists(ctx context.Context, coll *mongo.Collection, indexModel mongo.IndexModel, indexName string, reset bool) error {
	logger := logx.FromContext(ctx)

	// List existing indexes
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	// Check if index already exists
	indexExists := false
	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			return fmt.Errorf("failed to decode index: %w", err)
		}

		if name, ok := index["name"].(string); ok && name == indexName {
			indexExists = true
			break
		}
	}

	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error: %w", err)
	}

	if indexExists {
		if !reset {
			logger.Info().Str("index", indexName).Str("collection", coll.Name()).Msg("index already exists, skipping")
			return nil
		}
		// Delete the existing index
		_, err := coll.Indexes().DropOne(ctx, indexName)
		if err != nil {
			return fmt.Errorf("failed to delete index '%s': %w", indexName, err)
		}
		logger.Info().Str("index", indexName).Str("collection", coll.Name()).Msg("deleted index")
	}

	// Create the index
	_, err = coll.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		return fmt.Errorf("failed to create index '%s': %w", indexName, err)
	}

	logger.Info().Str("index", indexName).Str("collection", coll.Name()).Msg("created index")
	return nil
}
