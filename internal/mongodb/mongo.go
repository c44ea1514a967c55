package mongodb

import (
	"errors"

	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ToursCollection   = "tours"
	ReviewsCollection = "reviews"
	UsersCollection   = "users"
)

var (
	ErrRecordNotFound = errors.New("record not found in the database")
	ErrDuplicateKey   = errors.New("record violates a unique index")
)

// translateWriteError maps driver errors the services care about onto package sentinels.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}

// findOptions turns a built query spec into driver options.
func findOptions(spec query.Spec) *options.FindOptions {
	opts := options.Find()
	if len(spec.Sort) > 0 {
		opts.SetSort(spec.Sort)
	}
	if len(spec.Projection) > 0 {
		opts.SetProjection(spec.Projection)
	}
	if spec.Skip > 0 {
		opts.SetSkip(spec.Skip)
	}
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}
	return opts
}

func filterOrAll(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
