package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserDb struct {
	Id                string     `json:"id" bson:"_id"`
	Name              string     `json:"name" bson:"name"`
	Email             string     `json:"email" bson:"email"`
	Role              string     `json:"role" bson:"role"`
	PasswordHash      string     `json:"-" bson:"passwordHash"`
	PasswordChangedAt *time.Time `json:"-" bson:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// UserSummary is the public part of a user shown next to tours and reviews.
type UserSummary struct {
	Id    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Role  string `json:"role,omitempty" bson:"role,omitempty"`
}

func (db *DB) AddUser(ctx context.Context, user UserDb) (UserDb, error) {
	coll := db.Collection(UsersCollection)

	user.Id = primitive.NewObjectID().Hex()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, user); err != nil {
		return UserDb{}, translateWriteError(err)
	}

	return user, nil
}

func (db *DB) GetUserById(ctx context.Context, id string) (UserDb, error) {
	coll := db.Collection(UsersCollection)
	var userDb UserDb
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&userDb); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return UserDb{}, ErrRecordNotFound
		}
		return UserDb{}, err
	}

	return userDb, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (UserDb, error) {
	coll := db.Collection(UsersCollection)
	var userDb UserDb
	if err := coll.FindOne(ctx, bson.M{"email": email}).Decode(&userDb); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return UserDb{}, ErrRecordNotFound
		}
		return UserDb{}, err
	}

	return userDb, nil
}

// GetUsersByIds returns the public summary of each existing user in ids.
func (db *DB) GetUsersByIds(ctx context.Context, ids []string) ([]UserSummary, error) {
	if len(ids) == 0 {
		return []UserSummary{}, nil
	}

	coll := db.Collection(UsersCollection)

	filter := bson.M{"_id": bson.M{"$in": ids}}
	opts := options.Find().SetProjection(bson.M{"_id": 1, "name": 1, "email": 1, "role": 1})

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []UserSummary{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (db *DB) GetUsers(ctx context.Context, spec query.Spec) ([]UserDb, error) {
	coll := db.Collection(UsersCollection)

	cursor, err := coll.Find(ctx, filterOrAll(spec.Filter), findOptions(spec))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []UserDb{}
	if err := cursor.All(ctx, &users); err != nil {
		return []UserDb{}, err
	}
	return users, nil
}

func (db *DB) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	coll := db.Collection(UsersCollection)
	return coll.CountDocuments(ctx, filterOrAll(filter))
}

// UpdateUser sets profile fields. Password and role changes have their own paths.
func (db *DB) UpdateUser(ctx context.Context, id string, fields bson.M) (int64, error) {
	coll := db.Collection(UsersCollection)

	set := bson.M{"updatedAt": time.Now()}
	for _, key := range []string{"name", "email"} {
		if value, ok := fields[key]; ok {
			set[key] = value
		}
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, translateWriteError(err)
	}

	return result.MatchedCount, nil
}

// SetUserPassword replaces the password hash and records when it changed.
func (db *DB) SetUserPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (int64, error) {
	coll := db.Collection(UsersCollection)

	update := bson.M{
		"$set": bson.M{
			"passwordHash":      passwordHash,
			"passwordChangedAt": changedAt,
			"updatedAt":         time.Now(),
		},
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return 0, err
	}

	return result.MatchedCount, nil
}

func (db *DB) DeleteUser(ctx context.Context, id string) (int64, error) {
	coll := db.Collection(UsersCollection)

	result, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
