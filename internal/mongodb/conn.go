package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DB is the data-store client shared by every request. It is opened once at
// process start and closed at shutdown by its owner.
type DB struct {
	client *mongo.Client
	name   string
}

// Connect connects to MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongodb uri is required (e.g. mongodb://localhost:27017)")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, nil
}

func NewDB(client *mongo.Client, name string) *DB {
	return &DB{client: client, name: name}
}

func (db *DB) GetDatabaseName() string {
	return db.name
}

func (db *DB) Database() *mongo.Database {
	return db.client.Database(db.name)
}

func (db *DB) Collection(name string) *mongo.Collection {
	return db.Database().Collection(name)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

func (db *DB) Disconnect(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}
