package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConfigStore persists string values per user and per application.
// A missing value reads as "" with a nil error.
type ConfigStore interface {
	GetUserValue(ctx context.Context, userID, key string) (string, error)
	SetUserValue(ctx context.Context, userID, key, value string) error
	DeleteUserValue(ctx context.Context, userID, key string) error
	GetAppValue(ctx context.Context, key string) (string, error)
	SetAppValue(ctx context.Context, key, value string) error
	// UsersWithValue lists the users holding key == value.
	UsersWithValue(ctx context.Context, key, value string) ([]string, error)
}

type userValue struct {
	UserID    string    `bson:"user_id"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type appValue struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore is the MongoDB backed store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger

	userCol     *mongo.Collection
	appCol      *mongo.Collection
	filesCol    *mongo.Collection
	countersCol *mongo.Collection
	sharesCol   *mongo.Collection
	eventsCol   *mongo.Collection
}

// Connect dials MongoDB, pings it and makes sure every index exists.
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := c.Database(database)
	s := &MongoStore{
		client:      c,
		db:          db,
		logger:      logger,
		userCol:     db.Collection("user_config"),
		appCol:      db.Collection("app_config"),
		filesCol:    db.Collection("files"),
		countersCol: db.Collection("counters"),
		sharesCol:   db.Collection("shares"),
		eventsCol:   db.Collection("calendar_events"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = c.Disconnect(ctx)
		return nil, err
	}
	logger.Info("mongo store ready", zap.String("database", database))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	idx := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.userCol, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "key", Value: 1}, {Key: "value", Value: 1}}},
		}},
		{s.filesCol, []mongo.IndexModel{
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "path", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "file_id", Value: 1}}},
		}},
		{s.sharesCol, []mongo.IndexModel{
			{Keys: bson.M{"token": 1}, Options: options.Index().SetUnique(true)},
		}},
		{s.eventsCol, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start", Value: 1}}},
		}},
	}
	for _, i := range idx {
		if _, err := i.col.Indexes().CreateMany(ctx, i.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", i.col.Name(), err)
		}
	}
	return nil
}

// Disconnect closes the client.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

func (s *MongoStore) GetUserValue(ctx context.Context, userID, key string) (string, error) {
	var v userValue
	err := s.userCol.FindOne(ctx, bson.M{"user_id": userID, "key": key}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("read %s for user %s: %w", key, userID, err)
	}
	return v.Value, nil
}

func (s *MongoStore) SetUserValue(ctx context.Context, userID, key, value string) error {
	_, err := s.userCol.UpdateOne(ctx,
		bson.M{"user_id": userID, "key": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("write %s for user %s: %w", key, userID, err)
	}
	return nil
}

func (s *MongoStore) DeleteUserValue(ctx context.Context, userID, key string) error {
	if _, err := s.userCol.DeleteOne(ctx, bson.M{"user_id": userID, "key": key}); err != nil {
		return fmt.Errorf("delete %s for user %s: %w", key, userID, err)
	}
	return nil
}

func (s *MongoStore) GetAppValue(ctx context.Context, key string) (string, error) {
	var v appValue
	err := s.appCol.FindOne(ctx, bson.M{"_id": key}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("read app value %s: %w", key, err)
	}
	return v.Value, nil
}

func (s *MongoStore) SetAppValue(ctx context.Context, key, value string) error {
	_, err := s.appCol.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("write app value %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) UsersWithValue(ctx context.Context, key, value string) ([]string, error) {
	ids, err := s.userCol.Distinct(ctx, "user_id", bson.M{"key": key, "value": value})
	if err != nil {
		return nil, fmt.Errorf("list users with %s: %w", key, err)
	}
	users := make([]string, 0, len(ids))
	for _, id := range ids {
		if uid, ok := id.(string); ok {
			users = append(users, uid)
		}
	}
	return users, nil
}
