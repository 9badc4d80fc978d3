// Package mongostore provides a MongoDB session storage implementation.
//
// MongoStore keeps serialized session records in a collection, one
// document per key. A TTL index on expires_at lets the server evict
// expired records; Get also filters them so eviction lag is invisible.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoStore struct {
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

type document struct {
	Key       string     `bson:"_id"`
	Data      []byte     `bson:"data"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

type config func(*MongoStore)

// WithTimeout bounds every round trip. (default 5s.)
func WithTimeout(timeout time.Duration) config {
	return config(func(s *MongoStore) {
		s.timeout = timeout
	})
}

// WithClock replaces time.Now when deciding expiry. (default time.Now.)
func WithClock(now func() time.Time) config {
	return config(func(s *MongoStore) {
		s.now = now
	})
}

// New creates and returns a new MongoStore over coll and ensures the TTL
// index exists.
func New(coll *mongo.Collection, cfgs ...config) (*MongoStore, error) {
	if coll == nil {
		return nil, errors.New("mongostore: nil collection")
	}
	s := &MongoStore{
		coll:    coll,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, cfg := range cfgs {
		cfg(s)
	}

	ctx, cancel := s.ctx()
	defer cancel()
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ttl index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ctx() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.Background(), func() {}
}

// Get retrieves the data stored under key. Returns the data, a boolean
// indicating whether the key was found and not expired, and an error.
func (s *MongoStore) Get(key string) ([]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	filter := bson.D{
		{Key: "_id", Value: key},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "expires_at", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: s.now()}}}},
		}},
	}

	var doc document
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return doc.Data, true, nil
}

// Set stores the data under key with an expiration time. If a record with
// the same key already exists, it is replaced. A zero expiresAt never
// expires.
func (s *MongoStore) Set(key string, data []byte, expiresAt time.Time) error {
	ctx, cancel := s.ctx()
	defer cancel()

	doc := document{Key: key, Data: data}
	if !expiresAt.IsZero() {
		utc := expiresAt.UTC()
		doc.ExpiresAt = &utc
	}

	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes the data stored under key.
func (s *MongoStore) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return err
}
