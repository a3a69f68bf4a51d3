/*
Copyright VCX Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package txstore provides a mongo-backed request session store.
package txstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vcxlabs/vcx/pkg/service/oidc4vp"
	"github.com/vcxlabs/vcx/pkg/storage/mongodb"
)

const (
	collectionName = "exchangetx"
)

type mongoDocument struct {
	State    string    `bson:"_id"`
	ExpireAt time.Time `bson:"expireAt"`

	Data *oidc4vp.TransactionData `bson:"data"`
}

// Store keeps request sessions in mongo, keyed by state.
type Store struct {
	mongoClient *mongodb.Client
	ttl         time.Duration
}

// New creates a Store and ensures the TTL index exists.
func New(ctx context.Context, mongoClient *mongodb.Client, ttlSec int32) (*Store, error) {
	s := &Store{
		mongoClient: mongoClient,
		ttl:         time.Duration(ttlSec) * time.Second,
	}

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.mongoClient.Database().Collection(collectionName).Indexes().
		CreateMany(ctx, []mongo.IndexModel{
			{ // ttl index https://www.mongodb.com/community/forums/t/ttl-index-internals/4086/2
				Keys: map[string]interface{}{
					"expireAt": 1,
				},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		})

	return err
}

// Create stores the session unless the state is already taken. The state is
// the document _id, so a duplicate insert fails instead of overwriting.
func (s *Store) Create(
	ctx context.Context, state oidc4vp.State, data *oidc4vp.TransactionData) (bool, error) {
	doc := &mongoDocument{
		State:    string(state),
		ExpireAt: time.Now().UTC().Add(s.ttl),
		Data:     data,
	}

	collection := s.mongoClient.Database().Collection(collectionName)

	_, err := collection.InsertOne(ctx, doc)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key error collection") {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// GetAndDelete claims the session for state. FindOneAndDelete removes the
// document in the same operation.
func (s *Store) GetAndDelete(
	ctx context.Context, state oidc4vp.State) (*oidc4vp.TransactionData, bool, error) {
	collection := s.mongoClient.Database().Collection(collectionName)

	var doc mongoDocument

	err := collection.FindOneAndDelete(ctx, bson.M{"_id": string(state)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, err
	}

	if doc.ExpireAt.Before(time.Now().UTC()) {
		// the ttl index runs every minute, an expired doc may still be found
		return nil, false, nil
	}

	return doc.Data, true, nil
}
