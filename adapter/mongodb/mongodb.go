// Package mongodb implements a document adapter on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Store is a document store keeping one collection per allocation.
type Store struct {
	id   model.AdapterID
	name string
	db   *mongo.Database
}

// New returns a store using db.
func New(id model.AdapterID, name string, db *mongo.Database) *Store {
	return &Store{id: id, name: name, db: db}
}

// Connect opens a client for uri and returns a store on database.
func Connect(ctx context.Context, id model.AdapterID, name, uri, database string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return New(id, name, client.Database(database)), client, nil
}

func (s *Store) ID() model.AdapterID { return s.id }
func (s *Store) Name() string        { return s.name }

func (s *Store) Supports(m model.DataModel) bool { return m == model.Document }

func (s *Store) collection(alloc catalog.AllocationEntity) *mongo.Collection {
	return s.db.Collection(alloc.PhysicalName())
}

func (s *Store) CreateCollection(ctx context.Context, alloc catalog.AllocationEntity) error {
	err := s.db.CreateCollection(ctx, alloc.PhysicalName())
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists" {
		return nil
	}
	return adapter.Wrap(s.id, "create collection", err)
}

func (s *Store) DropCollection(ctx context.Context, alloc catalog.AllocationEntity) error {
	return adapter.Wrap(s.id, "drop collection", s.collection(alloc).Drop(ctx))
}

func (s *Store) TruncateCollection(ctx context.Context, alloc catalog.AllocationEntity) error {
	_, err := s.collection(alloc).DeleteMany(ctx, bson.D{})
	return adapter.Wrap(s.id, "truncate collection", err)
}

func (s *Store) ScanDocuments(ctx context.Context, alloc catalog.AllocationEntity, fn func(adapter.Document) error) error {
	cursor, err := s.collection(alloc).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return adapter.Wrap(s.id, "scan documents", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return adapter.Wrap(s.id, "scan documents", err)
		}
		if err := fn(adapter.Document(doc)); err != nil {
			return err
		}
	}
	return adapter.Wrap(s.id, "scan documents", cursor.Err())
}

// InsertDocuments upserts docs by _id. Documents without an _id get a new
// ObjectID.
func (s *Store) InsertDocuments(ctx context.Context, alloc catalog.AllocationEntity, docs []adapter.Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.collection(alloc).BulkWrite(ctx, writeModels(docs), options.BulkWrite().SetOrdered(false))
	return adapter.Wrap(s.id, "insert documents", err)
}

func writeModels(docs []adapter.Document) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		id, ok := d["_id"]
		if !ok {
			id = bson.NewObjectID()
		}
		doc := maps.Clone(bson.M(d))
		doc["_id"] = id
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return models
}
