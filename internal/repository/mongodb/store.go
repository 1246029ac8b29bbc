package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/repository"
)

var _ repository.Store = (*MongoDBStore)(nil)

// MongoDBStore keeps one Mongo collection per record kind. Documents carry
// their full collection path so every user and app stays isolated.
type MongoDBStore struct {
	client *mongo.Client
	dbName string
	logger *zap.Logger
}

// record is the stored shape of a repository.Document.
type record struct {
	Key   string `bson:"_id"`
	Path  string `bson:"path"`
	DocID string `bson:"doc_id"`
	Seq   int64  `bson:"seq"`
	Data  bson.D `bson:"data"`
}

// NewMongoDBStore connects to MongoDB and pings it.
func NewMongoDBStore(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBStore{client: client, dbName: dbName, logger: logger}, nil
}

// Collection returns the collection at path.
func (s *MongoDBStore) Collection(path string) repository.Collection {
	return &collection{
		coll:   s.client.Database(s.dbName).Collection(repository.Kind(path)),
		path:   path,
		logger: s.logger.With(zap.String("path", path)),
	}
}

// Close closes the MongoDB connection.
func (s *MongoDBStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type collection struct {
	coll   *mongo.Collection
	path   string
	logger *zap.Logger
}

func (c *collection) List(ctx context.Context) ([]repository.Document, error) {
	cursor, err := c.coll.Find(ctx, bson.M{"path": c.path}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.path, err)
	}

	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.path, err)
	}

	docs := make([]repository.Document, 0, len(records))
	for _, rec := range records {
		doc, err := rec.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *collection) Get(ctx context.Context, id string) (repository.Document, error) {
	var rec record
	err := c.coll.FindOne(ctx, bson.M{"_id": recordKey(c.path, id)}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.Document{}, repository.ErrNotFound
	}
	if err != nil {
		return repository.Document{}, fmt.Errorf("failed to get %s/%s: %w", c.path, id, err)
	}
	return rec.document()
}

func (c *collection) Upsert(ctx context.Context, id string, data []byte) (string, error) {
	if id == "" {
		id = primitive.NewObjectID().Hex()
	}

	body, err := toBSON(data)
	if err != nil {
		return "", err
	}

	update := bson.M{
		"$set": bson.M{"data": body},
		"$setOnInsert": bson.M{
			"path":   c.path,
			"doc_id": id,
			"seq":    time.Now().UnixNano(),
		},
	}
	_, err = c.coll.UpdateOne(ctx, bson.M{"_id": recordKey(c.path, id)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("failed to upsert %s/%s: %w", c.path, id, err)
	}
	return id, nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": recordKey(c.path, id)})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c.path, id, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Subscribe watches the kind collection through a change stream and pushes a
// reloaded snapshot on every event. Change streams need a replica set.
func (c *collection) Subscribe(ctx context.Context, fn repository.SnapshotFunc) (func(), error) {
	watchCtx, cancel := context.WithCancel(context.Background())

	stream, err := c.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch %s: %w", c.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = stream.Close(context.Background()) }()

		c.deliver(watchCtx, fn)
		for stream.Next(watchCtx) {
			c.deliver(watchCtx, fn)
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("change stream stopped", zap.Error(err))
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (c *collection) deliver(ctx context.Context, fn repository.SnapshotFunc) {
	docs, err := c.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("snapshot reload failed", zap.Error(err))
		}
		return
	}
	fn(docs)
}

func (r record) document() (repository.Document, error) {
	data, err := toJSON(r.Data)
	if err != nil {
		return repository.Document{}, fmt.Errorf("failed to encode %s: %w", r.Key, err)
	}
	return repository.Document{ID: r.DocID, Data: data}, nil
}

func recordKey(path, id string) string {
	return path + "/" + id
}

// toBSON converts a JSON body into a BSON document using relaxed extended JSON.
func toBSON(data []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert document to bson: %w", err)
	}
	return doc, nil
}

func toJSON(doc bson.D) ([]byte, error) {
	if doc == nil {
		doc = bson.D{}
	}
	return bson.MarshalExtJSON(doc, false, false)
}
