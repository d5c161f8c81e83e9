package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo is a connected MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to uri and selects database name.
func OpenMongo(ctx context.Context, uri, name string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(name)}, nil
}

// Ping checks the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// MongoCollection is a Collection stored in one MongoDB collection.
type MongoCollection[T any, PT docPtr[T]] struct {
	coll   *mongo.Collection
	schema Schema
	now    func() time.Time
}

// NewMongoCollection creates the unique indexes declared by schema.
func NewMongoCollection[T any, PT docPtr[T]](ctx context.Context, m *Mongo, schema Schema) (*MongoCollection[T, PT], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	c := &MongoCollection[T, PT]{coll: m.db.Collection(schema.Name), schema: schema, now: time.Now}
	for _, field := range schema.Unique {
		_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return nil, fmt.Errorf("create %s.%s index: %w", schema.Name, field, err)
		}
	}
	return c, nil
}

// Insert assigns an id and timestamps to doc and stores it.
func (c *MongoCollection[T, PT]) Insert(ctx context.Context, doc *T) error {
	PT(doc).DocumentMeta().touch(c.stamp())
	_, err := c.coll.InsertOne(ctx, doc)
	return c.wrap(err)
}

// Find returns all documents matching opts.Filter in opts.Sort order.
func (c *MongoCollection[T, PT]) Find(ctx context.Context, opts FindOptions) ([]T, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, f := range opts.Sort {
			dir := 1
			if f.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	cur, err := c.coll.Find(ctx, mongoFilter(opts.Filter), findOpts)
	if err != nil {
		return nil, err
	}
	docs := []T{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s documents: %w", c.schema.Name, err)
	}
	return docs, nil
}

// FindByID returns the document with the given hex id.
func (c *MongoCollection[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(c.coll.FindOne(ctx, bson.M{"_id": oid}))
}

// FindOne returns the first document matching filter.
func (c *MongoCollection[T, PT]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	return c.decodeOne(c.coll.FindOne(ctx, mongoFilter(filter)))
}

// Replace overwrites the stored document with id by doc.
func (c *MongoCollection[T, PT]) Replace(ctx context.Context, id string, doc *T) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	meta := PT(doc).DocumentMeta()
	meta.ID = oid
	meta.touch(c.stamp())
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return c.wrap(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document with id and returns it.
func (c *MongoCollection[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(c.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}))
}

func (c *MongoCollection[T, PT]) decodeOne(res *mongo.SingleResult) (*T, error) {
	doc := new(T)
	if err := res.Decode(doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (c *MongoCollection[T, PT]) stamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func (c *MongoCollection[T, PT]) wrap(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s: %v", ErrDuplicate, c.schema.Name, err)
	}
	return err
}

func mongoFilter(f Filter) bson.M {
	out := bson.M{}
	for k, v := range f {
		if k == "_id" {
			if s, ok := v.(string); ok {
				if oid, err := primitive.ObjectIDFromHex(s); err == nil {
					v = oid
				}
			}
		}
		out[k] = v
	}
	return out
}
