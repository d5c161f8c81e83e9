// Package store provides schema-aware document collections backed either by
// an embedded SQLite database or by MongoDB.
//
// Every collection stores whole documents; callers read a document, change it
// and write it back with Replace. Equality filters and multi-key sorts cover
// the listing needs of the content endpoints. Unique fields declared in a
// Schema are enforced by the database itself, so concurrent writers racing on
// the same value see exactly one success and one ErrDuplicate.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document matches an id or filter.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a write violates a unique field.
	ErrDuplicate = errors.New("duplicate key")
)

// Meta carries the identity and timestamps every stored document has.
// Embed it (inline) in document types.
type Meta struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DocumentMeta returns m so that embedding types satisfy Document.
func (m *Meta) DocumentMeta() *Meta { return m }

// touch assigns an id on first write and refreshes the timestamps.
func (m *Meta) touch(now time.Time) {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

// Document is implemented by pointers to types embedding Meta.
type Document interface {
	DocumentMeta() *Meta
}

type docPtr[T any] interface {
	*T
	Document
}

// Filter matches documents whose fields equal the given values.
type Filter map[string]any

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions narrows and orders a Find.
type FindOptions struct {
	Filter Filter
	Sort   []SortField
}

// Schema declares a collection and the constraints the backend must enforce.
type Schema struct {
	Name string
	// Unique lists fields backed by a unique index.
	Unique []string
	// TimeFields lists fields holding timestamps, so backends that store
	// documents as text can order them chronologically.
	TimeFields []string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (s Schema) validate() error {
	if !identRe.MatchString(s.Name) {
		return fmt.Errorf("store: invalid collection name %q", s.Name)
	}
	for _, f := range append(append([]string{}, s.Unique...), s.TimeFields...) {
		if !identRe.MatchString(f) {
			return fmt.Errorf("store: invalid field name %q in %s", f, s.Name)
		}
	}
	return nil
}

func (s Schema) isTimeField(field string) bool {
	for _, f := range s.TimeFields {
		if f == field {
			return true
		}
	}
	return false
}

// Collection is the record store for one document kind.
type Collection[T any] interface {
	Insert(ctx context.Context, doc *T) error
	Find(ctx context.Context, opts FindOptions) ([]T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Replace(ctx context.Context, id string, doc *T) error
	Delete(ctx context.Context, id string) (*T, error)
}

// DB is an open backend connection shared by its collections.
type DB interface {
	Ping(ctx context.Context) error
	Close() error
}

// NewCollection opens the collection described by schema on db, creating
// tables and indexes as needed.
func NewCollection[T any, PT docPtr[T]](ctx context.Context, db DB, schema Schema) (Collection[T], error) {
	switch d := db.(type) {
	case *SQLite:
		c, err := NewSQLiteCollection[T, PT](ctx, d, schema)
		if err != nil {
			return nil, err
		}
		return c, nil
	case *Mongo:
		c, err := NewMongoCollection[T, PT](ctx, d, schema)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("store: unsupported backend %T", db)
	}
}

// parseID converts a hex id; malformed ids can never match a document.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}
