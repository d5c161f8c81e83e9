package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// Mongo tests run only against a live server named by CMS_TEST_MONGO_URI.
func setupMongoCollection(t *testing.T) Collection[note] {
	t.Helper()
	uri := os.Getenv("CMS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CMS_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := fmt.Sprintf("cmsengine_test_%d", time.Now().UnixNano())
	db, err := OpenMongo(ctx, uri, name)
	if err != nil {
		t.Fatalf("OpenMongo failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.db.Drop(context.Background())
		db.Close()
	})
	c, err := NewCollection[note](ctx, db, noteSchema)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}
	return c
}

func TestMongoRoundTrip(t *testing.T) {
	c := setupMongoCollection(t)
	ctx := context.Background()

	n := note{Title: "First", Slug: "first", Rank: 3, Active: true}
	if err := c.Insert(ctx, &n); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := c.FindByID(ctx, n.ID.Hex())
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Title != "First" || got.Rank != 3 {
		t.Errorf("got %+v, want Title First and Rank 3", got)
	}

	if err := c.Insert(ctx, &note{Title: "Dup", Slug: "first"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Insert error = %v, want ErrDuplicate", err)
	}

	got.Title = "Renamed"
	if err := c.Replace(ctx, n.ID.Hex(), got); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	one, err := c.FindOne(ctx, Filter{"slug": "first"})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if one.Title != "Renamed" {
		t.Errorf("Title = %q, want %q", one.Title, "Renamed")
	}

	if _, err := c.Delete(ctx, n.ID.Hex()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.FindByID(ctx, n.ID.Hex()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID after delete error = %v, want ErrNotFound", err)
	}
}

func TestMongoSort(t *testing.T) {
	c := setupMongoCollection(t)
	ctx := context.Background()

	for _, n := range []note{{Title: "b", Rank: 2}, {Title: "a", Rank: 1}, {Title: "c", Rank: 3}} {
		n := n
		if err := c.Insert(ctx, &n); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	docs, err := c.Find(ctx, FindOptions{Sort: []SortField{{Field: "rank", Desc: true}}})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	want := []string{"c", "b", "a"}
	for i, n := range docs {
		if n.Title != want[i] {
			t.Errorf("docs[%d].Title = %q, want %q", i, n.Title, want[i])
		}
	}
}
