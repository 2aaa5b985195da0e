package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func record(username string) Record {
	return Record{
		ID:            uuid.NewString(),
		Username:      username,
		PublicKey:     "pub-" + username,
		EncryptedSeed: "v1:sealed-" + username,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestCreateRejectsDuplicateUsername(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, record("alice")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, record("alice")); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestFindByUsernameMiss(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.FindByUsername(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindManyReturnsOnlyMatches(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		if err := repo.Create(ctx, record(name)); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	records, err := repo.FindManyByUsernames(ctx, []string{"alice", "carol", "nobody"})
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	found := map[string]bool{}
	for _, r := range records {
		found[r.Username] = true
	}
	if !found["alice"] || !found["carol"] {
		t.Fatalf("unexpected result set: %v", found)
	}
}

func TestListOrderedByCreation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := record("alice")
	second := record("bob")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].Username != "alice" || records[1].Username != "bob" {
		t.Fatalf("unexpected order: %+v", records)
	}
}
