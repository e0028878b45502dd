package post

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// openTestDB connects to the database named by TEST_DATABASE_DSN. Tests
// are skipped when the variable is unset so the suite stays runnable
// without infrastructure.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		db.MustExec(`DELETE FROM saved_posts`)
		db.Close()
	})
	return db
}

func TestSaveAndListRecent(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		_, err := repo.Save(ctx, SavedPost{
			UserID:    7,
			Channel:   "news",
			MessageID: int64(i + 1),
			Link:      "https://t.me/news/1",
			Content:   "body",
			FetchID:   "00000000-0000-0000-0000-000000000001",
			SavedAt:   now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	posts, err := repo.ListRecent(ctx, 7, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts", len(posts))
	}
	if posts[0].MessageID != 3 || posts[1].MessageID != 2 {
		t.Fatalf("wrong order: %d, %d", posts[0].MessageID, posts[1].MessageID)
	}
}

func TestCountsAndClear(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		_, err := repo.Save(ctx, SavedPost{
			UserID:    8,
			Channel:   "news",
			MessageID: int64(i),
			Link:      "https://t.me/news/1",
			FetchID:   "00000000-0000-0000-0000-000000000002",
			SavedAt:   now.Add(-time.Duration(i) * 24 * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	total, err := repo.CountTotal(ctx, 8)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 {
		t.Fatalf("total %d", total)
	}

	recent, err := repo.CountSince(ctx, 8, now.Add(-36*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if recent != 2 {
		t.Fatalf("recent %d", recent)
	}

	removed, err := repo.Clear(ctx, 8)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 4 {
		t.Fatalf("removed %d", removed)
	}
}

func TestDeleteScopedToUser(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	id, err := repo.Save(ctx, SavedPost{
		UserID:    9,
		Channel:   "news",
		MessageID: 1,
		Link:      "https://t.me/news/1",
		FetchID:   "00000000-0000-0000-0000-000000000003",
		SavedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := repo.Delete(ctx, 10, id)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("foreign user deleted the row")
	}

	ok, err = repo.Delete(ctx, 9, id)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("owner could not delete the row")
	}
}

func TestFirstSavedAtEmpty(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	first, err := repo.FirstSavedAt(context.Background(), 404)
	if err != nil {
		t.Fatal(err)
	}
	if !first.IsZero() {
		t.Fatalf("expected zero time, got %v", first)
	}
}
