package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/MinWook6457/Re-cord/internal/models"
	"github.com/MinWook6457/Re-cord/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	alice, err := st.Register(ctx, store.RegisterInput{Email: "Alice@X.com", Password: "secret1", Name: "Alice"})
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if alice.Email != "alice@x.com" {
		t.Fatalf("expected normalized email, got %q", alice.Email)
	}

	bob, err := st.Register(ctx, store.RegisterInput{Email: "bob@x.com", Password: "secret2", Name: "Bob"})
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}
	if alice.UserID == bob.UserID {
		t.Fatal("expected distinct user ids")
	}

	if _, err := st.Register(ctx, store.RegisterInput{Email: "ALICE@x.com", Password: "secret3", Name: "Imposter"}); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	user, err := st.Login(ctx, "alice@x.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.UserID != alice.UserID {
		t.Fatalf("expected %s, got %s", alice.UserID, user.UserID)
	}

	if _, err := st.Login(ctx, "alice@x.com", "wrong"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := st.Login(ctx, "nobody@x.com", "secret1"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRetrospectiveLifecycle(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	alice := registerUser(t, ctx, st, "alice@x.com")

	created, err := st.CreateRetrospective(ctx, alice.UserID, store.RetrospectiveInput{
		Date:     "2024-01-01",
		Title:    "Sprint 1",
		Category: models.CategoryKeep,
		Content:  "Good pace",
		Tags:     []string{"velocity"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.UserID != alice.UserID {
		t.Fatalf("owner mismatch: %s", created.UserID)
	}
	if !reflect.DeepEqual(created.Tags, []string{"velocity"}) {
		t.Fatalf("tags: %v", created.Tags)
	}

	got, err := st.GetRetrospective(ctx, alice.UserID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.Tags, created.Tags) {
		t.Fatalf("tags did not round trip: %v", got.Tags)
	}

	updated, err := st.UpdateRetrospective(ctx, alice.UserID, created.ID, store.RetrospectiveInput{
		Date:     "2024-01-02",
		Title:    "Sprint 1 (revised)",
		Category: models.CategoryImprove,
		Content:  "Pace slipped late",
		Tags:     []string{"velocity", "scope"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || updated.UserID != alice.UserID {
		t.Fatal("id and user_id must not change on update")
	}
	if updated.Title != "Sprint 1 (revised)" || updated.Category != models.CategoryImprove {
		t.Fatalf("fields not replaced: %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not refreshed: %v vs %v", updated.UpdatedAt, created.UpdatedAt)
	}
	if updated.CreatedAt.Sub(created.CreatedAt) > time.Millisecond || created.CreatedAt.Sub(updated.CreatedAt) > time.Millisecond {
		t.Fatal("created_at must not change on update")
	}

	if err := st.DeleteRetrospective(ctx, alice.UserID, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetRetrospective(ctx, alice.UserID, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.DeleteRetrospective(ctx, alice.UserID, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestEmptyTagsRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	alice := registerUser(t, ctx, st, "alice@x.com")
	created, err := st.CreateRetrospective(ctx, alice.UserID, store.RetrospectiveInput{
		Date:     "2024-01-01",
		Title:    "No tags",
		Category: models.CategoryStop,
		Content:  "Untagged",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.GetRetrospective(ctx, alice.UserID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Fatalf("expected empty non-nil tags, got %#v", got.Tags)
	}
}

func TestOwnershipScoping(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	alice := registerUser(t, ctx, st, "alice@x.com")
	bob := registerUser(t, ctx, st, "bob@x.com")

	entry, err := st.CreateRetrospective(ctx, alice.UserID, store.RetrospectiveInput{
		Date:     "2024-01-01",
		Title:    "Private",
		Category: models.CategoryKeep,
		Content:  "Alice only",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := st.GetRetrospective(ctx, bob.UserID, entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get as bob: expected ErrNotFound, got %v", err)
	}
	if _, err := st.UpdateRetrospective(ctx, bob.UserID, entry.ID, store.RetrospectiveInput{
		Date: "2024-01-02", Title: "Taken", Category: models.CategoryStop, Content: "Nope",
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update as bob: expected ErrNotFound, got %v", err)
	}
	if err := st.DeleteRetrospective(ctx, bob.UserID, entry.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete as bob: expected ErrNotFound, got %v", err)
	}

	listed, err := st.ListRetrospectives(ctx, bob.UserID, store.ListFilter{})
	if err != nil {
		t.Fatalf("list as bob: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("bob sees %d foreign entries", len(listed))
	}

	kept, err := st.GetRetrospective(ctx, alice.UserID, entry.ID)
	if err != nil {
		t.Fatalf("entry lost after foreign write attempts: %v", err)
	}
	if kept.Title != "Private" {
		t.Fatalf("entry mutated by foreign update: %+v", kept)
	}
}

func TestListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	alice := registerUser(t, ctx, st, "alice@x.com")
	for i, category := range []string{models.CategoryKeep, models.CategoryStop, models.CategoryKeep} {
		_, err := st.CreateRetrospective(ctx, alice.UserID, store.RetrospectiveInput{
			Date:     fmt.Sprintf("2024-01-0%d", i+1),
			Title:    fmt.Sprintf("Entry %d", i+1),
			Category: category,
			Content:  "body",
			Tags:     []string{fmt.Sprintf("tag%d", i+1), "common"},
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	all, err := st.ListRetrospectives(ctx, alice.UserID, store.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) }) {
		t.Fatal("expected newest-created-first ordering")
	}

	keeps, err := st.ListRetrospectives(ctx, alice.UserID, store.ListFilter{Category: models.CategoryKeep})
	if err != nil {
		t.Fatalf("list keep: %v", err)
	}
	if len(keeps) != 2 {
		t.Fatalf("expected 2 keep entries, got %d", len(keeps))
	}

	tagged, err := st.ListRetrospectives(ctx, alice.UserID, store.ListFilter{Tag: "tag2"})
	if err != nil {
		t.Fatalf("list tag2: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Title != "Entry 2" {
		t.Fatalf("tag filter: %+v", tagged)
	}

	common, err := st.ListRetrospectives(ctx, alice.UserID, store.ListFilter{Tag: "common"})
	if err != nil {
		t.Fatalf("list common: %v", err)
	}
	if len(common) != 3 {
		t.Fatalf("expected 3 common-tagged entries, got %d", len(common))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	alice := registerUser(t, ctx, st, "alice@x.com")
	bob := registerUser(t, ctx, st, "bob@x.com")

	empty, err := st.GetStats(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Total != 0 || empty.LastUpdated != nil {
		t.Fatalf("expected empty stats, got %+v", empty)
	}

	for _, category := range []string{models.CategoryKeep, models.CategoryKeep, models.CategoryStart} {
		if _, err := st.CreateRetrospective(ctx, alice.UserID, store.RetrospectiveInput{
			Date: "2024-01-01", Title: "t", Category: category, Content: "c",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := st.CreateRetrospective(ctx, bob.UserID, store.RetrospectiveInput{
		Date: "2024-01-01", Title: "bob", Category: models.CategoryStop, Content: "c",
	}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	stats, err := st.GetStats(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.ByCategory[models.CategoryKeep] != 2 || stats.ByCategory[models.CategoryStart] != 1 || stats.ByCategory[models.CategoryStop] != 0 {
		t.Fatalf("by_category: %v", stats.ByCategory)
	}
	if stats.LastUpdated == nil {
		t.Fatal("expected last_updated to be set")
	}
}

func registerUser(t *testing.T, ctx context.Context, st *Store, email string) models.User {
	t.Helper()
	user, err := st.Register(ctx, store.RegisterInput{Email: email, Password: "secret1", Name: "Test"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool, Options{BcryptCost: 4})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
