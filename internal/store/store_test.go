package store_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/useclearbound-netizen/clearbound-v2/internal/store"
)

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

// openTestStore returns a Store on a throwaway table from DATABASE_URL. Skips
// if the env var is not set so the suite still passes without Postgres.
func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store integration tests")
	}
	ctx := context.Background()
	table := "prompt_templates_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	st, err := store.Open(ctx, dsn, table)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

// ─── TESTS ────────────────────────────────────────────────────────────────────

func TestGetTemplate_NotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetTemplate(context.Background(), "prompts/v2/missing.prompt.md")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPutTemplate_InsertThenNoop(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	const path = "prompts/v2/message.prompt.md"

	first, changed, err := st.PutTemplate(ctx, path, "v1 body")
	if err != nil || !changed {
		t.Fatalf("first put: changed=%v err=%v", changed, err)
	}

	second, changed, err := st.PutTemplate(ctx, path, "v1 body")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if changed {
		t.Error("identical body should not report a change")
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("updated_at moved on no-op: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	if _, changed, err = st.PutTemplate(ctx, path, "v2 body"); err != nil || !changed {
		t.Fatalf("third put: changed=%v err=%v", changed, err)
	}
	got, err := st.GetTemplate(ctx, path)
	if err != nil || got.Body != "v2 body" {
		t.Errorf("get after update: %+v, %v", got, err)
	}

	all, err := st.ListTemplates(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("list: %d templates, %v", len(all), err)
	}
}
