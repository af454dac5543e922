package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func setupTestStore(t *testing.T) *BoltStore {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "template_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpfile.Close()

	db, err := bolt.Open(tmpfile.Name(), 0600, nil)
	if err != nil {
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to open db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		os.Remove(tmpfile.Name())
	})

	store, err := NewBoltStore(db)
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	return store
}

func TestBoltStore_Create(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tmpl := &Template{
		Name: "casino",
		HTML: "<h1>{{ Titolo }}</h1>{{Descrizione}}",
	}

	if err := store.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if tmpl.ID == "" {
		t.Error("Create() did not set ID")
	}
	if tmpl.Version != 1 {
		t.Errorf("Create() version = %d, want 1", tmpl.Version)
	}
	if tmpl.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
	if want := []string{"Descrizione", "Titolo"}; !reflect.DeepEqual(tmpl.Placeholders, want) {
		t.Errorf("Create() placeholders = %v, want %v", tmpl.Placeholders, want)
	}
}

func TestBoltStore_CreateValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, &Template{HTML: "x"}); err == nil {
		t.Error("Create() should fail without a name")
	}

	if err := store.Create(ctx, &Template{Name: "sport", HTML: "a"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, &Template{Name: "sport", HTML: "b"}); err == nil {
		t.Error("Create() should fail for duplicate name")
	}
}

func TestBoltStore_Load(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, &Template{Name: "bingo", HTML: "<p>bingo</p>"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Load(ctx, "bingo")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.HTML != "<p>bingo</p>" {
		t.Errorf("Load() html = %q", got.HTML)
	}

	_, err = store.Load(ctx, "lottery")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestBoltStore_GetAndGetByName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tmpl := &Template{Name: "virtual", HTML: "v"}
	if err := store.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Name != "virtual" {
		t.Fatalf("Get() = %+v, want virtual", got)
	}

	got, err = store.GetByName(ctx, "virtual")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got == nil || got.ID != tmpl.ID {
		t.Fatalf("GetByName() = %+v, want id %s", got, tmpl.ID)
	}

	got, err = store.Get(ctx, "non-existent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("Get() should return nil for non-existent")
	}
}

func TestBoltStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"sport", "casino", "lottery"} {
		tmpl := &Template{Name: name, Description: name + " layout", HTML: "x"}
		if err := store.Create(ctx, tmpl); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3", len(list))
	}
	if list[0].Name != "casino" || list[2].Name != "sport" {
		t.Errorf("List() not ordered by name: %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}

	list, err = store.List(ctx, ListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "lottery" {
		t.Errorf("List() with offset = %d items, first %v", len(list), list)
	}

	list, err = store.List(ctx, ListFilter{Search: "LOTT"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() search len = %d, want 1", len(list))
	}
}

func TestBoltStore_Put(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := &Template{Name: "casino", Description: "main", HTML: "v1"}
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	second := &Template{Name: "casino", HTML: "v2 {{ T_C }}"}
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Put() id = %s, want %s", second.ID, first.ID)
	}
	if second.Version != 2 {
		t.Errorf("Put() version = %d, want 2", second.Version)
	}

	got, err := store.Load(ctx, "casino")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.HTML != "v2 {{ T_C }}" || got.Description != "main" {
		t.Errorf("Load() = %+v", got)
	}
	if !reflect.DeepEqual(got.Placeholders, []string{"T_C"}) {
		t.Errorf("Load() placeholders = %v", got.Placeholders)
	}
}

func TestBoltStore_DeleteByName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tmpl := &Template{Name: "sport", HTML: "x"}
	if err := store.Create(ctx, tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.DeleteByName(ctx, "sport"); err != nil {
		t.Fatalf("DeleteByName() error = %v", err)
	}

	got, err := store.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("DeleteByName() did not remove template")
	}

	if err := store.DeleteByName(ctx, "sport"); err != nil {
		t.Errorf("DeleteByName() on missing name error = %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Stats() total = %d, want 0", stats.Total)
	}
}

func TestOpenBoltStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "templates.db")

	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestDirStore_Load(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sport.html"), []byte("<b>{{Titolo}}</b>"), 0644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	store := NewDirStore(dir)
	ctx := context.Background()

	got, err := store.Load(ctx, "sport")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.HTML != "<b>{{Titolo}}</b>" || got.Name != "sport" {
		t.Errorf("Load() = %+v", got)
	}

	if _, err := store.Load(ctx, "bingo"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}

	for _, bad := range []string{"", "../sport", "sport.html", `a\b`} {
		if _, err := store.Load(ctx, bad); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) error = %v, want invalid name", bad, err)
		}
	}
}
