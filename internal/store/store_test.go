package store

import (
	"path/filepath"
	"testing"

	"github.com/matheus3301/inboxsync/internal/paging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 || result.Dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", result.Version, result.Dirty)
	}
}

func TestLoadViewMissing(t *testing.T) {
	db := testDB(t)
	_, ok, err := db.LoadView("conversations")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("LoadView() ok = true for unsaved view")
	}
}

func TestSaveAndLoadView(t *testing.T) {
	db := testDB(t)

	if err := db.SaveView("conversations", paging.ViewPrefs{SortBy: "name", SortOrder: paging.Asc, Limit: 50}); err != nil {
		t.Fatal(err)
	}
	// Overwrite.
	if err := db.SaveView("conversations", paging.ViewPrefs{SortBy: "lastActivityAt", SortOrder: paging.Desc, Limit: 25}); err != nil {
		t.Fatal(err)
	}

	vp, ok, err := db.LoadView("conversations")
	if err != nil || !ok {
		t.Fatalf("LoadView() = %v, %v", ok, err)
	}
	want := paging.ViewPrefs{SortBy: "lastActivityAt", SortOrder: paging.Desc, Limit: 25}
	if vp != want {
		t.Errorf("LoadView() = %+v, want %+v", vp, want)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM view_prefs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestSaveViewRejectsUnknownOrder(t *testing.T) {
	db := testDB(t)
	if err := db.SaveView("v", paging.ViewPrefs{SortOrder: "sideways"}); err == nil {
		t.Error("SaveView() expected constraint error")
	}
}

func TestDeleteView(t *testing.T) {
	db := testDB(t)
	_ = db.SaveView("v", paging.ViewPrefs{Limit: 10})
	if err := db.DeleteView("v"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.LoadView("v"); ok {
		t.Error("view still present after DeleteView")
	}
}

func TestPrefsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	db, err := OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SaveView("v", paging.ViewPrefs{SortBy: "createdAt", SortOrder: paging.Asc, Limit: 5}); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	db, err = OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	vp, ok, err := db.LoadView("v")
	if err != nil || !ok || vp.Limit != 5 {
		t.Errorf("LoadView() after reopen = %+v, %v, %v", vp, ok, err)
	}
}

var _ paging.Prefs = (*DB)(nil)
