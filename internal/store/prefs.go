package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/inboxsync/internal/paging"
)

// LoadView returns the saved preferences for a list view. ok is false when
// nothing was saved yet.
func (db *DB) LoadView(view string) (paging.ViewPrefs, bool, error) {
	var (
		vp    paging.ViewPrefs
		order string
	)
	err := db.QueryRow(`
		SELECT sort_by, sort_order, page_limit
		FROM view_prefs
		WHERE view = ?`, view).Scan(&vp.SortBy, &order, &vp.Limit)
	if errors.Is(err, sql.ErrNoRows) {
		return paging.ViewPrefs{}, false, nil
	}
	if err != nil {
		return paging.ViewPrefs{}, false, err
	}
	vp.SortOrder = paging.Order(order)
	return vp, true, nil
}

// SaveView inserts or replaces the preferences for a list view.
func (db *DB) SaveView(view string, vp paging.ViewPrefs) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO view_prefs (view, sort_by, sort_order, page_limit, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(view) DO UPDATE SET
			sort_by = excluded.sort_by,
			sort_order = excluded.sort_order,
			page_limit = excluded.page_limit,
			updated_at = excluded.updated_at`,
		view, vp.SortBy, string(vp.SortOrder), vp.Limit, now)
	return err
}

// DeleteView forgets the preferences for a list view.
func (db *DB) DeleteView(view string) error {
	_, err := db.Exec(`DELETE FROM view_prefs WHERE view = ?`, view)
	return err
}
