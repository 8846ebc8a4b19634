package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ItemTable is the table name live queries subscribe to
const ItemTable = "item"

// Item is a single inventory record
type Item struct {
	ID       int64   `json:"id" db:"id" validate:"gte=0"`
	Name     string  `json:"name" db:"name" validate:"required"`
	Price    float64 `json:"price" db:"price" validate:"finite,gte=0"`
	Quantity int     `json:"quantity" db:"quantity" validate:"gte=0"`
}

// InsertItem adds an item. An existing id leaves the stored row untouched and
// reports false. An id of zero lets SQLite assign one, which is written back
// to item.ID.
func (db *DB) InsertItem(ctx context.Context, item *Item) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var (
		result sql.Result
		err    error
	)
	if item.ID == 0 {
		result, err = db.NamedExecContext(ctx, `
			INSERT OR IGNORE INTO item (name, price, quantity)
			VALUES (:name, :price, :quantity)
		`, item)
	} else {
		result, err = db.NamedExecContext(ctx, `
			INSERT OR IGNORE INTO item (id, name, price, quantity)
			VALUES (:id, :name, :price, :quantity)
		`, item)
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if item.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
	}

	return true, nil
}

// UpdateItem replaces every field of the row matching item.ID.
// Reports false when no such row exists.
func (db *DB) UpdateItem(ctx context.Context, item Item) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.NamedExecContext(ctx, `
		UPDATE item SET name = :name, price = :price, quantity = :quantity
		WHERE id = :id
	`, item)
	if err != nil {
		return false, fmt.Errorf("failed to update item %d: %w", item.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteItem removes the row with the given id.
// Reports false when no such row exists.
func (db *DB) DeleteItem(ctx context.Context, id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.ExecContext(ctx, "DELETE FROM item WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// GetItem retrieves an item by ID, returning nil if it does not exist
func (db *DB) GetItem(ctx context.Context, id int64) (*Item, error) {
	item := &Item{}
	err := db.GetContext(ctx, item, "SELECT id, name, price, quantity FROM item WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

// ListItems returns every item ordered by name
func (db *DB) ListItems(ctx context.Context) ([]Item, error) {
	items := []Item{}
	if err := db.SelectContext(ctx, &items, `
		SELECT id, name, price, quantity FROM item
		ORDER BY name ASC, id ASC
	`); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// CountItems returns the number of stored items
func (db *DB) CountItems(ctx context.Context) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM item"); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}
