package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertItem_AssignsID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	item := &Item{Name: "Widget", Price: 2.5, Quantity: 10}
	inserted, err := db.InsertItem(ctx, item)
	if err != nil {
		t.Fatalf("InsertItem returned error: %v", err)
	}
	if !inserted {
		t.Fatal("expected item to be inserted")
	}
	if item.ID == 0 {
		t.Fatal("expected auto-assigned id")
	}

	saved, err := db.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem returned error: %v", err)
	}
	if saved == nil || *saved != *item {
		t.Fatalf("expected %+v, got %+v", item, saved)
	}
}

func TestInsertItem_IgnoresConflict(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := &Item{ID: 7, Name: "First", Price: 1, Quantity: 1}
	if _, err := db.InsertItem(ctx, first); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	second := &Item{ID: 7, Name: "Second", Price: 9, Quantity: 9}
	inserted, err := db.InsertItem(ctx, second)
	if err != nil {
		t.Fatalf("conflicting insert returned error: %v", err)
	}
	if inserted {
		t.Fatal("expected conflicting insert to be ignored")
	}

	saved, err := db.GetItem(ctx, 7)
	if err != nil {
		t.Fatalf("GetItem returned error: %v", err)
	}
	if saved.Name != "First" || saved.Price != 1 || saved.Quantity != 1 {
		t.Fatalf("expected original row to survive, got %+v", saved)
	}
}

func TestUpdateItem_ReplacesFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertItem(ctx, &Item{ID: 1, Name: "Banana", Price: 0.5, Quantity: 3}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	updated, err := db.UpdateItem(ctx, Item{ID: 1, Name: "Cherry", Price: 4, Quantity: 12})
	if err != nil {
		t.Fatalf("UpdateItem returned error: %v", err)
	}
	if !updated {
		t.Fatal("expected update to match a row")
	}

	saved, _ := db.GetItem(ctx, 1)
	if saved.Name != "Cherry" || saved.Price != 4 || saved.Quantity != 12 {
		t.Fatalf("unexpected row after update: %+v", saved)
	}
}

func TestUpdateAndDeleteMissingItem_AreNoOps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	updated, err := db.UpdateItem(ctx, Item{ID: 42, Name: "Ghost"})
	if err != nil {
		t.Fatalf("UpdateItem returned error: %v", err)
	}
	if updated {
		t.Fatal("expected update of missing id to report false")
	}

	deleted, err := db.DeleteItem(ctx, 42)
	if err != nil {
		t.Fatalf("DeleteItem returned error: %v", err)
	}
	if deleted {
		t.Fatal("expected delete of missing id to report false")
	}

	count, err := db.CountItems(ctx)
	if err != nil {
		t.Fatalf("CountItems returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table, got %d rows", count)
	}
}

func TestDeleteItem_RemovesRow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertItem(ctx, &Item{ID: 3, Name: "Pear"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	deleted, err := db.DeleteItem(ctx, 3)
	if err != nil {
		t.Fatalf("DeleteItem returned error: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to match a row")
	}

	saved, err := db.GetItem(ctx, 3)
	if err != nil {
		t.Fatalf("GetItem returned error: %v", err)
	}
	if saved != nil {
		t.Fatalf("expected item to be gone, got %+v", saved)
	}
}

func TestListItems_OrderedByName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, item := range []*Item{
		{ID: 1, Name: "Banana"},
		{ID: 2, Name: "Apple"},
		{ID: 3, Name: "Cherry"},
	} {
		if _, err := db.InsertItem(ctx, item); err != nil {
			t.Fatalf("insert %s failed: %v", item.Name, err)
		}
	}

	items, err := db.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems returned error: %v", err)
	}

	want := []string{"Apple", "Banana", "Cherry"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Fatalf("position %d: expected %q, got %q", i, name, items[i].Name)
		}
	}
}

func TestListItems_EmptyIsNotNil(t *testing.T) {
	db := openTestDB(t)

	items, err := db.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems returned error: %v", err)
	}
	if items == nil {
		t.Fatal("expected empty slice, got nil")
	}
}
