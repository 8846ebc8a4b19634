package inventory

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/database"
	"github.com/saltyorg/inventory/internal/livequery"
)

// Item is the stored inventory record
type Item = database.Item

// ItemDao is the data access gateway for items.
//
// Mutations run on the database's background writer. The blocking forms wait
// for persistence; the Async forms return the pending Task instead. Queries
// return live subscriptions that re-emit whenever the item table changes.
type ItemDao interface {
	// Insert adds item. An existing id is left untouched and is not an error.
	// With a zero id the assigned id is written back once the call returns.
	Insert(ctx context.Context, item *Item) error
	// Update replaces the stored fields for item.ID; a missing id is a no-op.
	Update(ctx context.Context, item Item) error
	// Delete removes the item with item.ID; a missing id is a no-op.
	Delete(ctx context.Context, item Item) error

	InsertAsync(ctx context.Context, item *Item) *Task
	UpdateAsync(ctx context.Context, item Item) *Task
	DeleteAsync(ctx context.Context, item Item) *Task

	// GetItem streams the item with id, or nil while it does not exist.
	GetItem(ctx context.Context, id int64) *livequery.Subscription[*Item]
	// GetItems streams every item ordered by name.
	GetItems(ctx context.Context) *livequery.Subscription[[]Item]
}

type itemDao struct {
	db       *database.DB
	hub      *livequery.Hub
	writer   *writer
	validate *validator.Validate
}

func newItemDao(db *database.DB, hub *livequery.Hub, w *writer) *itemDao {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// NaN and Inf cannot be encoded as JSON
	_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	})

	return &itemDao{
		db:       db,
		hub:      hub,
		writer:   w,
		validate: validate,
	}
}

// check validates item before it is queued
func (d *itemDao) check(item Item) error {
	if err := d.validate.Struct(item); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return nil
}

func (d *itemDao) Insert(ctx context.Context, item *Item) error {
	return d.InsertAsync(ctx, item).Wait(ctx)
}

func (d *itemDao) Update(ctx context.Context, item Item) error {
	return d.UpdateAsync(ctx, item).Wait(ctx)
}

func (d *itemDao) Delete(ctx context.Context, item Item) error {
	return d.DeleteAsync(ctx, item).Wait(ctx)
}

func (d *itemDao) InsertAsync(ctx context.Context, item *Item) *Task {
	if item == nil {
		return completedTask(fmt.Errorf("%w: nil item", ErrInvalidItem))
	}
	if err := d.check(*item); err != nil {
		return completedTask(err)
	}

	return d.writer.Submit(ctx, func(ctx context.Context) error {
		inserted, err := d.db.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		if !inserted {
			log.Debug().Int64("item_id", item.ID).Msg("Item already exists, insert ignored")
			return nil
		}

		log.Debug().Int64("item_id", item.ID).Str("name", item.Name).Msg("Item inserted")
		d.hub.Notify(database.ItemTable)
		return nil
	})
}

func (d *itemDao) UpdateAsync(ctx context.Context, item Item) *Task {
	if err := d.check(item); err != nil {
		return completedTask(err)
	}

	return d.writer.Submit(ctx, func(ctx context.Context) error {
		updated, err := d.db.UpdateItem(ctx, item)
		if err != nil {
			return err
		}
		if !updated {
			log.Debug().Int64("item_id", item.ID).Msg("No item to update")
			return nil
		}

		log.Debug().Int64("item_id", item.ID).Msg("Item updated")
		d.hub.Notify(database.ItemTable)
		return nil
	})
}

func (d *itemDao) DeleteAsync(ctx context.Context, item Item) *Task {
	return d.writer.Submit(ctx, func(ctx context.Context) error {
		deleted, err := d.db.DeleteItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if !deleted {
			log.Debug().Int64("item_id", item.ID).Msg("No item to delete")
			return nil
		}

		log.Debug().Int64("item_id", item.ID).Msg("Item deleted")
		d.hub.Notify(database.ItemTable)
		return nil
	})
}

func (d *itemDao) GetItem(ctx context.Context, id int64) *livequery.Subscription[*Item] {
	return livequery.Watch(ctx, d.hub, func(ctx context.Context) (*Item, error) {
		return d.db.GetItem(ctx, id)
	}, database.ItemTable)
}

func (d *itemDao) GetItems(ctx context.Context) *livequery.Subscription[[]Item] {
	return livequery.Watch(ctx, d.hub, d.db.ListItems, database.ItemTable)
}
