package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/inventory/internal/config"
	"github.com/saltyorg/inventory/internal/inventory"
	"github.com/saltyorg/inventory/internal/livequery"
	"github.com/saltyorg/inventory/internal/watch"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items",
	}
	cmd.AddCommand(
		newItemAddCmd(),
		newItemUpdateCmd(),
		newItemDeleteCmd(),
		newItemGetCmd(),
		newItemListCmd(),
		newItemWatchCmd(),
	)
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mutationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), config.GetTimeouts().Mutation)
}

// currentItem reads the stored item with id
func currentItem(ctx context.Context, dao inventory.ItemDao, id int64) (*inventory.Item, error) {
	item, err := livequery.First(ctx, dao.GetItem(ctx, id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d not found", id)
	}
	return item, nil
}

func newItemAddCmd() *cobra.Command {
	var item inventory.Item

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert an item (an existing id is left unchanged)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctx, cancel := mutationContext(cmd)
			defer cancel()

			dao := store.ItemDao()
			if err := dao.Insert(ctx, &item); err != nil {
				return err
			}

			stored, err := currentItem(ctx, dao, item.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stored)
		},
	}

	cmd.Flags().Int64Var(&item.ID, "id", 0, "Item id (0 assigns the next free id)")
	cmd.Flags().StringVar(&item.Name, "name", "", "Item name")
	cmd.Flags().Float64Var(&item.Price, "price", 0, "Unit price")
	cmd.Flags().IntVar(&item.Quantity, "quantity", 0, "Quantity in stock")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newItemUpdateCmd() *cobra.Command {
	var (
		name     string
		price    float64
		quantity int
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an existing item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctx, cancel := mutationContext(cmd)
			defer cancel()

			dao := store.ItemDao()
			item, err := currentItem(ctx, dao, id)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				item.Name = name
			}
			if flags.Changed("price") {
				item.Price = price
			}
			if flags.Changed("quantity") {
				item.Quantity = quantity
			}

			if err := dao.Update(ctx, *item); err != nil {
				return err
			}

			stored, err := currentItem(ctx, dao, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stored)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().Float64Var(&price, "price", 0, "New unit price")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "New quantity")

	return cmd
}

func newItemDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item (a missing id is not an error)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctx, cancel := mutationContext(cmd)
			defer cancel()

			if err := store.ItemDao().Delete(ctx, inventory.Item{ID: id}); err != nil {
				return err
			}
			log.Info().Int64("item_id", id).Msg("Item deleted")
			return nil
		},
	}
}

func newItemGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			item, err := currentItem(cmd.Context(), store.ItemDao(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
}

func newItemListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every item ordered by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctx := cmd.Context()
			items, err := livequery.First(ctx, store.ItemDao().GetItems(ctx))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
}

func newItemWatchCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the item list (or one item with --id) every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			// Writes from other processes only show up through the file watcher
			if cfg.Watch.Enabled {
				watcher, err := watch.New(store.Path(), store.Hub(), cfg.Watch.Debounce)
				if err != nil {
					return err
				}
				if err := watcher.Start(); err != nil {
					watcher.Stop()
					return err
				}
				defer watcher.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			if cmd.Flags().Changed("id") {
				return streamJSON(ctx, enc, store.ItemDao().GetItem(ctx, id))
			}
			return streamJSON(ctx, enc, store.ItemDao().GetItems(ctx))
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Watch a single item")
	return cmd
}

// streamJSON writes each emission of sub as one JSON line until ctx ends
func streamJSON[T any](ctx context.Context, enc *json.Encoder, sub *livequery.Subscription[T]) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case value, ok := <-sub.Updates():
			if !ok {
				return sub.Err()
			}
			if err := enc.Encode(value); err != nil {
				return err
			}
		}
	}
}
