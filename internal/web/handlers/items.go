package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/config"
	"github.com/saltyorg/inventory/internal/inventory"
	"github.com/saltyorg/inventory/internal/livequery"
)

// itemID parses the {id} URL parameter
func itemID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func mutationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), config.GetTimeouts().Mutation)
}

func (h *Handlers) mutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrInvalidItem):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		h.jsonError(w, "Timed out waiting for the database", http.StatusGatewayTimeout)
	case errors.Is(err, inventory.ErrClosed):
		h.jsonError(w, "Database is closed", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Item mutation failed")
		h.jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// current reads the stored item with id from a one-shot stream
func (h *Handlers) current(ctx context.Context, id int64) (*inventory.Item, error) {
	return livequery.First(ctx, h.dao.GetItem(ctx, id))
}

// ListItems returns every item ordered by name
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := livequery.First(r.Context(), h.dao.GetItems(r.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list items")
		h.jsonError(w, "Failed to list items", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, http.StatusOK, items)
}

// GetItem returns one item
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.jsonError(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	item, err := h.current(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("item_id", id).Msg("Failed to get item")
		h.jsonError(w, "Failed to get item", http.StatusInternalServerError)
		return
	}
	if item == nil {
		h.jsonError(w, "Item not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, http.StatusOK, item)
}

// CreateItem inserts an item and returns the stored row with 201.
// Posting an id that already exists leaves the stored row unchanged and
// answers 200 with that row, so the caller can see its insert was ignored.
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var item inventory.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.jsonError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := mutationContext(r)
	defer cancel()

	if err := h.dao.Insert(ctx, &item); err != nil {
		h.mutationError(w, err)
		return
	}

	stored, err := h.current(ctx, item.ID)
	if err != nil || stored == nil {
		log.Error().Err(err).Int64("item_id", item.ID).Msg("Failed to read inserted item")
		h.jsonError(w, "Failed to read inserted item", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if *stored != item {
		log.Debug().Int64("item_id", item.ID).Msg("Item already exists, returning stored row")
		status = http.StatusOK
	}
	h.jsonResponse(w, status, stored)
}

// UpdateItem replaces the fields of an existing item
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.jsonError(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	var item inventory.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.jsonError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	item.ID = id

	ctx, cancel := mutationContext(r)
	defer cancel()

	if err := h.dao.Update(ctx, item); err != nil {
		h.mutationError(w, err)
		return
	}

	stored, err := h.current(ctx, id)
	if err != nil {
		log.Error().Err(err).Int64("item_id", id).Msg("Failed to read updated item")
		h.jsonError(w, "Failed to read updated item", http.StatusInternalServerError)
		return
	}
	if stored == nil {
		h.jsonError(w, "Item not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, http.StatusOK, stored)
}

// DeleteItem removes an item; deleting a missing id succeeds
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.jsonError(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := mutationContext(r)
	defer cancel()

	if err := h.dao.Delete(ctx, inventory.Item{ID: id}); err != nil {
		h.mutationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
