package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/inventory"
	"github.com/saltyorg/inventory/internal/maintenance"
)

// VersionInfo holds application version information
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// MaintenanceStatus reports the storage upkeep schedule
type MaintenanceStatus interface {
	Status() maintenance.Status
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store       *inventory.Database
	dao         inventory.ItemDao
	upgrader    websocket.Upgrader
	maintenance MaintenanceStatus
	versionInfo VersionInfo
	mu          sync.RWMutex
}

// New creates a new Handlers instance
func New(store *inventory.Database) *Handlers {
	return &Handlers{
		store: store,
		dao:   store.ItemDao(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SetVersionInfo sets the version reported by the health endpoint
func (h *Handlers) SetVersionInfo(info VersionInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.versionInfo = info
}

// SetMaintenance attaches the maintenance scheduler
func (h *Handlers) SetMaintenance(m MaintenanceStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maintenance = m
}

func (h *Handlers) jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
