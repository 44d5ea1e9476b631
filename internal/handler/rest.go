package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/store-catalog/internal/middleware"
	"github.com/vyrodovalexey/store-catalog/internal/model"
	"github.com/vyrodovalexey/store-catalog/internal/repository"
)

// Version is the application version.
const Version = "1.0.0"

// Response messages.
const (
	msgStoreNotFound = "Store not found"
	msgItemNotFound  = "Item not found"
	msgStoreExists   = "Store already exist!"
	msgItemExists    = "Item already exist!"
	msgStoreHasItems = "Store still has items"
	msgStoreDeleted  = "Store deleted."
	msgItemDeleted   = "Item deleted."
	msgInvalidID     = "invalid ID"
	msgInternal      = "internal server error"
)

// RESTHandler handles REST API requests for stores and items.
type RESTHandler struct {
	repo   repository.Repository
	logger *zap.Logger
	events EventPublisher

	// commitMu serializes mutations with their events; seq is guarded by it.
	commitMu sync.Mutex
	seq      uint64
}

// NewRESTHandler creates a new RESTHandler instance. A nil publisher
// discards events.
func NewRESTHandler(repo repository.Repository, logger *zap.Logger, events EventPublisher) *RESTHandler {
	if events == nil {
		events = nopPublisher{}
	}
	h := &RESTHandler{
		repo:   repo,
		logger: logger,
		events: events,
	}

	// Seeded records exist before any request is served.
	h.refreshRecordGauges(context.Background())

	return h
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	h.RegisterProbeRoutes(router)

	router.HandleFunc("/stores", h.ListStores).Methods(http.MethodGet)
	router.HandleFunc("/store", h.CreateStore).Methods(http.MethodPost)
	router.HandleFunc("/store/{id}", h.GetStore).Methods(http.MethodGet)
	router.HandleFunc("/store/{id}", h.UpdateStore).Methods(http.MethodPut)
	router.HandleFunc("/store/{id}", h.DeleteStore).Methods(http.MethodDelete)

	router.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/item", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/item/{id}", h.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/item/{id}", h.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc("/item/{id}", h.DeleteItem).Methods(http.MethodDelete)
}

// RegisterProbeRoutes registers the health and readiness routes.
func (h *RESTHandler) RegisterProbeRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Stores: stats.Stores,
		Items:  stats.Items,
	})
}

// ListStores handles GET /stores requests.
func (h *RESTHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.repo.ListStores(r.Context())
	if err != nil {
		h.logger.Error("failed to list stores", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to retrieve stores")
		return
	}

	h.writeJSON(w, http.StatusOK, model.StoreList{Stores: stores})
}

// GetStore handles GET /store/{id} requests.
func (h *RESTHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	store, err := h.repo.GetStore(r.Context(), id)
	if err != nil {
		h.handleRepositoryError(w, err, "get store")
		return
	}

	h.writeJSON(w, http.StatusOK, store)
}

// CreateStore handles POST /store requests.
func (h *RESTHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	input, ok := decode(h, w, r, model.StoreFromPayload)
	if !ok {
		return
	}

	var store *model.Store
	err := h.commit(r, func() ([]model.Event, error) {
		var err error
		if store, err = h.repo.CreateStore(r.Context(), input); err != nil {
			return nil, err
		}
		return []model.Event{model.NewEvent(model.EventStoreCreated, store.ID, store)}, nil
	})
	h.recordMutation(r.Context(), entityStore, "create", err)
	if err != nil {
		h.handleRepositoryError(w, err, "create store")
		return
	}

	h.writeJSON(w, http.StatusCreated, store)
}

// UpdateStore handles PUT /store/{id} requests.
func (h *RESTHandler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.repo.GetStore(r.Context(), id); err != nil {
		h.handleRepositoryError(w, err, "update store")
		return
	}

	patch, ok := decode(h, w, r, model.StoreFromPayload)
	if !ok {
		return
	}

	var store *model.Store
	err := h.commit(r, func() ([]model.Event, error) {
		var err error
		if store, err = h.repo.UpdateStore(r.Context(), id, patch); err != nil {
			return nil, err
		}
		return []model.Event{model.NewEvent(model.EventStoreUpdated, store.ID, store)}, nil
	})
	h.recordMutation(r.Context(), entityStore, "update", err)
	if err != nil {
		h.handleRepositoryError(w, err, "update store")
		return
	}

	h.writeJSON(w, http.StatusOK, store)
}

// DeleteStore handles DELETE /store/{id} requests. Items removed by a
// cascade are announced before the store.
func (h *RESTHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.commit(r, func() ([]model.Event, error) {
		removed, err := h.repo.DeleteStore(r.Context(), id)
		if err != nil {
			return nil, err
		}
		events := make([]model.Event, 0, len(removed)+1)
		for _, itemID := range removed {
			events = append(events, model.NewEvent(model.EventItemDeleted, itemID, nil))
		}
		return append(events, model.NewEvent(model.EventStoreDeleted, id, nil)), nil
	})
	h.recordMutation(r.Context(), entityStore, "delete", err)
	if err != nil {
		h.handleRepositoryError(w, err, "delete store")
		return
	}

	h.writeJSON(w, http.StatusOK, model.MessageResponse{Message: msgStoreDeleted})
}

// ListItems handles GET /items requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListItems(r.Context())
	if err != nil {
		h.logger.Error("failed to list items", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to retrieve items")
		return
	}

	h.writeJSON(w, http.StatusOK, model.ItemList{Items: items})
}

// GetItem handles GET /item/{id} requests.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.repo.GetItem(r.Context(), id)
	if err != nil {
		h.handleRepositoryError(w, err, "get item")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// CreateItem handles POST /item requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	input, ok := decode(h, w, r, model.ItemFromPayload)
	if !ok {
		return
	}

	var item *model.Item
	err := h.commit(r, func() ([]model.Event, error) {
		var err error
		if item, err = h.repo.CreateItem(r.Context(), input); err != nil {
			return nil, err
		}
		return []model.Event{model.NewEvent(model.EventItemCreated, item.ID, item)}, nil
	})
	h.recordMutation(r.Context(), entityItem, "create", err)
	if err != nil {
		h.handleRepositoryError(w, err, "create item")
		return
	}

	h.writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /item/{id} requests.
func (h *RESTHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.repo.GetItem(r.Context(), id); err != nil {
		h.handleRepositoryError(w, err, "update item")
		return
	}

	patch, ok := decode(h, w, r, model.ItemPatchFromPayload)
	if !ok {
		return
	}

	var item *model.Item
	err := h.commit(r, func() ([]model.Event, error) {
		var err error
		if item, err = h.repo.UpdateItem(r.Context(), id, patch); err != nil {
			return nil, err
		}
		return []model.Event{model.NewEvent(model.EventItemUpdated, item.ID, item)}, nil
	})
	h.recordMutation(r.Context(), entityItem, "update", err)
	if err != nil {
		h.handleRepositoryError(w, err, "update item")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /item/{id} requests.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.commit(r, func() ([]model.Event, error) {
		if err := h.repo.DeleteItem(r.Context(), id); err != nil {
			return nil, err
		}
		return []model.Event{model.NewEvent(model.EventItemDeleted, id, nil)}, nil
	})
	h.recordMutation(r.Context(), entityItem, "delete", err)
	if err != nil {
		h.handleRepositoryError(w, err, "delete item")
		return
	}

	h.writeJSON(w, http.StatusOK, model.MessageResponse{Message: msgItemDeleted})
}

// commit runs a repository mutation and publishes the events it returns
// while holding commitMu, so the feed carries mutations in commit order.
// Events are numbered from 1 in that order.
func (h *RESTHandler) commit(r *http.Request, mutate func() ([]model.Event, error)) error {
	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	events, err := mutate()
	if err != nil {
		return err
	}

	for _, event := range events {
		h.seq++
		event.Seq = h.seq
		h.publish(r, event)
	}
	return nil
}

// decode reads the request body and converts it with build. On failure it
// writes a 400 response and returns false.
func decode[T any](h *RESTHandler, w http.ResponseWriter, r *http.Request, build func(model.Payload) (T, error)) (T, bool) {
	var zero T

	payload, err := model.DecodePayload(r.Body)
	if err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, model.ErrInvalidBody.Error())
		return zero, false
	}

	out, err := build(payload)
	if err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return zero, false
	}

	return out, true
}

// handleRepositoryError maps repository errors to HTTP responses.
func (h *RESTHandler) handleRepositoryError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, repository.ErrStoreNotFound):
		h.writeError(w, http.StatusNotFound, msgStoreNotFound)
	case errors.Is(err, repository.ErrItemNotFound):
		h.writeError(w, http.StatusNotFound, msgItemNotFound)
	case errors.Is(err, repository.ErrStoreExists):
		h.writeError(w, http.StatusBadRequest, msgStoreExists)
	case errors.Is(err, repository.ErrItemExists):
		h.writeError(w, http.StatusBadRequest, msgItemExists)
	case errors.Is(err, repository.ErrStoreHasItems):
		h.writeError(w, http.StatusBadRequest, msgStoreHasItems)
	case errors.Is(err, repository.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
	default:
		h.logger.Error("repository operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// recordMutation counts a mutation and refreshes the record gauges.
func (h *RESTHandler) recordMutation(ctx context.Context, entity, operation string, err error) {
	outcome := outcomeSuccess
	switch {
	case err == nil:
	case isClientError(err):
		outcome = outcomeRejected
	default:
		outcome = outcomeError
	}
	catalogMutationsTotal.WithLabelValues(entity, operation, outcome).Inc()

	if err == nil {
		h.refreshRecordGauges(ctx)
	}
}

// refreshRecordGauges sets catalog_records from the repository counts.
func (h *RESTHandler) refreshRecordGauges(ctx context.Context) {
	stats, err := h.repo.Stats(ctx)
	if err != nil {
		h.logger.Debug("failed to read catalog stats", zap.Error(err))
		return
	}
	catalogRecords.WithLabelValues(entityStore).Set(float64(stats.Stores))
	catalogRecords.WithLabelValues(entityItem).Set(float64(stats.Items))
}

func isClientError(err error) bool {
	return errors.Is(err, repository.ErrStoreNotFound) ||
		errors.Is(err, repository.ErrItemNotFound) ||
		errors.Is(err, repository.ErrStoreExists) ||
		errors.Is(err, repository.ErrItemExists) ||
		errors.Is(err, repository.ErrStoreHasItems) ||
		errors.Is(err, repository.ErrInvalidID)
}

func (h *RESTHandler) publish(r *http.Request, event model.Event) {
	h.logger.Debug("catalog changed",
		zap.String("event", event.Type),
		zap.String("id", event.ID),
		zap.Uint64("seq", event.Seq),
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	h.events.Publish(event)
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
