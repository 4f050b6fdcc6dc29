package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/core/service"
	"github.com/rlin26/cart-engine/internal/port"
)

const userIDHeader = "X-User-ID"

// CartHandler serves the remote cart API: fetch, full-replace save, and
// login-time sync. It is the server half of the port.RemoteStore
// contract.
type CartHandler struct {
	repo port.CartRepository
	log  *zap.Logger
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type itemsBody struct {
	Items []domain.CartItem `json:"items"`
}

type saveBody struct {
	Success bool              `json:"success"`
	Items   []domain.CartItem `json:"items"`
}

type syncReqBody struct {
	LocalItems  []domain.CartItem `json:"localItems"`
	ServerItems []domain.CartItem `json:"serverItems"`
}

func NewCartHandler(repo port.CartRepository, log *zap.Logger) *CartHandler {
	return &CartHandler{repo: repo, log: log}
}

// Cart routes GET and PUT /api/cart.
func (h *CartHandler) Cart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.fetch(w, r)
	case http.MethodPut:
		h.save(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CartHandler) fetch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	items, err := h.repo.GetCart(r.Context(), userID)
	if err != nil {
		h.log.Error("fetch cart failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    port.CodeFetchFailed,
			Message: "could not load cart",
		})
		return
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	writeJSON(w, http.StatusOK, itemsBody{Items: items})
}

func (h *CartHandler) save(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req itemsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "INVALID_REQUEST",
			Message: "invalid request body",
		})
		return
	}

	items := domain.NormalizeItems(req.Items)
	if err := h.repo.ReplaceCart(r.Context(), userID, items); err != nil {
		h.log.Error("save cart failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    port.CodeSaveFailed,
			Message: "could not save cart",
		})
		return
	}
	writeJSON(w, http.StatusOK, saveBody{Success: true, Items: items})
}

// Sync handles POST /api/cart/sync: merge the submitted local and
// server snapshots (local wins on conflict, server-only items are
// appended), persist the result as the user's cart, and return it.
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req syncReqBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "INVALID_REQUEST",
			Message: "invalid request body",
		})
		return
	}

	merged := service.MergeSnapshots(req.LocalItems, req.ServerItems)
	if err := h.repo.ReplaceCart(r.Context(), userID, merged); err != nil {
		h.log.Error("sync cart failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    port.CodeSyncFailed,
			Message: "could not sync cart",
		})
		return
	}
	writeJSON(w, http.StatusOK, itemsBody{Items: merged})
}

func (h *CartHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CartHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "INVALID_REQUEST",
			Message: "missing " + userIDHeader + " header",
		})
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
