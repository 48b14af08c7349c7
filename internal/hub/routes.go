package hub

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/holocons/waypoints/internal/dispatch"
	"github.com/holocons/waypoints/internal/traveler"
)

// NewRouter exposes the player websocket and the operator endpoints.
func NewRouter(h *Hub, loop *dispatch.Loop, travelers *traveler.Registry) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.ServeWs)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		h.onLoop(w, r, loop, func(ctx context.Context) error { return travelers.SaveAll(ctx) })
	}).Methods(http.MethodPost)
	admin.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		h.onLoop(w, r, loop, func(ctx context.Context) error { return travelers.LoadAll(ctx) })
	}).Methods(http.MethodPost)
	admin.HandleFunc("/travelers/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		var (
			rec   traveler.Record
			found bool
		)
		if err := loop.Do(r.Context(), func() {
			if t, ok := travelers.Lookup(id); ok {
				rec, found = t.Record(), true
			}
		}); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec)
	}).Methods(http.MethodGet)
	return r
}

func (h *Hub) onLoop(w http.ResponseWriter, r *http.Request, loop *dispatch.Loop, fn func(context.Context) error) {
	ctx := r.Context()
	var opErr error
	if err := loop.Do(ctx, func() { opErr = fn(ctx) }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if opErr != nil {
		h.log.Error().Err(opErr).Str("path", r.URL.Path).Msg("admin operation failed")
		http.Error(w, opErr.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
