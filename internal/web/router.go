// Package web serves a read-only JSON view of the lobby over HTTP.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/playhub/lobby/internal/catalog"
	"github.com/playhub/lobby/internal/leaderboard"
	"github.com/playhub/lobby/internal/lobby"
	"github.com/playhub/lobby/internal/packets"
	"github.com/playhub/lobby/internal/registry"
	"github.com/playhub/lobby/internal/room"
)

// RouterConfig holds what the API reads from.
type RouterConfig struct {
	Logger      *logrus.Logger
	Catalog     *catalog.Catalog
	Rooms       *room.Manager
	Registry    *registry.Registry
	Leaderboard *leaderboard.Service
}

type handler struct {
	RouterConfig
}

// NewRouter creates the API router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &handler{cfg}
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.recovery)
	api.Use(h.logging)

	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/games", h.games).Methods(http.MethodGet)
	api.HandleFunc("/rooms", h.rooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id:[0-9]+}", h.room).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", h.leaderboard).Methods(http.MethodGet)

	return r
}

type healthResponse struct {
	Status      string         `json:"status"`
	Connections int            `json:"connections"`
	Online      int            `json:"online"`
	Rooms       map[string]int `json:"rooms"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	rooms := make(map[string]int)
	for status, n := range h.Rooms.Count() {
		rooms[string(status)] = n
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Connections: h.Registry.Count(),
		Online:      len(h.Registry.Online()),
		Rooms:       rooms,
	})
}

type gameResponse struct {
	ID int `json:"game_id"`
	packets.GameInfo
}

func (h *handler) games(w http.ResponseWriter, _ *http.Request) {
	games := []gameResponse{}
	for _, game := range h.Catalog.List() {
		games = append(games, gameResponse{
			ID: game.ID,
			GameInfo: packets.GameInfo{
				Name:        game.DisplayName(),
				Version:     game.Version,
				PlayersMin:  game.PlayersMin,
				PlayersMax:  game.PlayersMax,
				Developer:   game.Developer,
				Description: game.Description,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

// rooms lists public rooms only; private rooms are never visible here.
func (h *handler) rooms(w http.ResponseWriter, _ *http.Request) {
	rooms := []packets.RoomSummary{}
	for _, snapshot := range h.Rooms.ListPublic() {
		rooms = append(rooms, lobby.RoomSummary(snapshot))
	}
	writeJSON(w, http.StatusOK, packets.RoomList{Rooms: rooms})
}

func (h *handler) room(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	snapshot, err := h.Rooms.Match(id)
	if errors.Is(err, room.ErrRoomNotFound) || (err == nil && snapshot.Visibility != room.Public) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lobby.RoomSummary(snapshot))
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.Leaderboard.Top(r.Context(), limit)
	if err != nil {
		h.Logger.Errorf("failed to load leaderboard: %v", err)
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	board := packets.Leaderboard{Entries: make([]packets.LeaderboardEntry, len(entries))}
	for i, e := range entries {
		board.Entries[i] = packets.LeaderboardEntry{Rank: e.Rank, Username: e.Username, Wins: e.Wins, Played: e.Played}
	}
	writeJSON(w, http.StatusOK, board)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}

func (h *handler) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.Logger.Errorf("panic serving %s: %v, trace: %s", r.URL.Path, err, debug.Stack())
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
