package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gachabot/internal/auth"
	"gachabot/internal/command"
	"gachabot/internal/config"
	"gachabot/internal/economy"
	"gachabot/internal/game"
	"gachabot/internal/inventory"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 100
)

type Server struct {
	cfg   config.APIConfig
	log   *slog.Logger
	admin *auth.AdminVerifier
	game  *game.Service
	mux   *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, admin *auth.AdminVerifier, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		admin: admin,
		game:  gameSvc,
		mux:   chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/characters", s.handleCharacterSearch)
		r.Get("/characters/{id}", s.handleCharacter)
		r.Get("/shows", s.handleShows)
		r.Get("/users/{id}/balance", s.handleBalance)
		r.Get("/users/{id}/waifus", s.handleWaifus)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/users/{id}/currency", s.handleSetCurrency)
			r.Post("/guilds/{id}/channel", s.handleAssignChannel)
			r.Post("/locks/reset", s.handleResetLocks)
		})
	})
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.admin.Verify(auth.BearerToken(r.Header.Get("Authorization"))); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCharacterSearch(w http.ResponseWriter, r *http.Request) {
	limit := defaultSearchLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	out, err := s.game.SearchCharacters(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": nonNil(out)})
}

func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid character id")
		return
	}
	out, err := s.game.Character(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShows(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	out, err := s.game.ShowsLike(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shows": nonNil(out)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Balance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWaifus(w http.ResponseWriter, r *http.Request) {
	spec, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Inventory(r.Context(), chi.URLParam(r, "id"), spec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"waifus": nonNil(out)})
}

// filterFromQuery accepts the same filters as the chat command: name, rarity
// (1-based stars), series (id), seriesname and fav, each repeatable.
func filterFromQuery(r *http.Request) (command.FilterSpec, error) {
	q := r.URL.Query()
	spec := command.FilterSpec{
		Names:       q["name"],
		SeriesNames: q["seriesname"],
	}
	for _, raw := range q["rarity"] {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > economy.MaxRarity.Stars() {
			return spec, errors.New("rarity must be between 1 and 6")
		}
		spec.Rarity = append(spec.Rarity, economy.Rarity(n-1))
	}
	for _, raw := range q["series"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return spec, errors.New("series must be a numeric id")
		}
		spec.SeriesIDs = append(spec.SeriesIDs, id)
	}
	if raw := q.Get("fav"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			return spec, errors.New("fav must be a boolean")
		}
		spec.FavoritesOnly = fav
	}
	return spec, nil
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := chi.URLParam(r, "id")
	if err := s.game.SetCurrency(r.Context(), userID, in.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("admin set currency", "request_id", middleware.GetReqID(r.Context()), "user_id", userID, "amount", in.Amount)
	out, err := s.game.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignChannel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChannelID string `json:"channel_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	guildID := chi.URLParam(r, "id")
	if err := s.game.AssignChannel(r.Context(), guildID, strings.TrimSpace(in.ChannelID)); err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("admin assign channel", "request_id", middleware.GetReqID(r.Context()), "guild_id", guildID, "channel_id", in.ChannelID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleResetLocks(w http.ResponseWriter, r *http.Request) {
	if err := s.game.ResetLocks(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Warn("admin reset locks", "request_id", middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, inventory.ErrTxConflict) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	switch game.Classify(err) {
	case game.ResultNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case game.ResultUserError, game.ResultAffordability:
		writeError(w, http.StatusBadRequest, err.Error())
	case game.ResultLockConflict, game.ResultConcurrentMutation:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
