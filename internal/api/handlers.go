package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/internal/config"
	"github.com/yegors/superplane/internal/position"
	"github.com/yegors/superplane/internal/search"
	"github.com/yegors/superplane/internal/storage/sqlite"
	"github.com/yegors/superplane/pkg/logger"
)

const maxHistoryLimit = 500

// Services are the components the API exposes
type Services struct {
	Provider  *search.Provider
	Tracker   *position.Tracker
	Device    *position.PushSource // fixes posted by clients
	Favorites *sqlite.FavoritesStorage
	Settings  *sqlite.SettingsStorage
	History   *sqlite.HistoryStorage
}

// Handler contains the HTTP handlers
type Handler struct {
	services Services
	config   *config.Config
	logger   *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(services Services, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		services: services,
		config:   cfg,
		logger:   log.Named("api-handler"),
	}
}

// taskState describes a search task in responses
type taskState struct {
	TaskID string       `json:"task_id"`
	State  search.State `json:"state"`
}

// outcomeResponse is an outcome plus the display properties of the aircraft
type outcomeResponse struct {
	search.Outcome
	Properties []adsb.Property `json:"properties,omitempty"`
}

func newOutcomeResponse(o search.Outcome) outcomeResponse {
	resp := outcomeResponse{Outcome: o}
	if o.Aircraft != nil {
		resp.Properties = o.Aircraft.Properties()
	}
	return resp
}

// StartSearch starts a closest-aircraft search. With ?wait=true the request
// blocks until the search reports.
func (h *Handler) StartSearch(w http.ResponseWriter, r *http.Request) {
	task, started, err := h.services.Provider.Start(r.Context())
	if err != nil {
		if errors.Is(err, search.ErrProviderClosed) {
			writeError(w, http.StatusServiceUnavailable, "search is shutting down")
			return
		}
		h.logger.Error("Failed to start search", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start search")
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		o, err := task.Wait(r.Context())
		if err != nil {
			// Client went away; the search keeps running
			return
		}
		writeJSON(w, http.StatusOK, newOutcomeResponse(o))
		return
	}

	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	writeJSON(w, status, taskState{TaskID: task.ID(), State: task.State()})
}

// CancelSearch cancels the running search
func (h *Handler) CancelSearch(w http.ResponseWriter, r *http.Request) {
	if !h.services.Provider.Abort() {
		writeError(w, http.StatusConflict, "no search is running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// GetSearch returns the running search, if any, and the last outcome
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	var resp struct {
		Active *taskState       `json:"active"`
		Last   *outcomeResponse `json:"last"`
	}

	if task := h.services.Provider.Active(); task != nil {
		resp.Active = &taskState{TaskID: task.ID(), State: task.State()}
	}
	if o, ok := h.services.Provider.Last(); ok {
		last := newOutcomeResponse(o)
		resp.Last = &last
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetSearchHistory returns recent outcomes, newest first
func (h *Handler) GetSearchHistory(w http.ResponseWriter, r *http.Request) {
	limit := h.config.Search.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	outcomes, err := h.services.History.GetRecentOutcomes(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read search history", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read search history")
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// positionRequest is a fix posted by a client device
type positionRequest struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  float64    `json:"accuracy_m"`
	Time      *time.Time `json:"time,omitempty"`
	Source    string     `json:"source,omitempty"`
}

func (p positionRequest) validate() error {
	switch {
	case p.Latitude == nil || p.Longitude == nil:
		return errors.New("latitude and longitude are required")
	case *p.Latitude < -90 || *p.Latitude > 90:
		return errors.New("latitude out of range")
	case *p.Longitude < -180 || *p.Longitude > 180:
		return errors.New("longitude out of range")
	case p.Accuracy < 0:
		return errors.New("accuracy_m must not be negative")
	}
	return nil
}

// PushPosition delivers a client fix to the tracker. Fixes only count while
// a search is settling.
func (h *Handler) PushPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fix := position.Fix{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.Accuracy,
		Source:    req.Source,
	}
	if req.Time != nil {
		fix.Time = *req.Time
	}

	delivered := h.services.Device.Push(fix)
	writeJSON(w, http.StatusAccepted, map[string]bool{"delivered": delivered})
}

// GetPosition returns the tracker's best fix
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	fix, ok := h.services.Tracker.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no position fix")
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

// GetFavorites lists saved aircraft
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.services.Favorites.GetFavorites(r.Context())
	if err != nil {
		h.logger.Error("Failed to list favorites", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	if favs == nil {
		favs = []*sqlite.FavoriteRecord{}
	}
	writeJSON(w, http.StatusOK, favs)
}

// AddFavorite saves an aircraft. An empty body saves the aircraft found by
// the last search.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var aircraft adsb.Candidate
	if r.ContentLength == 0 {
		o, ok := h.services.Provider.Last()
		if !ok || o.Aircraft == nil {
			writeError(w, http.StatusConflict, "last search found no aircraft")
			return
		}
		aircraft = *o.Aircraft
	} else if err := decodeJSON(r, &aircraft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if aircraft.Key() == "" {
		writeError(w, http.StatusBadRequest, "aircraft needs an id or icao")
		return
	}

	record, err := h.services.Favorites.AddFavorite(r.Context(), aircraft)
	if err != nil {
		h.logger.Error("Failed to add favorite", logger.Error(err), logger.String("key", aircraft.Key()))
		writeError(w, http.StatusInternalServerError, "failed to add favorite")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// RemoveFavorite deletes a saved aircraft
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")

	err := h.services.Favorites.RemoveFavorite(r.Context(), key)
	if errors.Is(err, sqlite.ErrFavoriteNotFound) {
		writeError(w, http.StatusNotFound, "favorite not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to remove favorite", logger.Error(err), logger.String("key", key))
		writeError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// settingsBody is the settings resource
type settingsBody struct {
	SearchRadiusKm *float64 `json:"search_radius_km,omitempty"`
	DownloadImages *bool    `json:"download_images,omitempty"`
}

// GetSettings returns the user settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.readSettings(r.Context())
	if err != nil {
		h.logger.Error("Failed to read settings", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings changes the fields present in the body
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.SearchRadiusKm != nil && *req.SearchRadiusKm <= 0 {
		writeError(w, http.StatusBadRequest, "search_radius_km must be positive")
		return
	}

	ctx := r.Context()
	if req.SearchRadiusKm != nil {
		if err := h.services.Settings.SetSearchRadiusKm(ctx, *req.SearchRadiusKm); err != nil {
			h.logger.Error("Failed to store search radius", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store settings")
			return
		}
	}
	if req.DownloadImages != nil {
		if err := h.services.Settings.SetDownloadImages(ctx, *req.DownloadImages); err != nil {
			h.logger.Error("Failed to store download images flag", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store settings")
			return
		}
	}

	h.GetSettings(w, r)
}

func (h *Handler) readSettings(ctx context.Context) (settingsBody, error) {
	km, err := h.services.Settings.SearchRadiusKm(ctx)
	if err != nil {
		return settingsBody{}, err
	}
	images, err := h.services.Settings.DownloadImages(ctx)
	if err != nil {
		return settingsBody{}, err
	}
	return settingsBody{SearchRadiusKm: &km, DownloadImages: &images}, nil
}

// GetHealth reports liveness and the search state
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"time":            time.Now().UTC(),
		"tracker_running": h.services.Tracker.Running(),
		"search_active":   h.services.Provider.Active() != nil,
		"feed":            h.config.ADSB.SourceType,
	})
}
