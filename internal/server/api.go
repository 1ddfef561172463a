package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/services"
	"github.com/desertthunder/linkd/internal/shared"
)

const (
	msgUnlinked = "account unlinked, ask administrator to log in"
	msgUpstream = "error communicating with provider, try again later"
)

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePlain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

// writeProviderError answers 503 for every data endpoint failure. No token, or one that
// cannot be refreshed, reads as an unlinked account.
func writeProviderError(w http.ResponseWriter, logger *log.Logger, err error) {
	switch {
	case errors.Is(err, shared.ErrNotLinked),
		errors.Is(err, shared.ErrExchangeFailed),
		errors.Is(err, shared.ErrConfigurationMissing):
		logger.Warn("provider unavailable", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody(msgUnlinked))
	default:
		logger.Error("provider request failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody(msgUpstream))
	}
}

// SpotifyHandler serves the linked Spotify account's data.
type SpotifyHandler struct {
	svc    *services.SpotifyService
	logger *log.Logger
}

// NewSpotifyHandler creates a [SpotifyHandler].
func NewSpotifyHandler(svc *services.SpotifyService, logger *log.Logger) *SpotifyHandler {
	return &SpotifyHandler{svc: svc, logger: shared.WithLogger(logger, "handler", "spotify")}
}

// TopSongs handles GET /api/spotify/songs/top.
func (h *SpotifyHandler) TopSongs(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.svc.TopTracks(r.Context())
	if err != nil {
		writeProviderError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// GPhotosHandler serves the linked Google Photos library.
type GPhotosHandler struct {
	svc    *services.GPhotosService
	logger *log.Logger
}

// NewGPhotosHandler creates a [GPhotosHandler].
func NewGPhotosHandler(svc *services.GPhotosService, logger *log.Logger) *GPhotosHandler {
	return &GPhotosHandler{svc: svc, logger: shared.WithLogger(logger, "handler", "gphotos")}
}

// Albums handles GET /api/gphotos/albums.
func (h *GPhotosHandler) Albums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.svc.Albums(r.Context())
	if err != nil {
		writeProviderError(w, h.logger, err)
		return
	}
	if len(albums) == 0 {
		writeProviderError(w, h.logger, shared.ErrServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"albums": albums})
}

// Image handles GET /api/gphotos/image: the configured album's items plus one picked at random.
func (h *GPhotosHandler) Image(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Images(r.Context(), h.svc.AlbumID())
	if err != nil {
		writeProviderError(w, h.logger, err)
		return
	}

	random, ok := h.svc.RandomImage(items)
	if !ok {
		writeProviderError(w, h.logger, shared.ErrServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": items, "random": random})
}
