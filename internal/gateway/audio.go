package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/echomate/echomate/internal/artifact"
)

// handleGetAudio serves GET /get_audio/{filename}: the WAV clip of a reply.
func (g *Gateway) handleGetAudio() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.audio == nil {
			http.NotFound(w, r)
			return
		}

		f, info, err := g.audio.Open(chi.URLParam(r, "filename"))
		switch {
		case errors.Is(err, artifact.ErrNotFound), errors.Is(err, artifact.ErrInvalidName):
			writeError(w, http.StatusNotFound, "audio not found", "not_found")
			return
		case err != nil:
			g.logger.Error("opening reply audio failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error", "internal")
			return
		}
		defer func() { _ = f.Close() }()

		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Cache-Control", "private, max-age=3600, immutable")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}
