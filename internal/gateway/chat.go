package gateway

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/turn"
)

// multipartMemory is how much of an upload is kept in memory before the
// rest spills to a temp file.
const multipartMemory = 4 << 20

// handleChat serves POST /chat: one multipart upload with an "audio" file
// field in, one turn result out.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.turns == nil {
			writeError(w, http.StatusServiceUnavailable, "pipeline not ready", "unavailable")
			return
		}

		if err := security.ValidateUploadSize(r.ContentLength, g.config.MaxUploadBytes); err != nil {
			g.rejectUpload(w, r, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				g.rejectUpload(w, r, err)
				return
			}
			writeError(w, http.StatusBadRequest, "expected multipart/form-data", "bad_request")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, _, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no audio file", "bad_request")
			return
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading audio file failed", "bad_request")
			return
		}

		id, err := sessionID(r.FormValue("session_id"), r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
			return
		}

		res, err := g.turns.HandleTurn(r.Context(), turn.Request{
			SessionID:  id,
			Audio:      data,
			ReceivedAt: time.Now(),
		})
		if err != nil {
			code, body := newTurnError(err)
			writeJSON(w, code, body)
			return
		}
		writeJSON(w, http.StatusOK, newTurnResponse(res))
	}
}

func (g *Gateway) rejectUpload(w http.ResponseWriter, r *http.Request, err error) {
	g.audit.Log(security.AuditEvent{Type: security.EventUploadReject, Client: clientKey(r), Detail: err.Error()})
	writeError(w, http.StatusRequestEntityTooLarge, "audio file too large", "too_large")
}
