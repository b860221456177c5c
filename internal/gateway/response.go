package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/echomate/echomate/internal/turn"
)

// audioPath is the prefix of audio_url values handed to clients.
const audioPath = "/get_audio/"

// turnResponse is the JSON body of a successful turn. text and audio_url
// are the keys the embedded client parses.
type turnResponse struct {
	Text         string   `json:"text"`
	AudioURL     string   `json:"audio_url"`
	SessionEnded bool     `json:"session_ended"`
	Intent       string   `json:"intent"`
	Degraded     []string `json:"degraded,omitempty"`
}

func newTurnResponse(res turn.Result) turnResponse {
	resp := turnResponse{
		Text:         res.ReplyText,
		SessionEnded: res.SessionEnded,
		Intent:       res.Intent.String(),
	}
	if res.AudioRef != "" {
		resp.AudioURL = audioPath + res.AudioRef
	}
	for _, s := range res.Degraded {
		resp.Degraded = append(resp.Degraded, string(s))
	}
	return resp
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// turnErrorMessages are the client-facing texts per error kind. Upstream
// error details stay in the server log.
var turnErrorMessages = map[turn.ErrorKind]string{
	turn.KindEmptyAudio:          "empty audio payload",
	turn.KindMissingSession:      "missing session id",
	turn.KindNormalizationFailed: "audio could not be decoded",
	turn.KindSynthesisFailed:     "speech synthesis failed",
	turn.KindSessionNotFound:     "internal error",
	turn.KindCanceled:            "turn canceled",
}

// turnStatus maps a turn error to an HTTP status code.
func turnStatus(kind turn.ErrorKind) int {
	switch {
	case kind.ClientError():
		return http.StatusBadRequest
	case kind == turn.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newTurnError(err error) (int, errorResponse) {
	kind := turn.KindOf(err)
	msg, ok := turnErrorMessages[kind]
	if !ok {
		msg = "internal error"
	}
	return turnStatus(kind), errorResponse{Error: msg, Kind: kind.String()}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, kind string) {
	writeJSON(w, code, errorResponse{Error: msg, Kind: kind})
}
