package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// statusResponse is the body of every subscription reply and of errors.
type statusResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}

func writeStatus(w http.ResponseWriter, log logger.Logger, status int, message string) {
	writeJSON(w, log, status, statusResponse{OK: status < 400, Message: message})
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads one JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeBadBody answers a decodeJSON failure. Decoder details stay in the logs.
func writeBadBody(w http.ResponseWriter, log logger.Logger, err error) {
	message := "invalid JSON body"
	if errors.Is(err, errEmptyBody) {
		message = errEmptyBody.Error()
	}
	log.Debug("rejected request body", logger.Error(err))
	writeStatus(w, log, http.StatusBadRequest, message)
}
