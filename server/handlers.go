package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

// decodeRequest parses the JSON body of r into T.
func decodeRequest[T any](r *http.Request) (T, error) {
	var payload T
	err := json.NewDecoder(r.Body).Decode(&payload)
	return payload, err
}

func returnJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("encode response")
	}
}

func returnError(w http.ResponseWriter, status int, message string) {
	returnJSON(w, status, errorResponse{Error: message})
}

// Root is the liveness probe.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	returnJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
