package irrigation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// NewHTTPMux exposes the manual irrigation trigger. The handler runs the
// exchange synchronously and maps protocol outcomes onto status codes.
func NewHTTPMux(p *Protocol) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// POST /irrigation/start?device_id=<id>
	mux.HandleFunc("/irrigation/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		deviceID := strings.TrimSpace(r.URL.Query().Get("device_id"))
		if deviceID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device_id is required"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), p.timeout+2*time.Second)
		defer cancel()

		state, err := p.Run(ctx, deviceID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{
				"device_id": deviceID,
				"state":     state.String(),
			})
		case errors.Is(err, ErrAttemptInFlight):
			writeJSON(w, http.StatusConflict, map[string]string{
				"device_id": deviceID,
				"error":     "irrigation already in flight",
			})
		case errors.Is(err, ErrConfirmationTimeout):
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{
				"device_id": deviceID,
				"state":     state.String(),
				"error":     "device did not confirm",
			})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"device_id": deviceID,
				"error":     err.Error(),
			})
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
