package report

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/smartpotsystem/smartpot/internal/storage"
)

type manualRequest struct {
	DeviceID  string `json:"device_id"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

// NewHTTPMux exposes report compilation, artifact retrieval and the latest
// device snapshots.
func NewHTTPMux(c *Compiler, reports storage.ReportStore, states storage.DeviceStateStore) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/reports/manual", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req manualRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}
		name, err := c.Manual(r.Context(), req.DeviceID, req.StartHour, req.EndHour)
		switch {
		case errors.Is(err, ErrInvalidHours):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrNoSamplesInWindow):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		case err != nil:
			log.Printf("report: manual compile: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report generation failed"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"report_filename": name})
		}
	})

	mux.HandleFunc("/reports/daily", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name, err := c.Daily(r.Context())
		switch {
		case errors.Is(err, ErrNoRawData):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no raw data found"})
		case err != nil:
			log.Printf("report: daily compile: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report generation failed"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"report_filename": name})
		}
	})

	mux.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		infos, err := reports.List()
		if err != nil {
			log.Printf("report: list artifacts: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": infos})
	})

	mux.HandleFunc("/reports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/reports/")
		if name == "" || strings.Contains(name, "/") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing report name"})
			return
		}
		blob, err := reports.Get(name)
		if errors.Is(err, storage.ErrReportNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		if err != nil {
			log.Printf("report: fetch %s: %v", name, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "fetch failed"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(blob)
	})

	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		all, err := states.All(r.Context())
		if err != nil {
			log.Printf("report: latest snapshots: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": all})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("report: write response: %v", err)
	}
}
