package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"

	"payrecorder.mini/prm/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns prm version and ledger size
// @Response: {"version": "...", "status": "ok", "senders": "...", "records": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	response := map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"hostname":   hostname,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		"storage":    "memory",
	}

	if s.backups != nil {
		response["storage"] = "sqlite"
		if senders, records, err := s.backups.Stats(r.Context()); err == nil {
			response["senders"] = strconv.Itoa(senders)
			response["records"] = strconv.Itoa(records)
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// @Title: Get Logs
// @Route: GET /api/logs?n=...
// @Description: Recent server status messages, newest first
// @Response: Array of log messages
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(n))
}
