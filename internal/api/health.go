package api

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"

	"carbonex.market/cmx/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status and the last committed block
// @Response: {"status": "ok", "mode": "standalone", "height": 12, "app_hash": "..."}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"mode":     s.mode,
		"height":   s.chain.Height(),
		"app_hash": hex.EncodeToString(s.chain.AppHash()),
	})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns cmx version and build details
// @Response: {"version": "...", "status": "ok", "build_time": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"hostname":   hostname,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}

// @Title: Get Recent Logs
// @Route: GET /api/logs?n=<count>
// @Description: Returns the most recent log messages, newest first. Defaults to 50.
// @Response: [{"timestamp": "...", "text": "...", "level": "info"}]
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid n parameter")
			return
		}
		n = parsed
	}
	if s.logger == nil {
		s.writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(n))
}
