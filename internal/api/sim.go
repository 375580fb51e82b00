package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
)

// ─── GET /api/sim/v1/run ──────────────────────────────────────────────────────

// handleSimRun runs the embedded matrix. ?full=1 includes per-case results.
// When SIM_KEY is configured the X-Sim-Key header must match it.
func (s *Server) handleSimRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SimKey != "" {
		key := r.Header.Get("X-Sim-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.SimKey)) != 1 {
			respondErr(w, http.StatusForbidden, "FORBIDDEN")
			return
		}
	}

	full := r.URL.Query().Get("full") == "1"
	respond(w, http.StatusOK, simulate.Run(s.matrix, full))
}
