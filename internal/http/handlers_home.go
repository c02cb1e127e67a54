package httpapi

import (
	"net/http"

	"github.com/skypost/mailing-service/internal/core"
)

// home serves the landing page counters. Anonymous visitors see the
// overview across all newsletters; an authenticated user sees their
// own newsletters plus their attempt totals.
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	ownerID := ""
	u, authed := s.resolveUser(r)
	if authed {
		ownerID = u.ID
	}

	items, err := s.Store.ListNewslettersWithRecipients(r.Context(), ownerID)
	if err != nil {
		storeErr(w, err)
		return
	}
	resp := map[string]any{"newsletters": core.CountNewsletters(items)}

	if authed {
		stats, err := s.Store.ListAttemptStats(r.Context(), u.ID)
		if err != nil {
			storeErr(w, err)
			return
		}
		resp["attempts"] = core.CountAttempts(stats)
	}
	writeJSON(w, http.StatusOK, resp)
}
