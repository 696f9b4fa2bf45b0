package api

import (
	"net/http"
)

// @Summary      Get new events
// @Description  Retrieves up to 100 activity events addressed to the caller that were recorded after the given event ID.
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        since  query     int  false  "The ID of the last event received. Omit or use 0 to get all events."
// @Success      200    {array}   models.Event
// @Failure      400    {object}  messageResponse
// @Failure      401    {object}  messageResponse
// @Router       /events [get]
func (s *Server) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	events, err := s.services.Events.Since(r.Context(), user, r.URL.Query().Get("since"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
