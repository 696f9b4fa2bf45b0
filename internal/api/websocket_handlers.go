package api

import (
	"modelhub/internal/logger"
	"modelhub/internal/websocket"
	"net/http"
)

// ServeWsHandler upgrades to a websocket that receives the caller's activity
// events live. Browsers cannot set headers on the handshake, so the token
// comes in the query string.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	user, err := s.services.Auth.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		log.Debug().Err(err).Msg("websocket connection attempt rejected")
		s.writeError(w, r, err)
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(s.wsHub, conn, user.ID)
	if !s.wsHub.Attach(client) {
		log.Debug().Int64("user_id", user.ID).Msg("websocket hub stopped, closing connection")
		conn.Close()
		return
	}

	go client.ReadPump()
	go client.WritePump()
}
