package controllers

import (
	"microfinance/realtime"
	"net/http"
)

// RealtimeController подключает сотрудников к ленте событий
type RealtimeController struct {
	hub *realtime.Hub
}

func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

// Connect переводит соединение в websocket
func (c *RealtimeController) Connect(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	c.hub.HandleWebSocket(w, r, user.UserID)
}
