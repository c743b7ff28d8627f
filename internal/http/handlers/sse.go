package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulebud/backend/internal/http/response"
	"github.com/schedulebud/backend/internal/realtime"
	"github.com/schedulebud/backend/internal/requestdata"
)

type SSEHandler struct {
	hub *realtime.Hub
}

func NewSSEHandler(hub *realtime.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream subscribes the caller to their own channel and blocks until
// the connection drops.
func (sh *SSEHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	client := sh.hub.NewClient(rd.UserID)
	sh.hub.AddChannel(client, realtime.UserChannel(rd.UserID))
	defer sh.hub.CloseClient(client)

	sh.hub.ServeHTTP(c.Writer, c.Request, client)
}
