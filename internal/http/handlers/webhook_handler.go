// Messaging-platform webhook.
//
//   - POST /webhook
//
// The platform retries deliveries that are not acknowledged quickly, so
// the handler acks 200 immediately and processes the update afterwards in
// a goroutine. Duplicate delivery is tolerated: every state transition in
// the engine is idempotent under redelivery.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	"github.com/filedock/go-file-backend/internal/http/middleware"
)

// Webhook handles POST /webhook. Malformed bodies still get a 200 so the
// platform does not redeliver garbage forever; they are logged and dropped.
func (h *Handlers) Webhook(c *gin.Context) {
	var upd models.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("undecodable webhook update")
		c.String(http.StatusOK, "received")
		return
	}

	c.String(http.StatusOK, "received")

	if h.engine == nil {
		return
	}

	// Detach from the request: the response is already on the wire and the
	// update must be processed even after the client disconnects.
	ctx := context.WithoutCancel(c.Request.Context())
	go h.engine.HandleUpdate(ctx, &upd)
}
