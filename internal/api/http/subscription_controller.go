package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"plantkeeper/internal/core"
	"plantkeeper/pkg/domain"
)

type subscriptionRequest struct {
	Entity  domain.EntityType `json:"entity" binding:"required"`
	OwnerID string            `json:"owner_id"`
}

// subscriptions are namespaced per user so names never collide across callers.
func scopedName(ctx *gin.Context) string {
	return currentUser(ctx) + "/" + ctx.Param("name")
}

func (h *handler) PutSubscription(ctx *gin.Context) {
	var req subscriptionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	switch req.Entity {
	case domain.EntityPlant, domain.EntityRoom, domain.EntityProfile:
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity " + string(req.Entity)})
		return
	}
	user := currentUser(ctx)
	if req.OwnerID == "" {
		req.OwnerID = user
	}
	if req.OwnerID != user {
		h.fail(ctx, errForbidden)
		return
	}
	sub := core.Subscription{Entity: req.Entity, Predicate: core.OwnedBy(req.OwnerID)}
	if err := h.svc.AddOrUpdateSubscription(scopedName(ctx), sub); err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"subscription": ctx.Param("name"), "entity": req.Entity, "owner_id": req.OwnerID})
}

func (h *handler) DeleteSubscription(ctx *gin.Context) {
	if !h.svc.RemoveSubscription(scopedName(ctx)) {
		h.fail(ctx, core.ErrUnknownSubscription)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// StreamSubscription upgrades to a WebSocket and forwards committed changes
// until either side closes.
func (h *handler) StreamSubscription(ctx *gin.Context) {
	events, cancel, err := h.svc.Subscribe(scopedName(ctx))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	viewer := currentUser(ctx)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription removed"))
				return
			}
			if err := conn.WriteJSON(eventToAPI(ev, viewer)); err != nil {
				h.log.Debug("websocket write", "subscription", ev.Subscription, "error", err)
				return
			}
		case <-closed:
			return
		}
	}
}
