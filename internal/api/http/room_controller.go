package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plantkeeper/internal/core"
	"plantkeeper/pkg/domain"
)

type roomRequest struct {
	Name     *string  `json:"name"`
	Notes    *string  `json:"notes"`
	PlantIDs []string `json:"plant_ids"`
}

func (h *handler) ownedRoom(ctx *gin.Context) (domain.Room, bool) {
	room, err := h.svc.GetRoom(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, err)
		return domain.Room{}, false
	}
	if !domain.IsOwner(&room, currentUser(ctx)) {
		h.fail(ctx, errForbidden)
		return domain.Room{}, false
	}
	return room, true
}

func (h *handler) CreateRoom(ctx *gin.Context) {
	var req roomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Name == nil || *req.Name == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	room := domain.Room{Name: *req.Name, PlantIDs: req.PlantIDs}
	if req.Notes != nil {
		room.Notes = *req.Notes
	}
	created, res, err := h.svc.CreateRoom(ctx.Request.Context(), room)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"room": roomToAPI(created), "violations": violationsToAPI(res.Violations)})
}

func (h *handler) ListRooms(ctx *gin.Context) {
	rooms, err := h.svc.QueryRooms(ctx.Request.Context(), core.RoomsOwnedBy(currentUser(ctx)))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": roomsToAPI(rooms)})
}

func (h *handler) GetRoom(ctx *gin.Context) {
	room, ok := h.ownedRoom(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": roomToAPI(room)})
}

// UpdateRoom edits the name and notes. Membership changes go through the
// toggle endpoint.
func (h *handler) UpdateRoom(ctx *gin.Context) {
	if _, ok := h.ownedRoom(ctx); !ok {
		return
	}
	var req roomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, res, err := h.svc.UpdateRoom(ctx.Request.Context(), ctx.Param("id"), func(r *domain.Room) error {
		if req.Name != nil {
			r.Name = *req.Name
		}
		if req.Notes != nil {
			r.Notes = *req.Notes
		}
		return nil
	})
	h.writeRoom(ctx, updated, res, err)
}

func (h *handler) DeleteRoom(ctx *gin.Context) {
	if _, ok := h.ownedRoom(ctx); !ok {
		return
	}
	if _, err := h.svc.DeleteRoom(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *handler) TogglePlantInRoom(ctx *gin.Context) {
	if _, ok := h.ownedRoom(ctx); !ok {
		return
	}
	plant, err := h.svc.GetPlant(ctx.Request.Context(), ctx.Param("plantID"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	if !domain.IsOwner(&plant, currentUser(ctx)) {
		h.fail(ctx, errForbidden)
		return
	}
	added, res, err := h.svc.TogglePlantInRoom(ctx.Request.Context(), ctx.Param("id"), plant.ID)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"added": added, "violations": violationsToAPI(res.Violations)})
}

func (h *handler) AddRoomOwners(ctx *gin.Context) {
	if _, ok := h.ownedRoom(ctx); !ok {
		return
	}
	var req ownersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, res, err := h.svc.AddRoomOwners(ctx.Request.Context(), ctx.Param("id"), req.OwnerIDs...)
	h.writeRoom(ctx, updated, res, err)
}

func (h *handler) RemoveRoomOwner(ctx *gin.Context) {
	if _, ok := h.ownedRoom(ctx); !ok {
		return
	}
	updated, res, err := h.svc.RemoveRoomOwner(ctx.Request.Context(), ctx.Param("id"), ctx.Param("owner"))
	h.writeRoom(ctx, updated, res, err)
}

func (h *handler) TransferRoom(ctx *gin.Context) {
	if _, ok := h.ownedRoom(ctx); !ok {
		return
	}
	var req transferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, res, err := h.svc.TransferRoomOwnership(ctx.Request.Context(), ctx.Param("id"), req.OwnerID)
	h.writeRoom(ctx, updated, res, err)
}

func (h *handler) writeRoom(ctx *gin.Context, room domain.Room, res domain.Result, err error) {
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": roomToAPI(room), "violations": violationsToAPI(res.Violations)})
}
