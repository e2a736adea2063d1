package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plantkeeper/internal/core"
	"plantkeeper/internal/imaging"
	"plantkeeper/pkg/domain"
)

const maxImageBytes = 8 << 20

type plantRequest struct {
	Name                 *string    `json:"name"`
	Notes                *string    `json:"notes"`
	WateringIntervalDays *float64   `json:"watering_interval_days"`
	WateringAmount       *int       `json:"watering_amount"`
	WateringInstructions *string    `json:"watering_instructions"`
	DateLastWatered      *time.Time `json:"date_last_watered"`
	IsFavorite           *bool      `json:"is_favorite"`
}

func (r plantRequest) apply(p *domain.Plant) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Notes != nil {
		p.Notes = *r.Notes
	}
	if r.WateringIntervalDays != nil {
		p.WateringInterval = time.Duration(*r.WateringIntervalDays * float64(24*time.Hour))
	}
	if r.WateringAmount != nil {
		p.WateringAmount = domain.WateringAmount(*r.WateringAmount)
	}
	if r.WateringInstructions != nil {
		p.WateringInstructions = *r.WateringInstructions
	}
	if r.DateLastWatered != nil {
		p.DateLastWatered = *r.DateLastWatered
	}
	if r.IsFavorite != nil {
		p.IsFavorite = *r.IsFavorite
	}
}

type ownersRequest struct {
	OwnerIDs []string `json:"owner_ids" binding:"required,min=1"`
}

type transferRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
}

type waterRequest struct {
	Date    *time.Time `json:"date"`
	Comment string     `json:"comment"`
}

// ownedPlant loads a plant the caller owns, writing the error response
// otherwise.
func (h *handler) ownedPlant(ctx *gin.Context) (domain.Plant, bool) {
	plant, err := h.svc.GetPlant(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, err)
		return domain.Plant{}, false
	}
	if !domain.IsOwner(&plant, currentUser(ctx)) {
		h.fail(ctx, errForbidden)
		return domain.Plant{}, false
	}
	return plant, true
}

func (h *handler) CreatePlant(ctx *gin.Context) {
	var req plantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.Name == nil || *req.Name == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	plant := domain.Plant{WateringInterval: 7 * 24 * time.Hour}
	req.apply(&plant)
	created, res, err := h.svc.CreatePlant(ctx.Request.Context(), plant)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"plant": plantToAPI(created), "violations": violationsToAPI(res.Violations)})
}

func (h *handler) ListPlants(ctx *gin.Context) {
	pred := core.PlantsOwnedBy(currentUser(ctx))
	if ctx.Query("favorite") == "true" {
		owned := pred
		pred = func(p domain.Plant) bool { return owned(p) && core.FavoritePlants(p) }
	}
	plants, err := h.svc.QueryPlants(ctx.Request.Context(), pred)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"plants": plantsToAPI(plants)})
}

func (h *handler) GetPlant(ctx *gin.Context) {
	plant, ok := h.ownedPlant(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"plant": plantToAPI(plant)})
}

func (h *handler) UpdatePlant(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	var req plantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, res, err := h.svc.UpdatePlant(ctx.Request.Context(), ctx.Param("id"), func(p *domain.Plant) error {
		req.apply(p)
		return nil
	})
	h.writePlant(ctx, updated, res, err)
}

func (h *handler) DeletePlant(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	if _, err := h.svc.DeletePlant(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *handler) WaterPlant(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	var req waterRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	event, _, err := h.svc.WaterPlant(ctx.Request.Context(), ctx.Param("id"), date, req.Comment)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"event": event})
}

func (h *handler) ToggleFavorite(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	updated, res, err := h.svc.TogglePlantFavorite(ctx.Request.Context(), ctx.Param("id"))
	h.writePlant(ctx, updated, res, err)
}

func (h *handler) AddPlantOwners(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	var req ownersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, res, err := h.svc.AddPlantOwners(ctx.Request.Context(), ctx.Param("id"), req.OwnerIDs...)
	h.writePlant(ctx, updated, res, err)
}

func (h *handler) RemovePlantOwner(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	updated, res, err := h.svc.RemovePlantOwner(ctx.Request.Context(), ctx.Param("id"), ctx.Param("owner"))
	h.writePlant(ctx, updated, res, err)
}

func (h *handler) TransferPlant(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	var req transferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, res, err := h.svc.TransferPlantOwnership(ctx.Request.Context(), ctx.Param("id"), req.OwnerID)
	h.writePlant(ctx, updated, res, err)
}

func (h *handler) PlantSchedule(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	month, ok := parseMonth(ctx, h.svc.Calculator().Today())
	if !ok {
		return
	}
	nodes, err := h.svc.PlantSchedule(ctx.Request.Context(), ctx.Param("id"), month)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"month": month.Format(monthLayout), "schedule": nodesToAPI(nodes)})
}

func (h *handler) PlantStatus(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	at := h.svc.Calculator().Today()
	if raw := ctx.Query("date"); raw != "" {
		parsed, err := time.Parse(dayLayout, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		at = parsed
	}
	status, err := h.svc.PlantStatus(ctx.Request.Context(), ctx.Param("id"), at)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"date": at.Format(dayLayout), "status": status})
}

func (h *handler) PutPlantCover(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxImageBytes))
	if err != nil {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	updated, res, err := h.svc.SetPlantCoverImageBytes(ctx.Request.Context(), ctx.Param("id"), raw)
	h.writePlant(ctx, updated, res, err)
}

func (h *handler) GetPlantCover(ctx *gin.Context) {
	if _, ok := h.ownedPlant(ctx); !ok {
		return
	}
	img, err := h.svc.PlantCoverImage(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	data, err := imaging.Encode(img)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, imaging.ContentType, data)
}

// defaultCoverURLExpiry applies when the expiry query parameter is absent.
const defaultCoverURLExpiry = 15 * time.Minute

// GetPlantCoverURL presigns a read URL for the archived cover image.
func (h *handler) GetPlantCoverURL(ctx *gin.Context) {
	plant, ok := h.ownedPlant(ctx)
	if !ok {
		return
	}
	if len(plant.CoverImage) == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "plant has no cover image"})
		return
	}
	expiry := defaultCoverURLExpiry
	if raw := ctx.Query("expiry"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > 7*24*time.Hour {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "expiry must be a duration up to 168h"})
			return
		}
		expiry = d
	}
	url, err := h.svc.ImageURL(ctx.Request.Context(), imaging.PlantCoverKey(plant.ID), expiry)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": url, "expires_at": time.Now().Add(expiry).UTC()})
}

func (h *handler) writePlant(ctx *gin.Context, plant domain.Plant, res domain.Result, err error) {
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"plant": plantToAPI(plant), "violations": violationsToAPI(res.Violations)})
}

func parseMonth(ctx *gin.Context, fallback time.Time) (time.Time, bool) {
	raw := ctx.Query("month")
	if raw == "" {
		return fallback, true
	}
	month, err := time.Parse(monthLayout, raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
		return time.Time{}, false
	}
	return month, true
}
