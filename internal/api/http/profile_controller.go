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

type profileRequest struct {
	Username    *string           `json:"username"`
	Publicity   *domain.Publicity `json:"publicity"`
	FirstName   *string           `json:"first_name"`
	LastName    *string           `json:"last_name"`
	Email       *string           `json:"email"`
	PhoneNumber *string           `json:"phone_number"`
	Birthday    *time.Time        `json:"birthday"`
}

func (r profileRequest) apply(p *domain.Profile) {
	if r.Username != nil {
		p.Username = *r.Username
	}
	if r.Publicity != nil {
		p.Publicity = *r.Publicity
	}
	if r.FirstName != nil {
		p.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		p.LastName = *r.LastName
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.PhoneNumber != nil {
		p.PhoneNumber = *r.PhoneNumber
	}
	if r.Birthday != nil {
		p.Birthday = r.Birthday
	}
}

// ownProfile loads the profile named by :id and checks the caller owns it.
func (h *handler) ownProfile(ctx *gin.Context) (domain.Profile, bool) {
	prof, err := h.svc.GetProfile(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, err)
		return domain.Profile{}, false
	}
	if prof.OwnerID != currentUser(ctx) {
		h.fail(ctx, errForbidden)
		return domain.Profile{}, false
	}
	return prof, true
}

func (h *handler) CreateProfile(ctx *gin.Context) {
	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Username == nil || *req.Username == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	prof := domain.Profile{Publicity: domain.PublicityPublic}
	req.apply(&prof)
	prof.OwnerID = currentUser(ctx)
	created, _, err := h.svc.CreateProfile(ctx.Request.Context(), prof)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"profile": profileToAPI(created, currentUser(ctx))})
}

// GetProfile returns public profiles to anyone and private ones only to
// their owner.
func (h *handler) GetProfile(ctx *gin.Context) {
	prof, err := h.svc.GetProfile(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	viewer := currentUser(ctx)
	if prof.OwnerID != viewer && !core.PublicProfiles(prof) {
		h.fail(ctx, core.ErrNotFound{Entity: domain.EntityProfile, ID: prof.ID})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": profileToAPI(prof, viewer)})
}

func (h *handler) UpdateProfile(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	updated, _, err := h.svc.UpdateProfile(ctx.Request.Context(), ctx.Param("id"), func(p *domain.Profile) error {
		req.apply(p)
		return nil
	})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": profileToAPI(updated, currentUser(ctx))})
}

func (h *handler) DeleteProfile(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	if _, err := h.svc.DeleteProfile(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *handler) PutProfileImage(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxImageBytes))
	if err != nil {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	img := imaging.Decode(raw)
	if img == nil {
		h.fail(ctx, core.ErrInvalidImage)
		return
	}
	updated, _, err := h.svc.SetProfileImage(ctx.Request.Context(), ctx.Param("id"), img)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": profileToAPI(updated, currentUser(ctx))})
}

func (h *handler) RequestFriend(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	if _, err := h.svc.RequestFriend(ctx.Request.Context(), ctx.Param("id"), ctx.Param("target")); err != nil {
		h.fail(ctx, err)
		return
	}
	h.writeRelation(ctx, ctx.Param("target"))
}

func (h *handler) UnrequestFriend(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	if _, err := h.svc.UnrequestFriend(ctx.Request.Context(), ctx.Param("id"), ctx.Param("target")); err != nil {
		h.fail(ctx, err)
		return
	}
	h.writeRelation(ctx, ctx.Param("target"))
}

func (h *handler) AcceptFriend(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	accepted, res, err := h.svc.AcceptFriendRequest(ctx.Request.Context(), ctx.Param("id"), ctx.Param("from"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"accepted": accepted, "violations": violationsToAPI(res.Violations)})
}

func (h *handler) Relation(ctx *gin.Context) {
	if _, ok := h.ownProfile(ctx); !ok {
		return
	}
	h.writeRelation(ctx, ctx.Param("other"))
}

func (h *handler) writeRelation(ctx *gin.Context, other string) {
	state, err := h.svc.RelationBetween(ctx.Request.Context(), ctx.Param("id"), other)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"relation": state})
}
