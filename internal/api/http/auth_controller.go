package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"plantkeeper/internal/auth"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) SignInAnonymously(ctx *gin.Context) {
	sess, err := h.provider.SignInAnonymously(ctx.Request.Context())
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"session": sess})
}

func (h *handler) SignIn(ctx *gin.Context) {
	h.withCredentials(ctx, http.StatusOK, h.provider.SignInWithEmailPassword)
}

func (h *handler) Register(ctx *gin.Context) {
	h.withCredentials(ctx, http.StatusCreated, h.provider.Register)
}

func (h *handler) withCredentials(ctx *gin.Context, status int, fn func(context.Context, string, string) (auth.Session, error)) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	sess, err := fn(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(status, gin.H{"session": sess})
}

func (h *handler) Logout(ctx *gin.Context) {
	if err := h.provider.Logout(ctx.Request.Context(), ctx.GetString(tokenKey)); err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *handler) Me(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"user_id": currentUser(ctx)})
}
