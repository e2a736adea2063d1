package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"plantkeeper/internal/auth"
	"plantkeeper/internal/blob"
	"plantkeeper/internal/core"
	"plantkeeper/pkg/domain"
	"plantkeeper/pkg/schedule"
)

var errForbidden = errors.New("not an owner")

func statusFor(err error) int {
	var notFound core.ErrNotFound
	var invalidSchedule *schedule.InvalidScheduleError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNoActor), errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrAlreadyFriends), errors.Is(err, core.ErrUsernameTaken), errors.Is(err, auth.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidImage), errors.Is(err, core.ErrSelfRequest), errors.As(err, &invalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownSubscription):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoImageArchive), errors.Is(err, blob.ErrUnsupported):
		return http.StatusNotImplemented
	case core.IsStage(err, core.StageRules):
		return http.StatusUnprocessableEntity
	case core.IsStage(err, core.StageApply):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(ctx *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var rv domain.RuleViolationError
	if errors.As(err, &rv) {
		body["violations"] = violationsToAPI(rv.Result.Violations)
	}
	_ = ctx.Error(err)
	ctx.JSON(status, body)
}
