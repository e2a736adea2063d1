package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"plantkeeper/pkg/schedule"
)

// MonthSchedule merges the watering calendar of every plant the caller owns.
// Plants with an invalid interval are listed under "skipped".
func (h *handler) MonthSchedule(ctx *gin.Context) {
	month, ok := parseMonth(ctx, h.svc.Calculator().Today())
	if !ok {
		return
	}
	nodes, err := h.svc.MonthSchedule(ctx.Request.Context(), currentUser(ctx), month)
	var invalid *schedule.InvalidScheduleError
	if err != nil && !errors.As(err, &invalid) {
		h.fail(ctx, err)
		return
	}
	body := gin.H{"month": month.Format(monthLayout), "schedule": nodesToAPI(nodes)}
	if err != nil {
		body["skipped"] = err.Error()
	}
	ctx.JSON(http.StatusOK, body)
}
