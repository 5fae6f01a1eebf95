package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"todo-planner/internal/config"
	"todo-planner/internal/logging"
)

// Generate runs instance generation on demand: POST /admin/generate?days=N.
// Identical requests arriving while a run is in flight share its result.
func (h *Handler) Generate(c *gin.Context) {
	raw := c.DefaultQuery("days", strconv.Itoa(config.DefaultManualGenerateDays))
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		badRequest(c, "days must be a positive integer")
		return
	}
	if limit := h.generator.MaxHorizon(); days > limit {
		badRequest(c, "days must be at most "+strconv.Itoa(limit))
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	v, err, shared := h.generateGroup.Do("generate:"+strconv.Itoa(days), func() (interface{}, error) {
		return h.generator.Generate(ctx, days)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	created := v.(int)
	logging.FromContext(ctx).Info("generation triggered over http", "days", days, "created", created, "shared", shared)
	c.JSON(http.StatusOK, gin.H{"created": created, "days": days})
}
