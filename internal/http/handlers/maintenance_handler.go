package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/http/middleware"
)

// CleanupResponse reports the outcome of an on-demand expiration sweep.
type CleanupResponse struct {
	Affected int  `json:"affected"`
	DryRun   bool `json:"dry_run"`
	Soft     bool `json:"soft"`
}

// RunCleanup godoc
// @ID          runCleanup
// @Summary     Run the expiration sweep now
// @Description Removes (or with soft=true flags) services whose delivery date has passed or precedes the request date. dry_run only counts.
// @Tags        Maintenance
// @Produce     json
// @Param       dry_run  query  bool  false  "Count without changing anything"
// @Param       soft     query  bool  false  "Soft-delete instead of removing rows"
// @Success     200  {object}  handlers.CleanupResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /maintenance/cleanup [post]
func (h *Handlers) RunCleanup(c *gin.Context) {
	opts := h.SweepOptions
	var valid bool
	if opts.DryRun, valid = queryBool(c, "dry_run", opts.DryRun); !valid {
		return
	}
	if opts.Soft, valid = queryBool(c, "soft", opts.Soft); !valid {
		return
	}
	n, err := h.sweeper.RunOnce(c.Request.Context(), opts)
	if err != nil {
		logErr(c, err)
		fail(c, http.StatusInternalServerError, ErrCodeCleanupFailed, "cleanup failed")
		return
	}
	middleware.LoggerFrom(c).Info().
		Int("affected", n).
		Bool("dry_run", opts.DryRun).
		Bool("soft", opts.Soft).
		Msg("manual cleanup")
	ok(c, http.StatusOK, CleanupResponse{Affected: n, DryRun: opts.DryRun, Soft: opts.Soft})
}
