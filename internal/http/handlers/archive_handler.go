package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/domain"
)

// DeleteArchivedResponse reports whether an archived service was removed.
type DeleteArchivedResponse struct {
	Deleted bool `json:"deleted"`
}

// ArchiveService godoc
// @ID          archiveService
// @Summary     Archive a service
// @Description Archiving twice returns the same record. The lifecycle status is not checked.
// @Tags        Archive
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/archive [post]
func (h *Handlers) ArchiveService(c *gin.Context) { h.transition(c, h.archive.Archive) }

// UnarchiveService godoc
// @ID          unarchiveService
// @Summary     Unarchive a service
// @Tags        Archive
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/unarchive [post]
func (h *Handlers) UnarchiveService(c *gin.Context) { h.transition(c, h.archive.Unarchive) }

// ListArchived godoc
// @ID          listArchived
// @Summary     Archived services
// @Description Soft-deleted services are left out.
// @Tags        Archive
// @Produce     json
// @Success     200  {array}  domain.Service
// @Router      /archive/services [get]
func (h *Handlers) ListArchived(c *gin.Context) {
	h.list(c, func(ctx context.Context) ([]domain.Service, error) { return h.archive.ListArchived(ctx) })
}

// GetArchived godoc
// @ID          getArchived
// @Summary     Get an archived service
// @Tags        Archive
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Not archived"
// @Router      /archive/services/{id} [get]
func (h *Handlers) GetArchived(c *gin.Context) { h.transition(c, h.archive.GetArchived) }

// DeleteArchived godoc
// @ID          deleteArchived
// @Summary     Permanently delete an archived service
// @Description Missing or unarchived services are left alone and reported with deleted=false.
// @Tags        Archive
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {object}  handlers.DeleteArchivedResponse
// @Router      /archive/services/{id} [delete]
func (h *Handlers) DeleteArchived(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	deleted, err := h.archive.DeleteArchived(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DeleteArchivedResponse{Deleted: deleted})
}
