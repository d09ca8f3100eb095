// Document HTTP handlers.
//
// Uploads are multipart/form-data with a "file" part, a "type" field and,
// when posting to a client, an optional "service_id" to link the document.
package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/services"
)

// UploadDocument godoc
// @ID          uploadDocument
// @Summary     Upload a client document
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
// @Param       id          path      int     true   "Client ID"
// @Param       file        formData  file    true   "Document"
// @Param       type        formData  string  true   "Document type"  Enums(identity_card, property_deed, passport, health_card, land_registry, floor_plan, deed, compromise_agreement, estimate)
// @Param       service_id  formData  int     false  "Link to this service"
// @Success     201  {object}  domain.Document
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     413  {object}  handlers.ErrorResponse
// @Router      /clients/{id}/documents [post]
func (h *Handlers) UploadDocument(c *gin.Context) {
	clientID, valid := pathID(c, "id")
	if !valid {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" required")
		return
	}
	var serviceID *uint
	if raw := strings.TrimSpace(c.PostForm("service_id")); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service_id must be a positive integer")
			return
		}
		id := uint(n)
		serviceID = &id
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	doc, err := h.docs.Upload(c.Request.Context(), services.UploadInput{
		ClientID:    clientID,
		Type:        c.PostForm("type"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
		ServiceID:   serviceID,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, doc)
}

// ListClientDocuments godoc
// @ID          listClientDocuments
// @Summary     A client's documents
// @Tags        Documents
// @Produce     json
// @Param       id  path  int  true  "Client ID"
// @Success     200  {array}   domain.Document
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/{id}/documents [get]
func (h *Handlers) ListClientDocuments(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	docs, err := h.docs.ListForClient(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(docs))
}

// ListServiceDocuments godoc
// @ID          listServiceDocuments
// @Summary     Documents linked to a service
// @Tags        Documents
// @Produce     json
// @Param       id  path  int  true  "Service ID"
// @Success     200  {array}   domain.Document
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/documents [get]
func (h *Handlers) ListServiceDocuments(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	docs, err := h.docs.ListForService(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(docs))
}

// ReplaceDocument godoc
// @ID          replaceDocument
// @Summary     Replace a document's content
// @Description Keeps the document id and its service links.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
// @Param       id    path      int   true  "Document ID"
// @Param       file  formData  file  true  "New content"
// @Success     200  {object}  domain.Document
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /documents/{id} [put]
func (h *Handlers) ReplaceDocument(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	doc, err := h.docs.Replace(c.Request.Context(), id, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// DownloadDocument godoc
// @ID          downloadDocument
// @Summary     Download a document
// @Tags        Documents
// @Produce     octet-stream
// @Param       id  path  int  true  "Document ID"
// @Success     200  {file}    file
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /documents/{id}/content [get]
func (h *Handlers) DownloadDocument(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	doc, rc, err := h.docs.Open(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	defer rc.Close()

	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	c.Header("Cache-Control", "private, no-store")
	if doc.Size > 0 {
		c.DataFromReader(http.StatusOK, doc.Size, ct, rc, nil)
		return
	}
	c.Header("Content-Type", ct)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logErr(c, err)
	}
}

// AttachDocument godoc
// @ID          attachDocument
// @Summary     Link a document to a service
// @Description Both must belong to the same client. Linking twice is a no-op.
// @Tags        Documents
// @Param       id     path  int  true  "Service ID"
// @Param       docId  path  int  true  "Document ID"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Different client"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /services/{id}/documents/{docId} [post]
func (h *Handlers) AttachDocument(c *gin.Context) {
	serviceID, valid := pathID(c, "id")
	if !valid {
		return
	}
	docID, valid := pathID(c, "docId")
	if !valid {
		return
	}
	if err := h.docs.AttachToService(c.Request.Context(), serviceID, docID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
