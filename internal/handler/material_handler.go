package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sekolahku/sekolahku-api/internal/service"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
	"github.com/sekolahku/sekolahku-api/pkg/response"
)

// MaterialHandler wires HTTP endpoints to the material service.
type MaterialHandler struct {
	service     *service.MaterialService
	maxFileSize int64
}

// NewMaterialHandler creates a new handler.
func NewMaterialHandler(svc *service.MaterialService, maxFileSize int64) *MaterialHandler {
	return &MaterialHandler{service: svc, maxFileSize: maxFileSize}
}

// List godoc
// @Summary List materials
// @Description Returns all learning materials with uploader names
// @Tags Materials
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /materials [get]
func (h *MaterialHandler) List(c *gin.Context) {
	materials, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, materials)
}

// Upload godoc
// @Summary Upload material
// @Description Stores a learning material with an optional file attachment
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param subject formData string false "Subject"
// @Param class formData string false "Class"
// @Param file formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize)
	}

	req := service.UploadMaterialRequest{
		Title:       c.PostForm("title"),
		Description: optionalForm(c, "description"),
		Subject:     optionalForm(c, "subject"),
		Class:       optionalForm(c, "class"),
	}

	fileHeader, err := c.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload, check file size and form encoding"))
		return
	}

	var res *service.UploadMaterialResponse
	if fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
			return
		}
		defer file.Close()
		res, err = h.service.Upload(c.Request.Context(), claims.UserID, req, fileHeader.Filename, file)
	} else {
		res, err = h.service.Upload(c.Request.Context(), claims.UserID, req, "", nil)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Download godoc
// @Summary Download material file
// @Description Streams the stored file attachment for a material
// @Tags Materials
// @Produce octet-stream
// @Param id path int true "Material ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /materials/{id}/download [get]
func (h *MaterialHandler) Download(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	material, file, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	downloadName := material.Title
	if material.FileName != nil {
		downloadName = *material.FileName
	}
	c.FileAttachment(file.Name(), downloadName)
}

// Delete godoc
// @Summary Delete material
// @Description Removes a material and its stored file
// @Tags Materials
// @Produce json
// @Param id path int true "Material ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func (h *MaterialHandler) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "material id must be numeric"))
		return 0, false
	}
	return id, true
}

func optionalForm(c *gin.Context, key string) *string {
	if value, ok := c.GetPostForm(key); ok && value != "" {
		return &value
	}
	return nil
}
