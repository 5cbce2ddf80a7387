package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/internal/media"
	"github.com/p4solution/portfolio-backend/internal/projects/domain"
	"github.com/p4solution/portfolio-backend/internal/projects/service"
)

const (
	filesField    = "images"
	keepListField = "existingImages"
)

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) create(c *gin.Context) {
	h.limitBody(c)

	uploads, closeAll, err := h.readUploads(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer closeAll()

	p, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		Fields:  readFields(c),
		Uploads: uploads,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	h.limitBody(c)

	uploads, closeAll, err := h.readUploads(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer closeAll()

	in := service.UpdateInput{
		Fields:  readFields(c),
		Uploads: uploads,
	}
	if raw, present := c.GetPostForm(keepListField); present {
		keep, err := parseKeepList(raw)
		if err != nil {
			h.writeError(c, err)
			return
		}
		in.KeepImages, in.KeepImagesSet = keep, true
	}

	p, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

func (h *Handler) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
}

func readFields(c *gin.Context) domain.Fields {
	return domain.Fields{
		Title:          c.PostForm("title"),
		Description:    c.PostForm("description"),
		Category:       c.PostForm("category"),
		Location:       c.PostForm("location"),
		CompletionDate: c.PostForm("completionDate"),
		ClientName:     c.PostForm("clientName"),
	}
}

// readUploads opens every file sent under the images field. The returned func
// closes them and must always be called.
func (h *Handler) readUploads(c *gin.Context) ([]media.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, noop, fmt.Errorf("%w: request body exceeds %d bytes", media.ErrPayloadTooLarge, h.maxBody)
		}
		return nil, noop, domain.Invalid("malformed multipart body: %v", err)
	}

	headers := form.File[filesField]
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]media.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, media.Upload{Filename: fh.Filename, Size: fh.Size, Body: f})
	}
	return uploads, closeAll, nil
}

func parseKeepList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var keep []string
	if err := json.Unmarshal([]byte(raw), &keep); err != nil {
		return nil, domain.Invalid("%s must be a JSON array of strings", keepListField)
	}
	return keep, nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)

	fields := []zap.Field{
		zap.String("request_id", c.GetString("request_id")),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("project request failed", fields...)
	} else {
		h.log.Debug("project request rejected", fields...)
	}

	body := gin.H{"error": msg}
	if !h.production && status >= http.StatusInternalServerError {
		body["detail"] = err.Error()
	}
	c.JSON(status, body)
}
