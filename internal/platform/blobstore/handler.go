package blobstore

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
)

// Handler serves stored attachments to authorised clinical users.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/attachments/*", h.Download, auth.Require(auth.ActionAttachmentRead))
}

func (h *Handler) Download(c echo.Context) error {
	key := c.Param("*")
	if !ValidKey(key) {
		return apperr.NotFound("attachment")
	}
	rc, obj, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return apperr.NotFound("attachment")
		}
		return apperr.Internal(err)
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentDisposition, contentDisposition(obj.FileName))
	if obj.Size > 0 {
		resp.Header().Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

// contentDisposition quotes or RFC 2231 encodes the stored file name.
func contentDisposition(name string) string {
	if name == "" {
		return "inline"
	}
	if v := mime.FormatMediaType("inline", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "inline"
}

// SaveFormFile stores the multipart field name from the request, if present,
// and returns the stored key. A missing field yields an empty key.
func SaveFormFile(c echo.Context, store Store, field, category string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", apperr.Validation("invalid %s upload: %v", field, err)
	}
	return Save(c, store, fh, category)
}

// Save uploads a single multipart file.
func Save(c echo.Context, store Store, fh *multipart.FileHeader, category string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", apperr.Validation("cannot read upload: %v", err)
	}
	defer f.Close()

	obj, err := store.Put(c.Request().Context(), Object{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Category:    category,
	}, f)
	switch {
	case err == nil:
		return obj.Key, nil
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrInvalidContentType), errors.Is(err, ErrMissingFileName):
		return "", apperr.Validation("%s", err.Error())
	default:
		return "", apperr.Internal(err)
	}
}
