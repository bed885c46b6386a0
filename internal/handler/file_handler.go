package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/response"
	"github.com/noah-isme/tclass-api/pkg/storage"
)

type tokenParser interface {
	Parse(token string) (ownerID, key string, err error)
}

type blobOpener interface {
	Open(key string) (*os.File, error)
}

// FileHandler streams blobs addressed by signed download tokens.
type FileHandler struct {
	signer       tokenParser
	attachments  blobOpener
	certificates blobOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(signer tokenParser, attachments, certificates blobOpener) *FileHandler {
	return &FileHandler{signer: signer, attachments: attachments, certificates: certificates}
}

// Attachment godoc
// @Summary Download a submission attachment
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /files/attachments/{token} [get]
func (h *FileHandler) Attachment(c *gin.Context) {
	h.serve(c, h.attachments)
}

// Certificate godoc
// @Summary Download a Certificate of Registration
// @Tags Files
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /files/certificates/{token} [get]
func (h *FileHandler) Certificate(c *gin.Context) {
	h.serve(c, h.certificates)
}

func (h *FileHandler) serve(c *gin.Context, store blobOpener) {
	if h.signer == nil || store == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "downloads are not configured"))
		return
	}
	_, key, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		msg := "download link is invalid"
		if errors.Is(err, storage.ErrTokenExpired) {
			msg = "download link has expired"
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, msg))
		return
	}
	file, err := store.Open(key)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read file"))
		return
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", path.Base(key)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
