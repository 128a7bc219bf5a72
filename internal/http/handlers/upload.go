package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/threadchat-backend/internal/http/response"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/upload"
)

type UploadHandler struct {
	log  *logger.Logger
	opts upload.Options
}

func NewUploadHandler(log *logger.Logger, opts upload.Options) *UploadHandler {
	return &UploadHandler{log: log.With("handler", "UploadHandler"), opts: opts}
}

// POST /upload (multipart "file")
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.opts.MaxBytes > 0 {
		// multipart framing adds a little on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondAPIError(c, apierr.InputFormat("File is too large."))
			return
		}
		response.RespondAPIError(c, apierr.InputFormat("No file was uploaded."))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	defer f.Close()

	md, err := upload.Inspect(fh.Filename, fh.Size, f, h.opts)
	if err != nil {
		h.log.Debug("Upload rejected", "filename", fh.Filename, "size", fh.Size, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	h.log.Info("Upload validated", "filename", fh.Filename, "format", md.Format, "rows", md.Shape[0], "cols", md.Shape[1])
	response.RespondOK(c, md)
}
