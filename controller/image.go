package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/service"
)

// multipart overhead allowed on top of the image itself
const uploadSlack = 1 << 20

type ImageController struct {
	Images *service.ImageService
}

func (i ImageController) Get(c *gin.Context) {
	body, contentType, err := i.Images.Open(c.Request.Context(), userID(c), c.Query("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		logger.Warnf("[%s] Failed to send image: %s", c.GetString("requestId"), err)
	}
}

func (i ImageController) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxImageBytes+uploadSlack)

	file, header, err := c.Request.FormFile("file")
	var up service.Upload
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(c, service.NewValidationError("file", "Image must be smaller than 5MB"))
		return
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		respondBindError(c, err)
		return
	default:
		defer file.Close()
		up.Body = file
		up.Size = header.Size
		up.ContentType = partContentType(header)
	}
	up.ChatID = c.PostForm("chatId")

	key, err := i.Images.Upload(c.Request.Context(), userID(c), up)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Infof("[%s] Stored upload %s", c.GetString("requestId"), key)
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func partContentType(h *multipart.FileHeader) string {
	return h.Header.Get("Content-Type")
}
