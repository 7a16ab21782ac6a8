// Package stubserver is a development stand-in for the remote comparison endpoint.
// It reports a match only for byte-identical uploads.
package stubserver

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// MaxUploadSize is the per-image limit.
	MaxUploadSize = 10 << 20

	MessageMatch      = "Match found"
	MessageDissimilar = "Images too dissimilar"
	MessageMissing    = "image1 and image2 are required"
)

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var errTooLarge = errors.New("image exceeds upload limit")

type unsupportedTypeError struct {
	field       string
	contentType string
}

func (e *unsupportedTypeError) Error() string {
	return fmt.Sprintf("%s has unsupported content type %q", e.field, e.contentType)
}

// RegisterRoutes wires the stub endpoint into router. Middleware, if any, guards
// POST /compare only.
func RegisterRoutes(router *gin.Engine, logger *zap.Logger, middleware ...gin.HandlerFunc) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("stub_endpoint")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers := append(append([]gin.HandlerFunc{}, middleware...), compareHandler(logger))
	router.POST("/compare", handlers...)
}

func compareHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		reqLogger := logger.With(zap.String("request_id", requestID))

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*MaxUploadSize+(1<<20))

		first, err := readImage(c, "image1")
		if err == nil {
			var second []byte
			second, err = readImage(c, "image2")
			if err == nil {
				respond(c, reqLogger, first, second)
				return
			}
		}

		var maxBytesErr *http.MaxBytesError
		var typeErr *unsupportedTypeError
		switch {
		case errors.As(err, &maxBytesErr), errors.Is(err, errTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "image exceeds the 10 MiB limit"})
		case errors.As(err, &typeErr):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"message": typeErr.Error()})
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			c.JSON(http.StatusBadRequest, gin.H{"message": MessageMissing})
		default:
			reqLogger.Warn("failed to read comparison upload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid upload"})
		}
	}
}

func respond(c *gin.Context, logger *zap.Logger, first, second []byte) {
	a, b := sha256.Sum256(first), sha256.Sum256(second)
	if a == b {
		logger.Info("comparison matched", zap.Int("bytes", len(first)))
		c.JSON(http.StatusOK, gin.H{"message": MessageMatch})
		return
	}
	logger.Info("comparison did not match", zap.Int("image1_bytes", len(first)), zap.Int("image2_bytes", len(second)))
	c.JSON(http.StatusBadRequest, gin.H{"message": MessageDissimilar})
}

func readImage(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	if header.Size > MaxUploadSize {
		return nil, errTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if !allowedContentTypes[contentType] {
		return nil, &unsupportedTypeError{field: field, contentType: contentType}
	}
	return readAll(header)
}

func readAll(header *multipart.FileHeader) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
