package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/services"
)

// multipartMemory is how much of a form is held in memory before parts
// spill to temporary files.
const multipartMemory = 8 << 20

// parseMultipart bounds the request body and parses the form. The bound
// leaves room for two files plus form overhead; each file is checked
// against maxUpload again when it is stored.
func parseMultipart(c *gin.Context, maxUpload int64) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxUpload+(1<<20))
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, errs.ErrTooLarge)
		}
		return fmt.Errorf("invalid multipart form: %w", errs.ErrInvalidInput)
	}
	return nil
}

// formFile opens an optional file field. The returned close func is
// never nil.
func formFile(c *gin.Context, field string) (*services.Upload, func(), error) {
	file, header, err := c.Request.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, fmt.Errorf("invalid %s file: %w", field, errs.ErrInvalidInput)
	}
	return uploadFrom(file, header), func() { file.Close() }, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *services.Upload {
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

func formBool(c *gin.Context, field string) (bool, error) {
	v := strings.TrimSpace(c.PostForm(field))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", field, errs.ErrInvalidInput)
	}
	return b, nil
}

func formInt(c *gin.Context, field string) (int, error) {
	v := strings.TrimSpace(c.PostForm(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", field, errs.ErrInvalidInput)
	}
	return n, nil
}
