package handler

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"lexdesk/internal/model"
	"lexdesk/internal/upload"
)

type uploadView struct {
	model.UploadedFile
	Size string `json:"size"`
}

type uploadListResponse struct {
	Files        []uploadView `json:"files"`
	MaxSizeBytes int64        `json:"max_size_bytes"`
}

type admitResponse struct {
	Admissions []upload.Admission `json:"admissions"`
}

// ListUploads returns the queue in admission order.
//
// @Summary Upload view
// @Tags uploads
// @Produce json
// @Success 200 {object} uploadListResponse
// @Router /upload [get]
func ListUploads(queue *upload.Queue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		files := queue.Files()
		views := make([]uploadView, 0, len(files))
		for _, f := range files {
			views = append(views, uploadView{UploadedFile: f, Size: upload.FormatSize(f.SizeBytes)})
		}
		return c.JSON(uploadListResponse{Files: views, MaxSizeBytes: queue.MaxBytes()})
	}
}

// UploadFiles admits the files of a multipart form (field name: files).
// Every file gets an admission entry; rejected ones carry the reason.
//
// @Summary Add documents
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "documents"
// @Success 200 {object} admitResponse
// @Failure 400 {object} errorPayload
// @Router /upload [post]
func UploadFiles(queue *upload.Queue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil || len(form.File["files"]) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "at least one file is required")
		}

		descs := make([]model.FileDescriptor, 0, len(form.File["files"]))
		for _, fh := range form.File["files"] {
			desc, err := describe(fh, queue.MaxBytes())
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file")
			}
			descs = append(descs, desc)
		}

		adm, err := queue.Admit(descs)
		if err != nil {
			if errors.Is(err, upload.ErrClosed) {
				return writeError(c, fiber.StatusServiceUnavailable, "QUEUE_CLOSED", "uploads are not accepted right now")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(admitResponse{Admissions: adm})
	}
}

// describe turns a multipart part into a descriptor. Multipart files do not
// outlive the request, so content of files under the ceiling is kept in memory
// for the transport.
func describe(fh *multipart.FileHeader, maxBytes int64) (model.FileDescriptor, error) {
	desc := model.FileDescriptor{
		Name:         fh.Filename,
		SizeBytes:    fh.Size,
		DeclaredType: fh.Header.Get(fiber.HeaderContentType),
	}
	if fh.Size > maxBytes {
		return desc, nil
	}

	f, err := fh.Open()
	if err != nil {
		return desc, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return desc, err
	}
	desc.Open = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(content)), nil
	}
	return desc, nil
}

// DeleteUpload removes a file from the queue and stops its upload.
//
// @Summary Remove a document
// @Tags uploads
// @Param id path string true "file id"
// @Success 204
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /upload/{id} [delete]
func DeleteUpload(queue *upload.Queue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if !queue.Remove(c.UserContext(), id) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
