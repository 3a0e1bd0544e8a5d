package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/services"
)

type UploadURLRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileType string `json:"file_type"`
}

type ConfirmUploadRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

type AttachmentHandler struct {
	attachments *services.Attachments
	log         *logger.Logger
}

func NewAttachmentHandler(attachments *services.Attachments, log *logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, log: log.Named("attachments")}
}

// UploadURL hands out a presigned slot. The client uploads directly to the
// object store and then calls Confirm.
func (h *AttachmentHandler) UploadURL(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body UploadURLRequest

	if !bindJSON(ctx, &body) {
		return
	}

	slot, err := h.attachments.RequestUpload(ctx.Request.Context(), actor, taskID, body.FileName, body.FileType)

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, slot)
}

func (h *AttachmentHandler) Confirm(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	taskID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var body ConfirmUploadRequest

	if !bindJSON(ctx, &body) {
		return
	}

	attachment, err := h.attachments.Confirm(ctx.Request.Context(), actor, taskID, services.ConfirmUploadInput{
		FileName: body.FileName,
		FilePath: body.FilePath,
		FileType: body.FileType,
		FileSize: body.FileSize,
	})

	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, attachment)
}

func (h *AttachmentHandler) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	attachmentID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	if err := h.attachments.Delete(ctx.Request.Context(), actor, attachmentID); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
