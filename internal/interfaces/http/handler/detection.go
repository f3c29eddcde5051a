package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	detectionapp "github.com/astroguard/backend/internal/application/detection"
	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// uploadField is the multipart field carrying the uploaded file
const uploadField = "file"

// FrameQuery selects the frame relative to the path index
type FrameQuery struct {
	Step string `form:"step" binding:"omitempty,oneof=next previous"`
}

// DetectionHandler handles uploads for analysis and adding results to inventory
type DetectionHandler struct {
	BaseHandler
	detectionService *detectionapp.DetectionService
}

// NewDetectionHandler creates a new DetectionHandler
func NewDetectionHandler(detectionService *detectionapp.DetectionService) *DetectionHandler {
	return &DetectionHandler{
		detectionService: detectionService,
	}
}

// AnalyzeImage handles POST /detections/image (multipart field "file")
func (h *DetectionHandler) AnalyzeImage(c *gin.Context) {
	upload, err := readUpload(c, "Please select an image file")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	analysis, err := h.detectionService.AnalyzeImage(c.Request.Context(), upload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analysis)
}

// AddImageToInventory handles POST /detections/image/inventory with the
// detections returned by AnalyzeImage
func (h *DetectionHandler) AddImageToInventory(c *gin.Context) {
	var req detectionapp.AddDetectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.detectionService.AddImageToInventory(c.Request.Context(), req.Detections)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// AnalyzeVideo handles POST /detections/video (multipart field "file")
func (h *DetectionHandler) AnalyzeVideo(c *gin.Context) {
	upload, err := readUpload(c, "Please select a video file")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	analysis, err := h.detectionService.AnalyzeVideo(c.Request.Context(), upload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analysis)
}

// Frame handles GET /detections/video/:id/frames/:index?step=next|previous
func (h *DetectionHandler) Frame(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.BadRequest(c, "Invalid frame index")
		return
	}
	var query FrameQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	frame, err := h.detectionService.Frame(c.Request.Context(), id, index, query.Step)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, frame)
}

// AddVideoToInventory handles POST /detections/video/:id/inventory
func (h *DetectionHandler) AddVideoToInventory(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	report, err := h.detectionService.AddVideoToInventory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Reconcile handles POST /inventory/reconcile with explicit class counts
func (h *DetectionHandler) Reconcile(c *gin.Context) {
	var req detectionapp.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.detectionService.AddCountsToInventory(c.Request.Context(), req.ClassCounts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// readUpload reads the multipart file. A missing file is reported with
// missingMessage as an invalid media error.
func readUpload(c *gin.Context, missingMessage string) (detectionapp.Upload, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return detectionapp.Upload{}, err
		}
		return detectionapp.Upload{}, detection.ErrInvalidMedia.WithMessage(missingMessage)
	}

	f, err := fh.Open()
	if err != nil {
		return detectionapp.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return detectionapp.Upload{}, err
	}

	return detectionapp.Upload{
		FileName:    fh.Filename,
		ContentType: uploadContentType(fh.Header.Get("Content-Type"), data),
		Data:        data,
	}, nil
}

// uploadContentType trusts the part's declared type and sniffs the bytes only
// when the client sent none or a generic one
func uploadContentType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return declared
	}
	if len(data) == 0 {
		return declared
	}
	return http.DetectContentType(data)
}
