package detection

import (
	"time"

	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/google/uuid"
)

// Upload is a file received for analysis
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (u Upload) media() detection.Media {
	return detection.Media{FileName: u.FileName, ContentType: u.ContentType, Data: u.Data}
}

// ImageAnalysis is the outcome of analyzing one image
type ImageAnalysis struct {
	Detections     []detection.Detection   `json:"detections"`
	AnnotatedImage string                  `json:"image"`
	Count          int                     `json:"count"`
	ClassCounts    detection.ClassCountMap `json:"class_counts"`
	PublicURL      string                  `json:"public_url,omitempty"`
}

// VideoAnalysis is the outcome of analyzing one video. Frames stay cached
// under ID until ExpiresAt and are browsed one at a time.
type VideoAnalysis struct {
	ID          uuid.UUID               `json:"id"`
	ClassCounts detection.ClassCountMap `json:"class_counts"`
	TotalFrames int                     `json:"total_frames"`
	FrameCount  int                     `json:"frame_count"`
	Frame       *FrameView              `json:"frame,omitempty"`
	ExpiresAt   time.Time               `json:"expires_at"`
}

// FrameView is one processed frame of a cached video analysis
type FrameView struct {
	AnalysisID  uuid.UUID `json:"analysis_id"`
	Index       int       `json:"index"`
	FrameNumber int       `json:"frame_number"`
	Image       string    `json:"image"`
	FrameCount  int       `json:"frame_count"`
	HasNext     bool      `json:"has_next"`
	HasPrevious bool      `json:"has_previous"`
}

// AddDetectionsRequest adds the detections of an analyzed image to inventory
type AddDetectionsRequest struct {
	Detections []detection.Detection `json:"detections" binding:"required"`
}

// ReconcileRequest adds explicit class counts to inventory
type ReconcileRequest struct {
	ClassCounts detection.ClassCountMap `json:"class_counts" binding:"required,dive,keys,required,max=100,endkeys,gte=0,lte=1000000"`
}
