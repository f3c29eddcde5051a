package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	inventoryapp "github.com/astroguard/backend/internal/application/inventory"
	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/domain/media"
	"github.com/astroguard/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultVideoResultTTL is how long a video analysis stays browsable
const DefaultVideoResultTTL = 30 * time.Minute

// imagePrefix is the storage folder for uploaded originals
const imagePrefix = "img/"

// ObjectStorage stores uploaded originals and returns their public URL
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ImageNormalizer prepares a decoded, size-bounded image for inference.
// It returns detection.ErrInvalidMedia when the data cannot be decoded.
type ImageNormalizer interface {
	Normalize(m detection.Media) (detection.Media, error)
}

// InventoryReconciler applies class counts to inventory
type InventoryReconciler interface {
	Reconcile(ctx context.Context, counts detection.ClassCountMap) (*inventoryapp.ReconcileReport, error)
}

// DetectionService runs uploads through the detection provider and hands the
// resulting counts to inventory reconciliation
type DetectionService struct {
	provider   detection.Provider
	normalizer ImageNormalizer
	videos     detection.VideoResultStore
	reconciler InventoryReconciler
	storage    ObjectStorage
	images     media.UploadedImageRepository
	videoTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
	objectName func() string
}

// NewDetectionService creates a new DetectionService. Object storage is optional
// and is attached with SetStorage.
func NewDetectionService(
	provider detection.Provider,
	normalizer ImageNormalizer,
	videos detection.VideoResultStore,
	reconciler InventoryReconciler,
) *DetectionService {
	return &DetectionService{
		provider:   provider,
		normalizer: normalizer,
		videos:     videos,
		reconciler: reconciler,
		videoTTL:   DefaultVideoResultTTL,
		logger:     zap.NewNop(),
		now:        time.Now,
		objectName: randomObjectName,
	}
}

// SetStorage enables storing uploaded originals and recording them in images
func (s *DetectionService) SetStorage(storage ObjectStorage, images media.UploadedImageRepository) {
	s.storage = storage
	s.images = images
}

// SetVideoResultTTL sets how long video analyses are kept
func (s *DetectionService) SetVideoResultTTL(ttl time.Duration) {
	if ttl > 0 {
		s.videoTTL = ttl
	}
}

// SetLogger sets the logger
func (s *DetectionService) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// AnalyzeImage validates and stores the upload, then runs detection on a
// normalized copy. Storage failures are logged and leave PublicURL empty.
func (s *DetectionService) AnalyzeImage(ctx context.Context, upload Upload) (*ImageAnalysis, error) {
	m := upload.media()
	if err := m.ValidateImage(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "DetectionService", "AnalyzeImage",
		telemetry.WithAttribute(telemetry.SpanAttrContentType, m.ContentType))
	defer span.End()

	var normalized detection.Media
	var err error
	telemetry.WithProfilingRegion(ctx, telemetry.ProfilingRegionNormalize, func(context.Context) {
		normalized, err = s.normalizer.Normalize(m)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publicURL := s.storeOriginal(ctx, m)

	result, err := s.provider.DetectImage(ctx, normalized)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if publicURL != "" && s.images != nil {
		if err := s.images.UpdateDetectionCount(ctx, publicURL, len(result.Detections)); err != nil {
			s.logger.Warn("Failed to update detection count",
				zap.String("public_url", publicURL),
				zap.Error(err),
			)
		}
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrDetections, len(result.Detections),
		telemetry.SpanAttrPublicURL, publicURL,
	)
	telemetry.SetOK(span)

	return &ImageAnalysis{
		Detections:     result.Detections,
		AnnotatedImage: result.AnnotatedImage,
		Count:          result.Count,
		ClassCounts:    result.ClassCounts(),
		PublicURL:      publicURL,
	}, nil
}

// storeOriginal uploads the original bytes and records them. It returns the
// public URL, or "" when storage is disabled or the upload failed.
func (s *DetectionService) storeOriginal(ctx context.Context, m detection.Media) string {
	if s.storage == nil {
		return ""
	}

	key := fmt.Sprintf("%s%s_%d.%s", imagePrefix, s.objectName(), s.now().UnixMilli(), m.Extension())
	publicURL, err := s.storage.Upload(ctx, key, m.Data, m.ContentType)
	if err != nil {
		s.logger.Warn("Failed to upload image to storage", zap.String("key", key), zap.Error(err))
		return ""
	}

	if s.images != nil {
		record := media.NewUploadedImage(m.FileName, key, publicURL, m.ContentType, int64(len(m.Data)))
		if err := s.images.Create(ctx, record); err != nil {
			s.logger.Warn("Failed to save image metadata", zap.String("public_url", publicURL), zap.Error(err))
		}
	}
	return publicURL
}

// AnalyzeVideo runs detection on a video and caches the result for frame browsing
func (s *DetectionService) AnalyzeVideo(ctx context.Context, upload Upload) (*VideoAnalysis, error) {
	m := upload.media()
	if err := m.ValidateVideo(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "DetectionService", "AnalyzeVideo",
		telemetry.WithAttribute(telemetry.SpanAttrContentType, m.ContentType))
	defer span.End()

	result, err := s.provider.DetectVideo(ctx, m)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	id := uuid.New()
	if err := s.videos.Save(ctx, id, result, s.videoTTL); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to cache video analysis: %w", err)
	}

	analysis := &VideoAnalysis{
		ID:          id,
		ClassCounts: result.ClassCounts,
		TotalFrames: result.TotalFrames,
		FrameCount:  len(result.ProcessedFrames),
		ExpiresAt:   s.now().Add(s.videoTTL).UTC(),
	}
	if frame, ok := frameView(id, detection.NewFrameNavigator(result.ProcessedFrames, 0)); ok {
		analysis.Frame = frame
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAnalysisID, id.String(),
		telemetry.SpanAttrTotalFrames, result.TotalFrames,
	)
	telemetry.SetOK(span)
	return analysis, nil
}

// Frame returns the frame at index after applying step ("next", "previous" or "").
// The index is clamped to the available frames.
func (s *DetectionService) Frame(ctx context.Context, analysisID uuid.UUID, index int, step string) (*FrameView, error) {
	result, err := s.videos.Load(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	nav := detection.NewFrameNavigator(result.ProcessedFrames, index)
	nav.Step(step)

	frame, ok := frameView(analysisID, nav)
	if !ok {
		return nil, detection.ErrNoFrames
	}
	return frame, nil
}

func frameView(id uuid.UUID, nav *detection.FrameNavigator) (*FrameView, bool) {
	frame, ok := nav.Current()
	if !ok {
		return nil, false
	}
	return &FrameView{
		AnalysisID:  id,
		Index:       nav.Index(),
		FrameNumber: frame.FrameNumber,
		Image:       frame.Image,
		FrameCount:  nav.Len(),
		HasNext:     nav.HasNext(),
		HasPrevious: nav.HasPrevious(),
	}, true
}

// AddImageToInventory aggregates detections by class and reconciles them
func (s *DetectionService) AddImageToInventory(ctx context.Context, detections []detection.Detection) (*inventoryapp.ReconcileReport, error) {
	return s.reconciler.Reconcile(ctx, detection.Aggregate(detections))
}

// AddVideoToInventory reconciles the class counts of a cached video analysis as reported by the provider
func (s *DetectionService) AddVideoToInventory(ctx context.Context, analysisID uuid.UUID) (*inventoryapp.ReconcileReport, error) {
	result, err := s.videos.Load(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(ctx, result.ClassCounts)
}

// AddCountsToInventory reconciles explicit class counts
func (s *DetectionService) AddCountsToInventory(ctx context.Context, counts detection.ClassCountMap) (*inventoryapp.ReconcileReport, error) {
	return s.reconciler.Reconcile(ctx, counts)
}

func randomObjectName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
}
