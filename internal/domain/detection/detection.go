// Package detection holds the value types exchanged with the object detection
// provider and the pure functions that turn them into inventory deltas.
package detection

import "sort"

// BoundingBox is a detection box in provider pixel coordinates
type BoundingBox [4]float64

// Detection is a single labeled, confidence-scored box. It is never persisted.
type Detection struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// ClassCountMap maps a class name to its occurrence count
type ClassCountMap map[string]int64

// MaxClassCount bounds the count applied for one canonical name in a batch
const MaxClassCount int64 = 1_000_000

// Aggregate groups detections by class name and counts occurrences.
// An empty input yields an empty, non-nil map.
func Aggregate(detections []Detection) ClassCountMap {
	counts := make(ClassCountMap, len(detections))
	for _, d := range detections {
		counts[d.ClassName]++
	}
	return counts
}

// Labels returns the class names in ascending order
func (m ClassCountMap) Labels() []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Clone returns an independent copy of the map
func (m ClassCountMap) Clone() ClassCountMap {
	out := make(ClassCountMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ImageResult is the provider response for a single image
type ImageResult struct {
	Detections     []Detection `json:"detections"`
	AnnotatedImage string      `json:"image"`
	Count          int         `json:"count"`
}

// ClassCounts aggregates the detections of the image
func (r *ImageResult) ClassCounts() ClassCountMap {
	return Aggregate(r.Detections)
}

// ProcessedFrame is an annotated frame sampled from a video
type ProcessedFrame struct {
	FrameNumber int    `json:"frame_number"`
	Image       string `json:"image"`
}

// VideoResult is the provider response for a video. ClassCounts is already
// aggregated by the provider and is used as is.
type VideoResult struct {
	ClassCounts     ClassCountMap    `json:"class_counts"`
	ProcessedFrames []ProcessedFrame `json:"processed_frames"`
	TotalFrames     int              `json:"total_frames"`
}
