//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"image"

	"pcb-inspector/internal/domain/entity"
)

// ONNXDetector — заглушка детектора (без OpenCV).
type ONNXDetector struct {
	InputSize    int
	IoUThreshold float64
}

// NewONNXDetector возвращает ошибку, если сборка без тега gocv.
func NewONNXDetector(modelPath string, labels []string) (*ONNXDetector, error) {
	_ = modelPath
	_ = labels
	return nil, errors.New("gocv build tag is not enabled")
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error) {
	_ = ctx
	_ = img
	_ = threshold
	return nil, errors.New("gocv build tag is not enabled")
}

// Close ничего не делает.
func (d *ONNXDetector) Close() error {
	return nil
}
