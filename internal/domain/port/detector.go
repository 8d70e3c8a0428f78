package port

import (
	"context"
	"image"

	"pcb-inspector/internal/domain/entity"
)

// DefectDetector интерфейс детектора дефектов
type DefectDetector interface {
	// Detect возвращает дефекты с уверенностью не ниже threshold в порядке выдачи модели
	Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error)
}
