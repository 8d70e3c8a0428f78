package app

import (
	"context"
	"errors"
	"fmt"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// TriggerService запускает конвейер по идентификатору изделия.
type TriggerService struct {
	locator     port.ImageLocator
	inspections *InspectionService
}

// NewTriggerService создаёт сервис программного запуска.
func NewTriggerService(locator port.ImageLocator, inspections *InspectionService) *TriggerService {
	return &TriggerService{locator: locator, inspections: inspections}
}

// Trigger находит снимок изделия, проверяет его и всегда пишет вердикт.
func (s *TriggerService) Trigger(ctx context.Context, productID string) (*entity.PipelineResult, error) {
	return s.trigger(ctx, productID, entity.SourceTrigger)
}

func (s *TriggerService) trigger(ctx context.Context, productID, source string) (*entity.PipelineResult, error) {
	meta := ProcessMeta{Source: source, ProductID: productID}

	path, err := s.locator.Locate(ctx, productID)
	if err != nil {
		if !errors.Is(err, entity.ErrImageNotFound) {
			err = fmt.Errorf("locate image: %w", err)
			return s.inspections.fail(ctx, meta, err, 0), err
		}
		return s.inspections.fail(ctx, meta, err, 0), nil
	}

	return s.inspections.ProcessFile(ctx, path, meta)
}
