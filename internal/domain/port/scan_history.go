package port

import (
	"context"

	"pcb-inspector/internal/domain/entity"
)

// ScanHistory интерфейс журнала запусков конвейера
type ScanHistory interface {
	Record(ctx context.Context, event entity.ScanEvent) error
	Recent(ctx context.Context, limit int) ([]entity.ScanEvent, error)
}
