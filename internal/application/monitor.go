package app

import (
	"context"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// MonitorService — read-only выборки для мониторинга линии.
type MonitorService struct {
	records port.RecordStore
	history port.ScanHistory
}

func NewMonitorService(records port.RecordStore, history port.ScanHistory) *MonitorService {
	return &MonitorService{records: records, history: history}
}

func (s *MonitorService) List(ctx context.Context, filter entity.RecordFilter) ([]entity.ScanRecord, error) {
	return s.records.List(ctx, filter.Normalize())
}

func (s *MonitorService) Stats(ctx context.Context) (entity.QualityStats, error) {
	return s.records.Stats(ctx)
}

// RecentScans возвращает последние запуски конвейера. Без журнала — пустой список.
func (s *MonitorService) RecentScans(ctx context.Context, limit int) ([]entity.ScanEvent, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = entity.DefaultListLimit
	}
	return s.history.Recent(ctx, limit)
}
