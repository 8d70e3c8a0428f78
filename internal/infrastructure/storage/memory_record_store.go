package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// MemoryRecordStore in-memory хранилище записей о платах
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*entity.ScanRecord
}

// NewMemoryRecordStore создаёт хранилище с начальными записями
func NewMemoryRecordStore(records ...entity.ScanRecord) *MemoryRecordStore {
	s := &MemoryRecordStore{records: make(map[string]*entity.ScanRecord)}
	for i := range records {
		r := records[i]
		s.records[r.Barcode] = &r
	}
	return s
}

// UpdateVerdict обновляет вердикт, если запись есть
func (s *MemoryRecordStore) UpdateVerdict(ctx context.Context, barcode string, verdict entity.Verdict, at time.Time) (entity.UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[barcode]
	if !ok {
		return entity.UpdateOutcome{}, nil
	}
	if r.QualityStatus == verdict.QualityStatus && r.DefectType == verdict.DefectType {
		return entity.UpdateOutcome{Matched: true}, nil
	}

	r.QualityStatus = verdict.QualityStatus
	r.DefectType = verdict.DefectType
	r.LastUpdated = entity.FormatTimestamp(at)
	return entity.UpdateOutcome{Matched: true, Modified: true}, nil
}

// FindByBarcode возвращает копию записи
func (s *MemoryRecordStore) FindByBarcode(ctx context.Context, barcode string) (*entity.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[barcode]
	if !ok {
		return nil, entity.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

// TouchScan отмечает время сканирования
func (s *MemoryRecordStore) TouchScan(ctx context.Context, barcode string, at time.Time) (*entity.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[barcode]
	if !ok {
		return nil, entity.ErrRecordNotFound
	}
	ts := entity.FormatTimestamp(at)
	r.LastScannedAt = &ts
	cp := *r
	return &cp, nil
}

// List фильтрует записи и сортирует по last_updated по убыванию
func (s *MemoryRecordStore) List(ctx context.Context, filter entity.RecordFilter) ([]entity.ScanRecord, error) {
	filter = filter.Normalize()
	needle := strings.ToLower(filter.DefectType)

	s.mu.RLock()
	out := make([]entity.ScanRecord, 0, len(s.records))
	for _, r := range s.records {
		if filter.ShiftID != "" && r.ShiftID != filter.ShiftID {
			continue
		}
		if filter.QualityStatus != "" && r.QualityStatus != filter.QualityStatus {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.DefectType), needle) {
			continue
		}
		out = append(out, *r)
	}
	s.mu.RUnlock()

	// ISO-8601 в UTC сортируется как строка
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated != out[j].LastUpdated {
			return out[i].LastUpdated > out[j].LastUpdated
		}
		return out[i].Barcode < out[j].Barcode
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Stats считает записи по статусам
func (s *MemoryRecordStore) Stats(ctx context.Context) (entity.QualityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := entity.QualityStats{Total: int64(len(s.records))}
	for _, r := range s.records {
		switch r.QualityStatus {
		case entity.StatusDefective:
			stats.Defective++
		case entity.StatusNoDefect:
			stats.NoDefect++
		}
	}
	return stats, nil
}

// ReplaceAll заменяет все записи
func (s *MemoryRecordStore) ReplaceAll(ctx context.Context, records []entity.ScanRecord) (int, error) {
	next := make(map[string]*entity.ScanRecord, len(records))
	for i := range records {
		r := records[i]
		next[r.Barcode] = &r
	}

	s.mu.Lock()
	s.records = next
	s.mu.Unlock()

	return len(records), nil
}

// Проверка реализации интерфейса
var _ port.RecordStore = (*MemoryRecordStore)(nil)
