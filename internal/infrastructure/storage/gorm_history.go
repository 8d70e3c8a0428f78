package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// scanEventModel — строка журнала запусков конвейера
type scanEventModel struct {
	ID            uuid.UUID      `gorm:"type:varchar(36);primaryKey"`
	Source        string         `gorm:"size:16;index"`
	ProductID     string         `gorm:"index"`
	Barcode       string         `gorm:"size:13;index"`
	Success       bool           `gorm:"not null"`
	Reason        string         `gorm:"size:200"`
	QualityStatus string         `gorm:"size:20"`
	Defects       datatypes.JSON `gorm:"type:json"`
	ElapsedMS     int64          `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`
}

func (scanEventModel) TableName() string {
	return "scan_history"
}

// GormScanHistory пишет журнал запусков в SQL-базу
type GormScanHistory struct {
	db *gorm.DB
}

// NewGormScanHistory создаёт журнал и мигрирует схему
func NewGormScanHistory(db *gorm.DB) (*GormScanHistory, error) {
	if err := db.AutoMigrate(&scanEventModel{}); err != nil {
		return nil, fmt.Errorf("migrate scan_history: %w", err)
	}
	return &GormScanHistory{db: db}, nil
}

// Record сохраняет событие
func (h *GormScanHistory) Record(ctx context.Context, event entity.ScanEvent) error {
	defects := event.Defects
	if defects == nil {
		defects = []entity.Defect{}
	}
	raw, err := json.Marshal(defects)
	if err != nil {
		return fmt.Errorf("marshal defects: %w", err)
	}

	m := scanEventModel{
		ID:            event.ID,
		Source:        event.Source,
		ProductID:     event.ProductID,
		Barcode:       event.Barcode,
		Success:       event.Success,
		Reason:        event.Reason,
		QualityStatus: event.QualityStatus,
		Defects:       datatypes.JSON(raw),
		ElapsedMS:     event.Elapsed.Milliseconds(),
		CreatedAt:     event.CreatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := h.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

// Recent возвращает последние события, свежие первыми
func (h *GormScanHistory) Recent(ctx context.Context, limit int) ([]entity.ScanEvent, error) {
	var models []scanEventModel
	err := h.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("read scan history: %w", err)
	}

	events := make([]entity.ScanEvent, 0, len(models))
	for _, m := range models {
		var defects []entity.Defect
		if len(m.Defects) > 0 {
			if err := json.Unmarshal(m.Defects, &defects); err != nil {
				return nil, fmt.Errorf("decode defects of %s: %w", m.ID, err)
			}
		}
		events = append(events, entity.ScanEvent{
			ID:            m.ID,
			Source:        m.Source,
			ProductID:     m.ProductID,
			Barcode:       m.Barcode,
			Success:       m.Success,
			Reason:        m.Reason,
			QualityStatus: m.QualityStatus,
			Defects:       defects,
			Elapsed:       time.Duration(m.ElapsedMS) * time.Millisecond,
			CreatedAt:     m.CreatedAt,
		})
	}
	return events, nil
}

// Проверка реализации интерфейса
var _ port.ScanHistory = (*GormScanHistory)(nil)
