package entity

import (
	"time"

	"github.com/google/uuid"
)

// Источники запуска конвейера.
const (
	SourceTrigger = "trigger"
	SourceReview  = "review"
	SourceLookup  = "lookup"
)

// ScanEvent — запись журнала об одном запуске конвейера.
type ScanEvent struct {
	ID            uuid.UUID
	Source        string
	ProductID     string
	Barcode       string
	Success       bool
	Reason        string
	QualityStatus string
	Defects       []Defect
	Elapsed       time.Duration
	CreatedAt     time.Time
}
