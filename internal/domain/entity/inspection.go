package entity

import (
	"image"
	"time"
)

// Inspection хранит промежуточный итог конвейера до записи в хранилище.
type Inspection struct {
	Barcode   string
	Symbols   []DecodedSymbol
	Defects   []Defect
	Verdict   Verdict
	Annotated image.Image // картинка с рамками дефектов, только для оператора
	Width     int         // размер изображения после масштабирования
	Height    int
	Elapsed   time.Duration
}

// PipelineResult — ответ программного триггера.
type PipelineResult struct {
	Success       bool         `json:"success"`
	Barcode       string       `json:"barcode,omitempty"`
	QualityStatus string       `json:"quality_status,omitempty"`
	DefectType    []string     `json:"defect_type,omitempty"`
	Updated       *bool        `json:"updated,omitempty"`
	UpdateStatus  UpdateStatus `json:"update_status,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// Failure строит неуспешный результат.
func Failure(reason string) *PipelineResult {
	return &PipelineResult{Success: false, Reason: reason}
}

// NewPipelineResult собирает успешный результат из проверки и исхода записи.
func NewPipelineResult(insp *Inspection, outcome UpdateOutcome) *PipelineResult {
	types := DefectTypes(insp.Defects)
	if len(types) == 0 {
		types = []string{NoDefectType}
	}
	updated := outcome.Modified
	return &PipelineResult{
		Success:       true,
		Barcode:       insp.Barcode,
		QualityStatus: insp.Verdict.QualityStatus,
		DefectType:    types,
		Updated:       &updated,
		UpdateStatus:  outcome.Status(),
	}
}
