package entity

import (
	"image"
	"strings"
)

// Статусы качества платы.
const (
	StatusDefective = "defective"
	StatusNoDefect  = "no_defect"
)

// NoDefectType пишется в defect_type, если дефектов нет.
const NoDefectType = "none"

// Defect представляет один дефект, найденный детектором
type Defect struct {
	Type       string          `json:"type"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"-"` // область на изображении, только для подсветки
}

// Verdict — итог проверки одной платы.
type Verdict struct {
	QualityStatus string
	DefectType    string
}

// Aggregate сворачивает список дефектов в вердикт.
// Любой дефект бракует плату, дубликаты типов сохраняются в исходном порядке.
func Aggregate(defects []Defect) Verdict {
	if len(defects) == 0 {
		return Verdict{QualityStatus: StatusNoDefect, DefectType: NoDefectType}
	}
	return Verdict{
		QualityStatus: StatusDefective,
		DefectType:    strings.Join(DefectTypes(defects), ", "),
	}
}

// DefectTypes возвращает метки дефектов в порядке детектора.
func DefectTypes(defects []Defect) []string {
	types := make([]string, 0, len(defects))
	for _, d := range defects {
		types = append(types, d.Type)
	}
	return types
}

// FilterByConfidence оставляет дефекты с уверенностью не ниже порога.
func FilterByConfidence(defects []Defect, threshold float64) []Defect {
	filtered := make([]Defect, 0, len(defects))
	for _, d := range defects {
		if d.Confidence >= threshold {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
