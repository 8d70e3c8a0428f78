package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"pcb-inspector/internal/domain/entity"
)

// Prediction — кандидат детекции до подавления немаксимумов.
type Prediction struct {
	ClassID int
	Score   float64
	Box     image.Rectangle
}

// DecodeYOLOv8 разбирает выход YOLOv8 формы [1, 4+nc, n]: строки 0..3 — cx, cy, w, h,
// остальные — оценки классов. Координаты переводятся в пиксели исходного изображения.
func DecodeYOLOv8(data []float32, rows, cols int, threshold, scaleX, scaleY float64) ([]Prediction, error) {
	if rows < 5 || cols <= 0 {
		return nil, fmt.Errorf("unexpected yolo output shape %dx%d", rows, cols)
	}
	if len(data) < rows*cols {
		return nil, fmt.Errorf("yolo output too short: %d < %d", len(data), rows*cols)
	}

	raw := make([]float64, rows*cols)
	for i := range raw {
		raw[i] = float64(data[i])
	}
	// после транспонирования одна строка — один кандидат
	candidates := mat.NewDense(rows, cols, raw).T()

	preds := make([]Prediction, 0)
	for i := 0; i < cols; i++ {
		classID, score := -1, math.Inf(-1)
		for c := 4; c < rows; c++ {
			if s := candidates.At(i, c); s > score {
				classID, score = c-4, s
			}
		}
		if classID < 0 || score < threshold {
			continue
		}

		cx, cy := candidates.At(i, 0), candidates.At(i, 1)
		w, h := candidates.At(i, 2), candidates.At(i, 3)
		preds = append(preds, Prediction{
			ClassID: classID,
			Score:   score,
			Box: image.Rect(
				int(math.Round((cx-w/2)*scaleX)),
				int(math.Round((cy-h/2)*scaleY)),
				int(math.Round((cx+w/2)*scaleX)),
				int(math.Round((cy+h/2)*scaleY)),
			),
		})
	}
	return preds, nil
}

// NonMaxSuppression жадно оставляет лучшие рамки каждого класса.
// Результат отсортирован по убыванию уверенности.
func NonMaxSuppression(preds []Prediction, iouThreshold float64) []Prediction {
	sorted := make([]Prediction, len(preds))
	copy(sorted, preds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]Prediction, 0, len(sorted))
	for _, p := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == p.ClassID && IoU(k.Box, p.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, p)
		}
	}
	return kept
}

// IoU — отношение площади пересечения к площади объединения.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// PredictionsToDefects переводит кандидатов в дефекты с метками классов.
func PredictionsToDefects(preds []Prediction, labels []string) []entity.Defect {
	defects := make([]entity.Defect, 0, len(preds))
	for _, p := range preds {
		defects = append(defects, entity.Defect{
			Type:       ClassLabel(labels, p.ClassID),
			Confidence: p.Score,
			Box:        p.Box,
		})
	}
	return defects
}
