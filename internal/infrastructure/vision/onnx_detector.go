//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// ONNXDetector запускает экспортированную в ONNX модель YOLOv8 через модуль dnn OpenCV.
type ONNXDetector struct {
	InputSize    int     // сторона входа модели
	IoUThreshold float64 // порог подавления немаксимумов

	labels []string
	mu     sync.Mutex // Net.Forward не потокобезопасен
	net    gocv.Net
}

// NewONNXDetector загружает модель один раз при старте.
func NewONNXDetector(modelPath string, labels []string) (*ONNXDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load onnx model %s", modelPath)
	}
	return &ONNXDetector{
		InputSize:    640,
		IoUThreshold: 0.45,
		labels:       labels,
		net:          net,
	}, nil
}

// Detect прогоняет модель и возвращает дефекты с уверенностью не ниже порога.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("empty image")
	}

	// Модель ждёт RGB 0..1, Mat хранится в BGR
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.InputSize, d.InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output dims %v", sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scaleX := float64(mat.Cols()) / float64(d.InputSize)
	scaleY := float64(mat.Rows()) / float64(d.InputSize)
	preds, err := DecodeYOLOv8(data, sizes[1], sizes[2], threshold, scaleX, scaleY)
	if err != nil {
		return nil, err
	}

	return PredictionsToDefects(NonMaxSuppression(preds, d.IoUThreshold), d.labels), nil
}

// Close освобождает сеть.
func (d *ONNXDetector) Close() error {
	return d.net.Close()
}

// Проверка реализации интерфейса
var _ port.DefectDetector = (*ONNXDetector)(nil)
