package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/disintegration/imaging"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// HTTPDetector отправляет изображение во внешний сервис с моделью дефектов.
type HTTPDetector struct {
	inferenceURL string // URL Python-сервиса с моделью
	client       *http.Client
}

// NewHTTPDetector создаёт адаптер. Таймаут задаётся контекстом вызова.
func NewHTTPDetector(inferenceURL string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDetector{
		inferenceURL: inferenceURL,
		client:       client,
	}
}

// detection — рамка в ответе сервиса, координаты левого верхнего угла.
type detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Detect выполняет inference через внешний сервис
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write conf field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Detections []detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	origin := img.Bounds().Min
	defects := make([]entity.Defect, 0, len(result.Detections))
	for _, det := range result.Detections {
		if det.Class == "" {
			return nil, fmt.Errorf("detection without class")
		}
		box := image.Rect(
			int(math.Round(det.X)),
			int(math.Round(det.Y)),
			int(math.Round(det.X+det.Width)),
			int(math.Round(det.Y+det.Height)),
		).Add(origin)
		defects = append(defects, entity.Defect{
			Type:       det.Class,
			Confidence: det.Confidence,
			Box:        box,
		})
	}
	// сервис может не поддерживать поле conf
	return entity.FilterByConfidence(defects, threshold), nil
}

// CheckHealth проверяет доступность ML-сервиса
func (d *HTTPDetector) CheckHealth(ctx context.Context) error {
	base, err := url.Parse(d.inferenceURL)
	if err != nil {
		return fmt.Errorf("parse inference url: %w", err)
	}
	healthURL := base.ResolveReference(&url.URL{Path: "/health"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Проверка реализации интерфейса
var _ port.DefectDetector = (*HTTPDetector)(nil)
