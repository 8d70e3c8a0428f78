//go:build tesseract
// +build tesseract

package barcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// OCRFormat — формат символа, прочитанного по подписи под штрихами.
const OCRFormat = "OCR"

// OCRDecoder читает цифровую подпись штрихкода через Tesseract.
type OCRDecoder struct {
	mu     sync.Mutex // клиент Tesseract не потокобезопасен
	client *gosseract.Client
}

// NewOCRDecoder создаёт клиент Tesseract с белым списком из цифр.
func NewOCRDecoder() (*OCRDecoder, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// словари только мешают читать цифры
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if err := client.SetWhitelist("0123456789"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	return &OCRDecoder{client: client}, nil
}

// Decode возвращает слова из 13 цифр с их рамками.
func (o *OCRDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Grayscale(img), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := o.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := o.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	origin := img.Bounds().Min
	var symbols []entity.DecodedSymbol
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if !entity.ValidBarcode(text) {
			continue
		}
		r := box.Box.Add(origin)
		symbols = append(symbols, entity.DecodedSymbol{
			Format:  OCRFormat,
			Payload: text,
			Polygon: []image.Point{
				r.Min,
				image.Pt(r.Max.X, r.Min.Y),
				r.Max,
				image.Pt(r.Min.X, r.Max.Y),
			},
		})
	}
	return symbols, nil
}

// Close освобождает клиент Tesseract.
func (o *OCRDecoder) Close() error {
	return o.client.Close()
}

// Проверка реализации интерфейса
var _ port.BarcodeDecoder = (*OCRDecoder)(nil)
