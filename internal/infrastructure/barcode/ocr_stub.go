//go:build !tesseract
// +build !tesseract

package barcode

import (
	"context"
	"errors"
	"image"

	"pcb-inspector/internal/domain/entity"
)

// OCRFormat — формат символа, прочитанного по подписи под штрихами.
const OCRFormat = "OCR"

// OCRDecoder — заглушка (без Tesseract).
type OCRDecoder struct{}

// NewOCRDecoder возвращает ошибку, если сборка без тега tesseract.
func NewOCRDecoder() (*OCRDecoder, error) {
	return nil, errors.New("tesseract build tag is not enabled")
}

// Decode возвращает ошибку, если сборка без тега tesseract.
func (o *OCRDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	_ = ctx
	_ = img
	return nil, errors.New("tesseract build tag is not enabled")
}

// Close ничего не делает.
func (o *OCRDecoder) Close() error {
	return nil
}
