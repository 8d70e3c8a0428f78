package port

import (
	"context"
	"image"

	"pcb-inspector/internal/domain/entity"
)

// BarcodeDecoder интерфейс декодера штрихкодов
type BarcodeDecoder interface {
	// Decode находит символы на изображении. Порядок символов не гарантируется.
	Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error)
}
