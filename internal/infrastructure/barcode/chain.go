package barcode

import (
	"context"
	"fmt"
	"image"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// ChainDecoder опрашивает декодеры по очереди, пока среди символов не появится валидный штрихкод.
// Символы всех опрошенных декодеров объединяются, чтобы закрасить всё найденное.
type ChainDecoder struct {
	decoders []port.BarcodeDecoder
}

// NewChainDecoder создаёт цепочку. Первый декодер основной, остальные резервные.
func NewChainDecoder(decoders ...port.BarcodeDecoder) *ChainDecoder {
	return &ChainDecoder{decoders: decoders}
}

func (c *ChainDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	var symbols []entity.DecodedSymbol
	for i, d := range c.decoders {
		found, err := d.Decode(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("decoder %d: %w", i, err)
		}
		symbols = append(symbols, found...)
		if _, ok := entity.ExtractBarcode(symbols); ok {
			break
		}
	}
	return symbols, nil
}

// Проверка реализации интерфейса
var _ port.BarcodeDecoder = (*ChainDecoder)(nil)
