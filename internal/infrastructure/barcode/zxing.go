package barcode

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// ZXingDecoder ищет линейные штрихкоды (EAN-13, Code 128) построчным сканированием полос.
//
// Одномерные ридеры возвращают только точки на линии сканирования, поэтому контур символа
// собирается из всех полос, где он прочитался: левый и правый края штрихов по каждой полосе
// дают облако точек, выпуклая оболочка которого и есть контур.
type ZXingDecoder struct {
	StripHeight int // высота полосы в пикселях
	StripStep   int // шаг между полосами
	Padding     int // запас по горизонтали вокруг штрихов, пиксели
}

// NewZXingDecoder создаёт декодер с настройками по умолчанию.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		StripHeight: 24,
		StripStep:   12,
		Padding:     4,
	}
}

// newReaders создаёт ридеры на один вызов: они хранят буферы и не потокобезопасны.
func newReaders() []gozxing.Reader {
	return []gozxing.Reader{
		oned.NewEAN13Reader(),
		oned.NewCode128Reader(),
	}
}

type hit struct {
	symbol entity.DecodedSymbol
	points []image.Point
	order  int
}

// Decode находит символы на изображении. Символы упорядочены по положению сверху вниз.
func (d *ZXingDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	height := min(max(1, d.StripHeight), b.Dy())
	step := max(1, d.StripStep)

	readers := newReaders()
	hits := make(map[string]*hit)
	order := 0
	for top := b.Min.Y; top < b.Max.Y; top += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bottom := min(top+height, b.Max.Y)
		strip := imaging.Crop(img, image.Rect(b.Min.X, top, b.Max.X, bottom))

		for _, res := range decodeStrip(readers, strip) {
			key := res.GetBarcodeFormat().String() + "|" + res.GetText()
			h, ok := hits[key]
			if !ok {
				h = &hit{
					symbol: entity.DecodedSymbol{
						Format:  res.GetBarcodeFormat().String(),
						Payload: res.GetText(),
					},
					order: order,
				}
				hits[key] = h
				order++
			}

			left, right, ok := span(res.GetResultPoints())
			if !ok {
				continue
			}
			x0 := max(b.Min.X, b.Min.X+left-d.Padding)
			x1 := min(b.Max.X-1, b.Min.X+right+d.Padding)
			h.points = append(h.points,
				image.Pt(x0, top), image.Pt(x1, top),
				image.Pt(x0, bottom-1), image.Pt(x1, bottom-1),
			)
		}

		if bottom == b.Max.Y {
			break
		}
	}

	symbols := make([]entity.DecodedSymbol, len(hits))
	for _, h := range hits {
		h.symbol.Polygon = convexHull(h.points)
		symbols[h.order] = h.symbol
	}
	return symbols, nil
}

// decodeStrip пробует все ридеры на одной полосе. Ошибка ридера означает «не найдено».
func decodeStrip(readers []gozxing.Reader, strip image.Image) []*gozxing.Result {
	bmp, err := gozxing.NewBinaryBitmapFromImage(strip)
	if err != nil {
		return nil
	}

	var results []*gozxing.Result
	for _, r := range readers {
		res, err := r.Decode(bmp, nil)
		if err != nil {
			continue
		}
		results = append(results, res)
	}
	return results
}

// span возвращает крайние координаты X точек результата.
func span(points []gozxing.ResultPoint) (int, int, bool) {
	left, right := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if p == nil {
			continue
		}
		left = min(left, p.GetX())
		right = max(right, p.GetX())
	}
	if left > right {
		return 0, 0, false
	}
	return int(left), int(math.Ceil(right)), true
}

// Проверка реализации интерфейса
var _ port.BarcodeDecoder = (*ZXingDecoder)(nil)
