package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	_ "golang.org/x/image/webp"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// Processor — обработка изображений на чистом Go, без OpenCV.
type Processor struct {
	JPEGQuality int
	BoxColor    color.RGBA // цвет рамок дефектов
	BoxWidth    int
}

// NewProcessor создаёт обработчик с настройками по умолчанию.
func NewProcessor() *Processor {
	return &Processor{
		JPEGQuality: 90,
		BoxColor:    color.RGBA{R: 255, A: 255},
		BoxWidth:    2,
	}
}

// Load читает файл с учётом EXIF-ориентации.
func (p *Processor) Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return img, nil
}

// Decode читает изображение из байтов.
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Resize уменьшает изображение усреднением по площади (Box), если большая сторона больше maxSide.
func (p *Processor) Resize(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h, ok := ScaledSize(b.Dx(), b.Dy(), maxSide)
	if !ok {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Box)
}

// ScaledSize считает размер после масштабирования. ok=false, если масштабировать не нужно.
func ScaledSize(w, h, maxSide int) (int, int, bool) {
	longest := max(w, h)
	if maxSide <= 0 || longest <= maxSide {
		return w, h, false
	}
	scale := float64(maxSide) / float64(longest)
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return nw, nh, true
}

// Mask возвращает копию изображения с закрашенными контурами символов.
func (p *Processor) Mask(img image.Image, symbols []entity.DecodedSymbol, fill color.Color) image.Image {
	dst := imaging.Clone(img)
	origin := img.Bounds().Min
	src := image.NewUniform(fill)

	for _, s := range symbols {
		if !s.HasArea() {
			continue
		}
		fillPolygon(dst, s.Polygon, origin, src)
	}
	return dst
}

func fillPolygon(dst draw.Image, polygon []image.Point, origin image.Point, src image.Image) {
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())

	first := polygon[0].Sub(origin)
	r.MoveTo(float32(first.X), float32(first.Y))
	for _, pt := range polygon[1:] {
		pt = pt.Sub(origin)
		r.LineTo(float32(pt.X), float32(pt.Y))
	}
	r.ClosePath()
	r.Draw(dst, b, src, image.Point{})
}

// Annotate рисует рамки дефектов с подписью «тип уверенность».
func (p *Processor) Annotate(img image.Image, defects []entity.Defect) image.Image {
	dst := imaging.Clone(img)
	if len(defects) == 0 {
		return dst
	}
	origin := img.Bounds().Min
	ink := image.NewUniform(p.BoxColor)

	for _, d := range defects {
		box := d.Box.Sub(origin).Intersect(dst.Bounds())
		if box.Empty() {
			continue
		}
		strokeRect(dst, box, p.BoxWidth, ink)

		label := fmt.Sprintf("%s %.2f", d.Type, d.Confidence)
		y := box.Min.Y - 3
		if y < basicfont.Face7x13.Ascent {
			y = box.Min.Y + basicfont.Face7x13.Ascent + 1
		}
		drawer := font.Drawer{
			Dst:  dst,
			Src:  ink,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(box.Min.X+1, y),
		}
		drawer.DrawString(label)
	}
	return dst
}

func strokeRect(dst draw.Image, r image.Rectangle, width int, src image.Image) {
	width = max(1, width)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// EncodeJPEG пишет изображение в JPEG.
func (p *Processor) EncodeJPEG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.JPEGQuality))
}

// Проверка реализации интерфейса
var _ port.ImageProcessor = (*Processor)(nil)
