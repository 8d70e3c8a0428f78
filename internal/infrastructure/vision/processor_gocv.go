//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"gocv.io/x/gocv"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// GoCVProcessor — обработка изображений через OpenCV.
type GoCVProcessor struct {
	*Processor
	FontScale float64
}

// NewGoCVProcessor создаёт обработчик на OpenCV.
func NewGoCVProcessor() *GoCVProcessor {
	return &GoCVProcessor{Processor: NewProcessor(), FontScale: 0.4}
}

// NewImageProcessor возвращает обработчик на OpenCV (сборка с тегом gocv).
func NewImageProcessor() port.ImageProcessor {
	return NewGoCVProcessor()
}

// Load читает файл через imread.
func (p *GoCVProcessor) Load(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("imread %s: empty image", path)
	}
	return mat.ToImage()
}

// Decode читает изображение из байтов через imdecode.
func (p *GoCVProcessor) Decode(data []byte) (image.Image, error) {
	mat, err := decodeToMat(data)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return mat.ToImage()
}

// Resize уменьшает изображение с InterpolationArea.
func (p *GoCVProcessor) Resize(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h, ok := ScaledSize(b.Dx(), b.Dy(), maxSide)
	if !ok {
		return img
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return p.Processor.Resize(img, maxSide)
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea)

	out, err := resized.ToImage()
	if err != nil {
		return p.Processor.Resize(img, maxSide)
	}
	return out
}

// Mask закрашивает контуры символов через fillPoly.
func (p *GoCVProcessor) Mask(img image.Image, symbols []entity.DecodedSymbol, fill color.Color) image.Image {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return p.Processor.Mask(img, symbols, fill)
	}
	defer mat.Close()

	origin := img.Bounds().Min
	polygons := make([][]image.Point, 0, len(symbols))
	for _, s := range symbols {
		if !s.HasArea() {
			continue
		}
		pts := make([]image.Point, 0, len(s.Polygon))
		for _, pt := range s.Polygon {
			pts = append(pts, pt.Sub(origin))
		}
		polygons = append(polygons, pts)
	}
	if len(polygons) > 0 {
		pv := gocv.NewPointsVectorFromPoints(polygons)
		defer pv.Close()
		gocv.FillPoly(&mat, pv, toRGBA(fill))
	}

	out, err := mat.ToImage()
	if err != nil {
		return p.Processor.Mask(img, symbols, fill)
	}
	return out
}

// Annotate рисует рамки и подписи дефектов через OpenCV.
func (p *GoCVProcessor) Annotate(img image.Image, defects []entity.Defect) image.Image {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return p.Processor.Annotate(img, defects)
	}
	defer mat.Close()

	origin := img.Bounds().Min
	for _, d := range defects {
		rect := d.Box.Sub(origin)
		gocv.Rectangle(&mat, rect, p.BoxColor, p.BoxWidth)
		label := fmt.Sprintf("%s %.2f", d.Type, d.Confidence)
		gocv.PutText(&mat, label, image.Pt(rect.Min.X, max(rect.Min.Y-4, 10)),
			gocv.FontHersheySimplex, p.FontScale, p.BoxColor, 1)
	}

	out, err := mat.ToImage()
	if err != nil {
		return p.Processor.Annotate(img, defects)
	}
	return out
}

// EncodeJPEG кодирует изображение через imencode.
func (p *GoCVProcessor) EncodeJPEG(w io.Writer, img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), p.JPEGQuality})
	if err != nil {
		return fmt.Errorf("imencode: %w", err)
	}
	defer buf.Close()

	_, err = w.Write(buf.GetBytes())
	return err
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to decode image")
}

func toRGBA(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

// Проверка реализации интерфейса
var _ port.ImageProcessor = (*GoCVProcessor)(nil)
