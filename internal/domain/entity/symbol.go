package entity

import "image"

// DecodedSymbol — символ, найденный декодером штрихкодов.
type DecodedSymbol struct {
	Format  string        // тип символики, например EAN_13
	Payload string        // декодированный текст
	Polygon []image.Point // контур символа в координатах изображения
}

// HasArea сообщает, можно ли закрасить контур символа.
func (s DecodedSymbol) HasArea() bool {
	if len(s.Polygon) < 3 {
		return false
	}
	return polygonArea2(s.Polygon) != 0
}

// Bounds возвращает описанный прямоугольник контура.
func (s DecodedSymbol) Bounds() image.Rectangle {
	if len(s.Polygon) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: s.Polygon[0], Max: s.Polygon[0]}
	for _, p := range s.Polygon[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

// polygonArea2 — удвоенная ориентированная площадь (формула шнурка).
func polygonArea2(pts []image.Point) int {
	area := 0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return area
}
