package entity

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregate_Empty(t *testing.T) {
	v := Aggregate(nil)
	require.Equal(t, StatusNoDefect, v.QualityStatus)
	require.Equal(t, "none", v.DefectType)
}

func TestAggregate_KeepsDuplicatesInOrder(t *testing.T) {
	v := Aggregate([]Defect{
		{Type: "scratch", Confidence: 0.9},
		{Type: "short", Confidence: 0.4},
		{Type: "scratch", Confidence: 0.3},
	})
	require.Equal(t, StatusDefective, v.QualityStatus)
	require.Equal(t, "scratch, short, scratch", v.DefectType)
}

func TestFilterByConfidence(t *testing.T) {
	defects := []Defect{{Type: "a", Confidence: 0.25}, {Type: "b", Confidence: 0.2499}, {Type: "c", Confidence: 1}}
	require.Equal(t, []string{"a", "c"}, DefectTypes(FilterByConfidence(defects, 0.25)))
}

func TestDecodedSymbol_HasArea(t *testing.T) {
	square := DecodedSymbol{Polygon: []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	line := DecodedSymbol{Polygon: []image.Point{{0, 0}, {5, 5}, {10, 10}}}
	require.True(t, square.HasArea())
	require.False(t, line.HasArea())
	require.False(t, DecodedSymbol{}.HasArea())
	require.Equal(t, image.Rect(0, 0, 10, 10), square.Bounds())
}
