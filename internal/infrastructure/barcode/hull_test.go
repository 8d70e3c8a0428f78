package barcode

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvexHull(t *testing.T) {
	pts := []image.Point{
		{10, 10}, {20, 10}, {20, 20}, {10, 20},
		{15, 15}, {12, 18}, {15, 10}, {20, 10},
	}
	hull := convexHull(pts)
	require.ElementsMatch(t, []image.Point{{10, 10}, {20, 10}, {20, 20}, {10, 20}}, hull)
}

func TestConvexHull_Degenerate(t *testing.T) {
	require.Empty(t, convexHull(nil))
	require.Len(t, convexHull([]image.Point{{1, 1}, {1, 1}}), 1)

	line := convexHull([]image.Point{{0, 0}, {5, 5}, {10, 10}})
	require.ElementsMatch(t, []image.Point{{0, 0}, {10, 10}}, line)
}
