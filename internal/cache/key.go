package cache

import "fmt"

// TileKey identifies a map tile by zoom level and grid coordinates.
// All fields are non-negative; equality is exact field equality.
type TileKey struct {
	Z int
	X int
	Y int
}

func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}
