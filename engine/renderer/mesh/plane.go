// Package mesh generates the playfield geometry: platform planes, hit
// markers and lane dividers. All meshes are flat y=0 planes addressed by
// x (placement) and z (distance along the track).
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is an indexed triangle mesh lying in the y=0 plane.
type Plane struct {
	Positions []mgl32.Vec3
	Indices   []uint32
}

// Quad builds a plane from four corners given as (x, z) pairs, wound as
// bottom-left, bottom-right, top-left, top-right. "Bottom" is the nearer z.
func Quad(bottomLeft, bottomRight, topLeft, topRight mgl32.Vec2) Plane {
	return Plane{
		Positions: []mgl32.Vec3{
			{bottomLeft.X(), 0, bottomLeft.Y()},
			{bottomRight.X(), 0, bottomRight.Y()},
			{topLeft.X(), 0, topLeft.Y()},
			{topRight.X(), 0, topRight.Y()},
		},
		Indices: []uint32{0, 1, 2, 2, 1, 3},
	}
}

// CheckerQuad subdivides the quad into a cells×rows grid and keeps only
// alternating cells, giving a checker pattern from geometry alone. Edges
// interpolate between the bottom and top placements, so tapered platforms
// keep their shape.
func CheckerQuad(bottomLeft, bottomRight, topLeft, topRight mgl32.Vec2, cells, rows int) Plane {
	var plane Plane
	for row := 0; row < rows; row++ {
		rowNear := float32(row) / float32(rows)
		rowFar := float32(row+1) / float32(rows)

		nearLeft := lerp2(bottomLeft, topLeft, rowNear)
		nearRight := lerp2(bottomRight, topRight, rowNear)
		farLeft := lerp2(bottomLeft, topLeft, rowFar)
		farRight := lerp2(bottomRight, topRight, rowFar)

		for cell := 0; cell < cells; cell++ {
			if (row+cell)%2 != 0 {
				continue
			}
			cellNear := float32(cell) / float32(cells)
			cellFar := float32(cell+1) / float32(cells)

			cellQuad := Quad(
				lerp2(nearLeft, nearRight, cellNear),
				lerp2(nearLeft, nearRight, cellFar),
				lerp2(farLeft, farRight, cellNear),
				lerp2(farLeft, farRight, cellFar),
			)
			plane.Append(cellQuad)
		}
	}
	return plane
}

// Append merges another plane into this one, rebasing its indices.
func (p *Plane) Append(other Plane) {
	base := uint32(len(p.Positions))
	p.Positions = append(p.Positions, other.Positions...)
	for _, index := range other.Indices {
		p.Indices = append(p.Indices, base+index)
	}
}

func (p *Plane) VertexCount() int {
	return len(p.Positions)
}

func (p *Plane) IndexCount() int {
	return len(p.Indices)
}

func lerp2(a, b mgl32.Vec2, t float32) mgl32.Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}
