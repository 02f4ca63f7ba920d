package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/yumekawa-dev/kanade/engine/chart"
)

// Playfield geometry constants. The track spans x in [-1, 1] split into
// NumLanes cells; z grows with time at the configured scroll speed.
const (
	NumLanes      = 8
	TrackLeftX    = -1.0
	TrackWidth    = 2.0
	LaneWidth     = TrackWidth / NumLanes
	HitAreaZStart = 0.85

	checkerCells = 4
	checkerRows  = 4
)

// HitObject places one note marker on the track.
type HitObject struct {
	// XScale is the marker width relative to the full track.
	XScale float32
	// XOffset is the marker's left edge in track coordinates.
	XOffset float32
	// ZOffset is the distance at which the marker sits.
	ZOffset float32
}

// PlatformObject is a closed union over the platform geometries the
// renderer knows how to draw.
type PlatformObject interface {
	platformObject()
	// Mesh returns the platform's plane in track coordinates, with z
	// relative to the platform's own start.
	Mesh() Plane
	// ZRange returns the platform's start and end distance on the track.
	ZRange() (float32, float32)
}

// DynamicPlanePlatform interpolates placement and width between its two
// ends.
type DynamicPlanePlatform struct {
	startZ float32
	endZ   float32
	mesh   Plane
}

func (p *DynamicPlanePlatform) platformObject() {}

func (p *DynamicPlanePlatform) Mesh() Plane { return p.mesh }

func (p *DynamicPlanePlatform) ZRange() (float32, float32) { return p.startZ, p.endZ }

// CheckerPlanePlatform is the same shape rendered as a checker grid.
type CheckerPlanePlatform struct {
	startZ float32
	endZ   float32
	mesh   Plane
}

func (p *CheckerPlanePlatform) platformObject() {}

func (p *CheckerPlanePlatform) Mesh() Plane { return p.mesh }

func (p *CheckerPlanePlatform) ZRange() (float32, float32) { return p.startZ, p.endZ }

// HitObjects converts compiled notes into track markers. scrollSpeed is
// the distance one second of chart covers.
func HitObjects(compiled *chart.RuntimeChart, scrollSpeed float32) []HitObject {
	objects := make([]HitObject, len(compiled.Notes))
	for i, note := range compiled.Notes {
		objects[i] = HitObject{
			XScale:  float32(note.Width) / NumLanes,
			XOffset: TrackLeftX + float32(note.Cell)*LaneWidth,
			ZOffset: scrollSpeed*float32(note.Offset) + HitAreaZStart,
		}
	}
	return objects
}

// PlatformObjects converts compiled platforms into drawable planes.
func PlatformObjects(compiled *chart.RuntimeChart, scrollSpeed float32) []PlatformObject {
	objects := make([]PlatformObject, 0, len(compiled.Platforms))
	for _, platform := range compiled.Platforms {
		startZ := scrollSpeed * float32(platform.StartSeconds)
		endZ := scrollSpeed * float32(platform.EndSeconds)
		zLength := endZ - startZ

		bottomLeft := mgl32.Vec2{platform.StartPlacement, HitAreaZStart}
		bottomRight := mgl32.Vec2{platform.StartPlacement + platform.StartWidth, HitAreaZStart}
		topLeft := mgl32.Vec2{platform.EndPlacement, HitAreaZStart + zLength}
		topRight := mgl32.Vec2{platform.EndPlacement + platform.EndWidth, HitAreaZStart + zLength}

		switch platform.Kind {
		case chart.PlatformQuad:
			objects = append(objects, &DynamicPlanePlatform{
				startZ: startZ,
				endZ:   endZ,
				mesh:   Quad(bottomLeft, bottomRight, topLeft, topRight),
			})
		case chart.PlatformChecker:
			objects = append(objects, &CheckerPlanePlatform{
				startZ: startZ,
				endZ:   endZ,
				mesh:   CheckerQuad(bottomLeft, bottomRight, topLeft, topRight, checkerCells, checkerRows),
			})
		}
	}
	return objects
}

// LaneGeometry builds the static track base and its separator lines.
type LaneGeometry struct {
	Base       Plane
	Separators Plane
}

// Lanes generates the track base spanning the visible z range plus thin
// separator quads between lanes.
func Lanes(zNear, zFar, separatorWidth float32) LaneGeometry {
	base := Quad(
		mgl32.Vec2{TrackLeftX, zNear},
		mgl32.Vec2{TrackLeftX + TrackWidth, zNear},
		mgl32.Vec2{TrackLeftX, zFar},
		mgl32.Vec2{TrackLeftX + TrackWidth, zFar},
	)

	var separators Plane
	for lane := 1; lane < NumLanes; lane++ {
		x := float32(TrackLeftX) + float32(lane)*LaneWidth
		half := separatorWidth / 2
		separator := Quad(
			mgl32.Vec2{x - half, zNear},
			mgl32.Vec2{x + half, zNear},
			mgl32.Vec2{x - half, zFar},
			mgl32.Vec2{x + half, zFar},
		)
		separators.Append(separator)
	}

	return LaneGeometry{Base: base, Separators: separators}
}

// HitMarkerMesh is the unit quad instanced for every hit object, spanning
// one full lane before per-object scaling.
func HitMarkerMesh(zDepth float32) Plane {
	return Quad(
		mgl32.Vec2{0, 0},
		mgl32.Vec2{TrackWidth, 0},
		mgl32.Vec2{0, zDepth},
		mgl32.Vec2{TrackWidth, zDepth},
	)
}
