package render

import "github.com/go-gl/mathgl/mgl64"

// SideCamera is an orthographic view looking down -X: world Z runs to the
// right of the screen and world Y up.
type SideCamera struct {
	Center mgl64.Vec3
	// Scale is pixels per metre.
	Scale         float64
	Width, Height float64
	// Depth is how far in front of Center rays start.
	Depth float64
}

func (c SideCamera) Project(p mgl64.Vec3) (float64, float64) {
	x := c.Width/2 + (p.Z()-c.Center.Z())*c.Scale
	y := c.Height/2 - (p.Y()-c.Center.Y())*c.Scale
	return x, y
}

// Unproject returns the world point under a screen position on the plane
// x = Center.X.
func (c SideCamera) Unproject(sx, sy float64) mgl64.Vec3 {
	if c.Scale == 0 {
		return c.Center
	}
	z := c.Center.Z() + (sx-c.Width/2)/c.Scale
	y := c.Center.Y() - (sy-c.Height/2)/c.Scale
	return mgl64.Vec3{c.Center.X(), y, z}
}

// Ray returns a pointing ray through a screen position.
func (c SideCamera) Ray(sx, sy float64) (origin, dir mgl64.Vec3) {
	p := c.Unproject(sx, sy)
	origin = p.Add(mgl64.Vec3{c.Depth, 0, 0})
	return origin, mgl64.Vec3{-1, 0, 0}
}
