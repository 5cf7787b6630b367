package common

import "github.com/go-gl/mathgl/mgl64"

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func LerpVec3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Clamp01 limits t to [0, 1].
func Clamp01(t float64) float64 {
	return max(0, min(1, t))
}
