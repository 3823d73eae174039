// Package math holds the float32 vector math behind the block encoder's
// color-line fit.
package math

// Vec3 is an RGB color (or any 3-vector) in float32.
type Vec3 struct {
	X, Y, Z float32
}

var Vec3Zero = Vec3{0, 0, 0}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vec3) Mul(scalar float32) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) LengthSqr() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}
