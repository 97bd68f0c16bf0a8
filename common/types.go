// package common contains the math and utility types shared by every splat package. They are not interface-wrapped structs, just plain
// values that express commonly used data-types.
package common

// Quat is an orientation quaternion with imaginary part (X, Y, Z) and real part W.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the quaternion of the zero rotation.
var IdentityQuat = Quat{W: 1}

// Vec3Min returns the component-wise minimum of a and b.
func Vec3Min(a, b [3]float32) [3]float32 {
	return [3]float32{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

// Vec3Max returns the component-wise maximum of a and b.
func Vec3Max(a, b [3]float32) [3]float32 {
	return [3]float32{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}

// Sub3 returns a - b.
func Sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}
