package math

// Sym3 is a symmetric 3×3 matrix stored as its six unique entries.
// It is used for the covariance of a set of RGB texels.
type Sym3 struct {
	XX, YY, ZZ float32
	XY, XZ, YZ float32
}

// Covariance accumulates the mean and covariance of points.
// The returned matrix is the scatter matrix (sum of outer products of the
// centered points), not divided by the point count.
func Covariance(points []Vec3) (mean Vec3, cov Sym3) {
	if len(points) == 0 {
		return Vec3Zero, Sym3{}
	}
	n := float32(len(points))
	inv := 1 / n

	var sum Vec3
	for _, p := range points {
		sum = sum.Add(p)
		cov.XX += p.X * p.X
		cov.YY += p.Y * p.Y
		cov.ZZ += p.Z * p.Z
		cov.XY += p.X * p.Y
		cov.XZ += p.X * p.Z
		cov.YZ += p.Y * p.Z
	}
	mean = sum.Mul(inv)

	// Σ(p·q) - n·mean_p·mean_q
	cov.XX -= n * mean.X * mean.X
	cov.YY -= n * mean.Y * mean.Y
	cov.ZZ -= n * mean.Z * mean.Z
	cov.XY -= n * mean.X * mean.Y
	cov.XZ -= n * mean.X * mean.Z
	cov.YZ -= n * mean.Y * mean.Z
	return mean, cov
}

// MulVec returns m·v.
func (m Sym3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: v.X*m.XX + v.Y*m.XY + v.Z*m.XZ,
		Y: v.X*m.XY + v.Y*m.YY + v.Z*m.YZ,
		Z: v.X*m.XZ + v.Y*m.YZ + v.Z*m.ZZ,
	}
}

// PowerIterate applies m to seed n times and returns the unnormalized result,
// an approximation of the dominant eigenvector of m. The iteration count is
// fixed so the result is reproducible bit for bit.
func (m Sym3) PowerIterate(seed Vec3, n int) Vec3 {
	v := seed
	for i := 0; i < n; i++ {
		v = m.MulVec(v)
	}
	return v
}
