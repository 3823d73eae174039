package math

import (
	"math"
	"testing"
)

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	// Addition
	result := v1.Add(v2)
	expected := NewVec3(5, 7, 9)
	if result != expected {
		t.Errorf("Add: expected %v, got %v", expected, result)
	}

	// Subtraction
	result = v2.Sub(v1)
	expected = NewVec3(3, 3, 3)
	if result != expected {
		t.Errorf("Sub: expected %v, got %v", expected, result)
	}

	// Scalar multiplication
	result = v1.Mul(2)
	expected = NewVec3(2, 4, 6)
	if result != expected {
		t.Errorf("Mul: expected %v, got %v", expected, result)
	}

	// Dot product
	dot := v1.Dot(v2)
	expectedDot := float32(32) // 1*4 + 2*5 + 3*6
	if dot != expectedDot {
		t.Errorf("Dot: expected %v, got %v", expectedDot, dot)
	}

	if l := v1.LengthSqr(); l != 14 {
		t.Errorf("LengthSqr: expected 14, got %v", l)
	}
}

func TestCovariance(t *testing.T) {
	mean, cov := Covariance([]Vec3{NewVec3(0, 0, 0), NewVec3(2, 0, 0)})
	if mean != NewVec3(1, 0, 0) {
		t.Errorf("Covariance: expected mean (1,0,0), got %v", mean)
	}
	expected := Sym3{XX: 2}
	if cov != expected {
		t.Errorf("Covariance: expected %+v, got %+v", expected, cov)
	}

	mean, cov = Covariance(nil)
	if mean != Vec3Zero || cov != (Sym3{}) {
		t.Errorf("Covariance: expected zero for no points, got %v %+v", mean, cov)
	}
}

func TestSym3MulVec(t *testing.T) {
	m := Sym3{XX: 1, YY: 2, ZZ: 3, XY: 4, XZ: 5, YZ: 6}
	result := m.MulVec(NewVec3(1, 1, 1))
	expected := NewVec3(10, 12, 14)
	if result != expected {
		t.Errorf("MulVec: expected %v, got %v", expected, result)
	}
}

func TestPowerIterate(t *testing.T) {
	_, cov := Covariance([]Vec3{NewVec3(0, 0, 0), NewVec3(2, 0, 0)})
	v := cov.PowerIterate(NewVec3(1, 1, 1), 3)
	if v != NewVec3(8, 0, 0) {
		t.Errorf("PowerIterate: expected (8,0,0), got %v", v)
	}

	// a gray ramp lies on the diagonal
	_, cov = Covariance([]Vec3{NewVec3(0, 0, 0), NewVec3(10, 10, 10), NewVec3(20, 20, 20)})
	v = cov.PowerIterate(NewVec3(1, 2.718281828, 3.141592654), 3)
	length := float32(math.Sqrt(float64(v.LengthSqr())))
	for _, c := range []float32{v.X, v.Y, v.Z} {
		if math.Abs(float64(c/length)-1/math.Sqrt(3)) > 0.0001 {
			t.Errorf("PowerIterate: expected the diagonal, got %v", v)
			break
		}
	}
}
