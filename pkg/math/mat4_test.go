package math

import (
	"math"
	"testing"
)

func TestIdentityMul(t *testing.T) {
	m := Translate(Vec3{1, 2, 3}).Mul(Scale(Vec3{2, 2, 2}))
	if got := m.Mul(Identity()); got != m {
		t.Errorf("M * I = %v, want %v", got, m)
	}
	if got := Identity().Mul(m); got != m {
		t.Errorf("I * M = %v, want %v", got, m)
	}
}

func TestTranslateScaleOrder(t *testing.T) {
	m := Translate(Vec3{10, 0, 0}).Mul(Scale(Vec3{2, 2, 2}))
	got := m.TransformPoint(Vec3{1, 1, 1})
	want := Vec3{12, 2, 2}
	if got != want {
		t.Errorf("TransformPoint = %v, want %v", got, want)
	}
}

func TestTranspose(t *testing.T) {
	m := Translate(Vec3{1, 2, 3})
	tr := m.Transpose()
	if tr.At(3, 0) != 1 || tr.At(3, 1) != 2 || tr.At(3, 2) != 3 {
		t.Errorf("translation not moved to last row: %v", tr)
	}
	if tr.Transpose() != m {
		t.Error("double transpose should be identity operation")
	}
}

func TestRow(t *testing.T) {
	m := Translate(Vec3{4, 5, 6})
	if got, want := m.Row(0), (Vec4{1, 0, 0, 4}); got != want {
		t.Errorf("Row(0) = %v, want %v", got, want)
	}
}

func TestInverse(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"translate", Translate(Vec3{3, -2, 7})},
		{"scale", Scale(Vec3{2, 4, 0.5})},
		{"rotate", RotateAxis(Vec3{0, 1, 0}, math.Pi/3)},
		{"perspective", Perspective(math.Pi/4, 16.0/9.0, 0.1, 100)},
		{"view", LookAt(Vec3{5, 5, 5}, Vec3{}, Vec3{0, 1, 0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.Mul(tt.m.Inverse())
			if !got.ApproxEqual(Identity(), 1e-4) {
				t.Errorf("M * inverse(M) = %v", got)
			}
		})
	}
}

func TestInverseSingular(t *testing.T) {
	if got := (Mat4{}).Inverse(); got != Identity() {
		t.Errorf("singular inverse = %v, want identity", got)
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(math.Pi/2, 1, 1, 10)
	near := p.MulVec4(Vec4{0, 0, -1, 1})
	far := p.MulVec4(Vec4{0, 0, -10, 1})
	if z := near[2] / near[3]; math.Abs(float64(z+1)) > 1e-5 {
		t.Errorf("near plane depth = %f, want -1", z)
	}
	if z := far[2] / far[3]; math.Abs(float64(z-1)) > 1e-5 {
		t.Errorf("far plane depth = %f, want 1", z)
	}
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := Vec3{0, 3, 10}
	v := LookAt(eye, Vec3{}, Vec3{0, 1, 0})
	got := v.TransformPoint(eye)
	if got.Length() > 1e-4 {
		t.Errorf("eye in view space = %v, want origin", got)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(Vec3{100, 100, 100})
	if got := m.TransformDirection(Vec3{0, 0, 1}); got != (Vec3{0, 0, 1}) {
		t.Errorf("TransformDirection = %v", got)
	}
}

func TestDeterminant(t *testing.T) {
	if d := Scale(Vec3{2, 3, 4}).Determinant(); d != 24 {
		t.Errorf("det(scale) = %f, want 24", d)
	}
	if d := Translate(Vec3{5, 6, 7}).Determinant(); d != 1 {
		t.Errorf("det(translate) = %f, want 1", d)
	}
}
