package math

import "github.com/chewxy/math32"

// Mat4 is a 4x4 matrix in column-major order.
// Element (row r, column c) lives at index c*4+r.
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns a right-handed perspective projection with a [-1, 1]
// clip depth range. fovY is in radians, aspect is width/height.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)
	nf := 1 / (near - far)

	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// Ortho returns an orthographic projection matrix.
func Ortho(left, right, bottom, top, near, far float32) Mat4 {
	rl := 1 / (right - left)
	tb := 1 / (top - bottom)
	fn := 1 / (far - near)

	return Mat4{
		2 * rl, 0, 0, 0,
		0, 2 * tb, 0, 0,
		0, 0, -2 * fn, 0,
		-(right + left) * rl, -(top + bottom) * tb, -(far + near) * fn, 1,
	}
}

// LookAt returns a view matrix looking from eye to center.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)

	return Mat4{
		s.X, u.X, -f.X, 0,
		s.Y, u.Y, -f.Y, 0,
		s.Z, u.Z, -f.Z, 0,
		-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}

// Translate returns a translation matrix.
func Translate(v Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = v.X, v.Y, v.Z
	return m
}

// Scale returns a scale matrix.
func Scale(v Vec3) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = v.X, v.Y, v.Z
	return m
}

// RotateAxis returns a rotation of angle radians around a normalized axis.
func RotateAxis(axis Vec3, angle float32) Mat4 {
	return QuatFromAxisAngle(axis, angle).Mat4()
}

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float32 {
	return m[c*4+r]
}

// Row returns row r.
func (m Mat4) Row(r int) Vec4 {
	return Vec4{m[r], m[4+r], m[8+r], m[12+r]}
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			t[r*4+c] = m[c*4+r]
		}
	}
	return t
}

// Mul returns m * other.
func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		col := other[c*4 : c*4+4]
		for r := 0; r < 4; r++ {
			out[c*4+r] = m[r]*col[0] + m[4+r]*col[1] + m[8+r]*col[2] + m[12+r]*col[3]
		}
	}
	return out
}

// MulVec4 returns m * v.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		m[0]*v[0] + m[4]*v[1] + m[8]*v[2] + m[12]*v[3],
		m[1]*v[0] + m[5]*v[1] + m[9]*v[2] + m[13]*v[3],
		m[2]*v[0] + m[6]*v[1] + m[10]*v[2] + m[14]*v[3],
		m[3]*v[0] + m[7]*v[1] + m[11]*v[2] + m[15]*v[3],
	}
}

// TransformPoint transforms p with w=1 and performs the perspective divide
// when the result has w other than 0 or 1.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	v := m.MulVec4(Point(p))
	if v[3] != 0 && v[3] != 1 {
		return Vec3{v[0] / v[3], v[1] / v[3], v[2] / v[3]}
	}
	return v.XYZ()
}

// TransformDirection transforms d ignoring translation.
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return m.MulVec4(Vec4{d.X, d.Y, d.Z, 0}).XYZ()
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// ApproxEqual reports whether every element differs by at most eps.
func (m Mat4) ApproxEqual(other Mat4, eps float32) bool {
	for i := range m {
		if math32.Abs(m[i]-other[i]) > eps {
			return false
		}
	}
	return true
}

// Inverse returns the inverse matrix, or identity when m is singular.
func (m Mat4) Inverse() Mat4 {
	// 2x2 sub-determinants of the top two and bottom two rows.
	s0 := m.At(0, 0)*m.At(1, 1) - m.At(1, 0)*m.At(0, 1)
	s1 := m.At(0, 0)*m.At(1, 2) - m.At(1, 0)*m.At(0, 2)
	s2 := m.At(0, 0)*m.At(1, 3) - m.At(1, 0)*m.At(0, 3)
	s3 := m.At(0, 1)*m.At(1, 2) - m.At(1, 1)*m.At(0, 2)
	s4 := m.At(0, 1)*m.At(1, 3) - m.At(1, 1)*m.At(0, 3)
	s5 := m.At(0, 2)*m.At(1, 3) - m.At(1, 2)*m.At(0, 3)

	c5 := m.At(2, 2)*m.At(3, 3) - m.At(3, 2)*m.At(2, 3)
	c4 := m.At(2, 1)*m.At(3, 3) - m.At(3, 1)*m.At(2, 3)
	c3 := m.At(2, 1)*m.At(3, 2) - m.At(3, 1)*m.At(2, 2)
	c2 := m.At(2, 0)*m.At(3, 3) - m.At(3, 0)*m.At(2, 3)
	c1 := m.At(2, 0)*m.At(3, 2) - m.At(3, 0)*m.At(2, 2)
	c0 := m.At(2, 0)*m.At(3, 1) - m.At(3, 0)*m.At(2, 1)

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return Identity()
	}
	inv := 1 / det

	var b [4][4]float32 // b[row][col]
	b[0][0] = (m.At(1, 1)*c5 - m.At(1, 2)*c4 + m.At(1, 3)*c3) * inv
	b[0][1] = (-m.At(0, 1)*c5 + m.At(0, 2)*c4 - m.At(0, 3)*c3) * inv
	b[0][2] = (m.At(3, 1)*s5 - m.At(3, 2)*s4 + m.At(3, 3)*s3) * inv
	b[0][3] = (-m.At(2, 1)*s5 + m.At(2, 2)*s4 - m.At(2, 3)*s3) * inv

	b[1][0] = (-m.At(1, 0)*c5 + m.At(1, 2)*c2 - m.At(1, 3)*c1) * inv
	b[1][1] = (m.At(0, 0)*c5 - m.At(0, 2)*c2 + m.At(0, 3)*c1) * inv
	b[1][2] = (-m.At(3, 0)*s5 + m.At(3, 2)*s2 - m.At(3, 3)*s1) * inv
	b[1][3] = (m.At(2, 0)*s5 - m.At(2, 2)*s2 + m.At(2, 3)*s1) * inv

	b[2][0] = (m.At(1, 0)*c4 - m.At(1, 1)*c2 + m.At(1, 3)*c0) * inv
	b[2][1] = (-m.At(0, 0)*c4 + m.At(0, 1)*c2 - m.At(0, 3)*c0) * inv
	b[2][2] = (m.At(3, 0)*s4 - m.At(3, 1)*s2 + m.At(3, 3)*s0) * inv
	b[2][3] = (-m.At(2, 0)*s4 + m.At(2, 1)*s2 - m.At(2, 3)*s0) * inv

	b[3][0] = (-m.At(1, 0)*c3 + m.At(1, 1)*c1 - m.At(1, 2)*c0) * inv
	b[3][1] = (m.At(0, 0)*c3 - m.At(0, 1)*c1 + m.At(0, 2)*c0) * inv
	b[3][2] = (-m.At(3, 0)*s3 + m.At(3, 1)*s1 - m.At(3, 2)*s0) * inv
	b[3][3] = (m.At(2, 0)*s3 - m.At(2, 1)*s1 + m.At(2, 2)*s0) * inv

	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = b[r][c]
		}
	}
	return out
}

// TRS composes translation * rotation * scale.
func TRS(t Vec3, r Quat, s Vec3) Mat4 {
	return Translate(t).Mul(r.Mat4()).Mul(Scale(s))
}

// Determinant returns the determinant of m.
func (m Mat4) Determinant() float32 {
	s0 := m.At(0, 0)*m.At(1, 1) - m.At(1, 0)*m.At(0, 1)
	s1 := m.At(0, 0)*m.At(1, 2) - m.At(1, 0)*m.At(0, 2)
	s2 := m.At(0, 0)*m.At(1, 3) - m.At(1, 0)*m.At(0, 3)
	s3 := m.At(0, 1)*m.At(1, 2) - m.At(1, 1)*m.At(0, 2)
	s4 := m.At(0, 1)*m.At(1, 3) - m.At(1, 1)*m.At(0, 3)
	s5 := m.At(0, 2)*m.At(1, 3) - m.At(1, 2)*m.At(0, 3)

	c5 := m.At(2, 2)*m.At(3, 3) - m.At(3, 2)*m.At(2, 3)
	c4 := m.At(2, 1)*m.At(3, 3) - m.At(3, 1)*m.At(2, 3)
	c3 := m.At(2, 1)*m.At(3, 2) - m.At(3, 1)*m.At(2, 2)
	c2 := m.At(2, 0)*m.At(3, 3) - m.At(3, 0)*m.At(2, 3)
	c1 := m.At(2, 0)*m.At(3, 2) - m.At(3, 0)*m.At(2, 2)
	c0 := m.At(2, 0)*m.At(3, 1) - m.At(3, 0)*m.At(2, 1)

	return s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
}
