package layout

import (
	"fmt"
	"math"

	"github.com/xkilldash9x/boxedit/api/schemas"
)

// TransformMatrix represents a 2D affine transformation matrix (3x3).
// [ a c e ]
// [ b d f ]
// [ 0 0 1 ]
type TransformMatrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix returns the identity matrix (no transformation).
func IdentityMatrix() TransformMatrix {
	return TransformMatrix{A: 1, D: 1}
}

// Multiply combines two matrices (m1 * m2). Order matters.
func (m1 TransformMatrix) Multiply(m2 TransformMatrix) TransformMatrix {
	return TransformMatrix{
		A: m1.A*m2.A + m1.C*m2.B,
		B: m1.B*m2.A + m1.D*m2.B,
		C: m1.A*m2.C + m1.C*m2.D,
		D: m1.B*m2.C + m1.D*m2.D,
		E: m1.A*m2.E + m1.C*m2.F + m1.E,
		F: m1.B*m2.E + m1.D*m2.F + m1.F,
	}
}

// Apply transforms a point (x, y).
func (m TransformMatrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// IsIdentity reports whether m leaves every point unchanged.
func (m TransformMatrix) IsIdentity() bool {
	return m == IdentityMatrix()
}

// Inverse calculates the inverse of the transformation matrix.
func (m TransformMatrix) Inverse() (TransformMatrix, error) {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return TransformMatrix{}, fmt.Errorf("matrix is not invertible")
	}
	inv := 1.0 / det
	return TransformMatrix{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}, nil
}

// BoundingBox returns the axis-aligned box enclosing r after transformation,
// which is what getBoundingClientRect reports for a transformed element.
func (m TransformMatrix) BoundingBox(r schemas.Rect) schemas.Rect {
	if m.IsIdentity() {
		return r
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{
		{r.Left, r.Top}, {r.Right(), r.Top}, {r.Right(), r.Bottom()}, {r.Left, r.Bottom()},
	} {
		x, y := m.Apply(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return schemas.Rect{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
}

// TranslateMatrix creates a translation matrix.
func TranslateMatrix(tx, ty float64) TransformMatrix {
	return TransformMatrix{A: 1, D: 1, E: tx, F: ty}
}

// ScaleMatrix creates a scaling matrix.
func ScaleMatrix(sx, sy float64) TransformMatrix {
	return TransformMatrix{A: sx, D: sy}
}

// RotateMatrix creates a rotation matrix. Angle is in radians.
func RotateMatrix(angle float64) TransformMatrix {
	cosA, sinA := math.Cos(angle), math.Sin(angle)
	return TransformMatrix{A: cosA, B: sinA, C: -sinA, D: cosA}
}
