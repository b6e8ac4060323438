package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/browser/style"
)

// ParseTransform turns a CSS transform list into a matrix in the element's
// local space. Lengths resolve against the element's own border box, so
// translate(-50%, -50%) moves it by half its width and height. Unknown
// functions are ignored.
func ParseTransform(value string, box schemas.Rect, vp Viewport) TransformMatrix {
	value = strings.TrimSpace(value)
	if value == "" || value == "none" {
		return IdentityMatrix()
	}

	resolveX := func(v string) float64 {
		n, _ := style.ParseLength(v, vp.lengthContext(box.Width))
		return n
	}
	resolveY := func(v string) float64 {
		n, _ := style.ParseLength(v, vp.lengthContext(box.Height))
		return n
	}
	number := func(v string) float64 {
		n, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n
	}

	final := IdentityMatrix()
	for _, f := range strings.Split(value, ")") {
		name, argsStr, ok := strings.Cut(strings.TrimSpace(f), "(")
		if !ok {
			continue
		}
		args := strings.Fields(strings.ReplaceAll(argsStr, ",", " "))
		current := IdentityMatrix()

		switch strings.TrimSpace(name) {
		case "matrix":
			if len(args) == 6 {
				current = TransformMatrix{
					A: number(args[0]), B: number(args[1]), C: number(args[2]),
					D: number(args[3]), E: number(args[4]), F: number(args[5]),
				}
			}
		case "translate":
			if len(args) >= 1 {
				ty := 0.0
				if len(args) > 1 {
					ty = resolveY(args[1])
				}
				current = TranslateMatrix(resolveX(args[0]), ty)
			}
		case "translateX":
			if len(args) == 1 {
				current = TranslateMatrix(resolveX(args[0]), 0)
			}
		case "translateY":
			if len(args) == 1 {
				current = TranslateMatrix(0, resolveY(args[0]))
			}
		case "scale":
			if len(args) >= 1 {
				sx := number(args[0])
				sy := sx
				if len(args) > 1 {
					sy = number(args[1])
				}
				current = ScaleMatrix(sx, sy)
			}
		case "scaleX":
			if len(args) == 1 {
				current = ScaleMatrix(number(args[0]), 1)
			}
		case "scaleY":
			if len(args) == 1 {
				current = ScaleMatrix(1, number(args[0]))
			}
		case "rotate":
			if len(args) == 1 {
				current = RotateMatrix(parseAngle(args[0]))
			}
		}
		final = final.Multiply(current)
	}
	return final
}

// parseAngle returns radians; unitless values are taken as degrees.
func parseAngle(s string) float64 {
	s = strings.TrimSpace(s)
	for _, unit := range []struct {
		suffix string
		scale  float64
	}{
		{"grad", math.Pi / 200},
		{"deg", math.Pi / 180},
		{"rad", 1},
		{"turn", 2 * math.Pi},
	} {
		if num, ok := strings.CutSuffix(s, unit.suffix); ok {
			v, _ := strconv.ParseFloat(num, 64)
			return v * unit.scale
		}
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v * math.Pi / 180
}

// parseTransformOrigin resolves transform-origin to box-local pixels.
func parseTransformOrigin(value string, box schemas.Rect, vp Viewport) (float64, float64) {
	keywordToPercent := map[string]string{
		"left": "0%", "center": "50%", "right": "100%",
		"top": "0%", "bottom": "100%",
	}
	xStr, yStr := "50%", "50%"
	parts := strings.Fields(value)
	if len(parts) >= 1 {
		xStr = parts[0]
	}
	if len(parts) >= 2 {
		yStr = parts[1]
	}
	if p, ok := keywordToPercent[xStr]; ok {
		xStr = p
	}
	if p, ok := keywordToPercent[yStr]; ok {
		yStr = p
	}
	ox, _ := style.ParseLength(xStr, vp.lengthContext(box.Width))
	oy, _ := style.ParseLength(yStr, vp.lengthContext(box.Height))
	return ox, oy
}

// TransformAbout returns the viewport-space matrix for an element whose
// untransformed border box is box.
func TransformAbout(s Styles, box schemas.Rect, vp Viewport) TransformMatrix {
	local := ParseTransform(s.Lookup("transform", "none"), box, vp)
	if local.IsIdentity() {
		return local
	}
	ox, oy := parseTransformOrigin(s.Lookup("transform-origin", "50% 50%"), box, vp)
	px, py := box.Left+ox, box.Top+oy
	return TranslateMatrix(px, py).Multiply(local.Multiply(TranslateMatrix(-px, -py)))
}
