package hue

import (
	"fmt"
	"math"
	"strings"
)

// XYColor is a color in CIE xy chromaticity space with a bridge
// brightness value, the native form Hue lights accept.
type XYColor struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Bri uint8   `json:"bri"` // 1..254
}

// ParseColor accepts "#RRGGBB", "rgb(r, g, b)" or "hsl(h, s%, l%)" and
// converts it to xy chromaticity plus brightness.
func ParseColor(spec string) (XYColor, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return XYColor{}, fmt.Errorf("%w: empty color", ErrInvalidColor)
	}

	var r, g, b float64
	var err error
	switch {
	case strings.HasPrefix(spec, "#"):
		r, g, b, err = parseHex(spec)
	case strings.HasPrefix(strings.ToLower(spec), "rgb("):
		r, g, b, err = parseRGB(spec)
	case strings.HasPrefix(strings.ToLower(spec), "hsl("):
		r, g, b, err = parseHSL(spec)
	default:
		err = fmt.Errorf("%w: unrecognised format %q", ErrInvalidColor, spec)
	}
	if err != nil {
		return XYColor{}, err
	}
	return rgbToXY(r, g, b), nil
}

// parseHex parses "#RRGGBB" into normalised channels.
func parseHex(spec string) (r, g, b float64, err error) {
	if len(spec) != 7 {
		return 0, 0, 0, fmt.Errorf("%w: hex color must be #RRGGBB, got %q", ErrInvalidColor, spec)
	}
	var ri, gi, bi int
	if _, err := fmt.Sscanf(spec, "#%02x%02x%02x", &ri, &gi, &bi); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColor, spec)
	}
	return float64(ri) / 255, float64(gi) / 255, float64(bi) / 255, nil
}

// parseRGB parses "rgb(r, g, b)" with channels 0..255.
func parseRGB(spec string) (r, g, b float64, err error) {
	var ri, gi, bi int
	if _, err := fmt.Sscanf(normaliseFunc(spec), "rgb(%d,%d,%d)", &ri, &gi, &bi); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColor, spec)
	}
	if ri < 0 || ri > 255 || gi < 0 || gi > 255 || bi < 0 || bi > 255 {
		return 0, 0, 0, fmt.Errorf("%w: rgb channel out of range in %q", ErrInvalidColor, spec)
	}
	return float64(ri) / 255, float64(gi) / 255, float64(bi) / 255, nil
}

// parseHSL parses "hsl(h, s%, l%)" with hue in degrees.
func parseHSL(spec string) (r, g, b float64, err error) {
	var h, s, l float64
	if _, err := fmt.Sscanf(normaliseFunc(spec), "hsl(%f,%f%%,%f%%)", &h, &s, &l); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColor, spec)
	}
	if s < 0 || s > 100 || l < 0 || l > 100 {
		return 0, 0, 0, fmt.Errorf("%w: hsl component out of range in %q", ErrInvalidColor, spec)
	}
	h = math.Mod(math.Mod(h, 360)+360, 360)
	s /= 100
	l /= 100

	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = c, x, 0
	case h < 120:
		r1, g1, b1 = x, c, 0
	case h < 180:
		r1, g1, b1 = 0, c, x
	case h < 240:
		r1, g1, b1 = 0, x, c
	case h < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	return r1 + m, g1 + m, b1 + m, nil
}

// normaliseFunc strips spaces inside a functional color notation so
// Sscanf sees a canonical form.
func normaliseFunc(spec string) string {
	return strings.ReplaceAll(strings.ToLower(spec), " ", "")
}

// rgbToXY converts normalised sRGB channels to xy chromaticity plus
// brightness. Channels are gamma-decoded to linear light, projected
// into CIE XYZ with the sRGB D65 matrix, and collapsed to xy; the Y
// component becomes bridge brightness on the 1..254 scale.
func rgbToXY(r, g, b float64) XYColor {
	rl := gammaDecode(r)
	gl := gammaDecode(g)
	bl := gammaDecode(b)

	x := rl*0.4124564 + gl*0.3575761 + bl*0.1804375
	y := rl*0.2126729 + gl*0.7151522 + bl*0.0721750
	z := rl*0.0193339 + gl*0.1191920 + bl*0.9503041

	sum := x + y + z
	cx, cy := 0.3127, 0.3290 // D65 white for black input
	if sum > 0 {
		cx = x / sum
		cy = y / sum
	}

	bri := uint8(math.Round(y * 254))
	if bri < 1 {
		bri = 1
	}
	return XYColor{X: cx, Y: cy, Bri: bri}
}

// gammaDecode converts one sRGB channel to linear light.
func gammaDecode(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// RGB converts the color back to normalised sRGB channels. Luminance
// is reconstructed from the brightness scale, the XYZ tristimulus from
// the chromaticity, and the channels recovered with the inverse sRGB
// matrix and gamma encoding. Brightness quantisation to the 1..254
// scale makes this approximate, not exact.
func (c XYColor) RGB() (r, g, b float64) {
	if c.Y <= 0 {
		return 0, 0, 0
	}
	y := float64(c.Bri) / 254
	x := y / c.Y * c.X
	z := y / c.Y * (1 - c.X - c.Y)

	rl := x*3.2404542 + y*-1.5371385 + z*-0.4985314
	gl := x*-0.9692660 + y*1.8760108 + z*0.0415560
	bl := x*0.0556434 + y*-0.2040259 + z*1.0572252

	return gammaEncode(clamp01(rl)), gammaEncode(clamp01(gl)), gammaEncode(clamp01(bl))
}

// Hex returns the color in #RRGGBB form.
func (c XYColor) Hex() string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02X%02X%02X",
		int(math.Round(r*255)),
		int(math.Round(g*255)),
		int(math.Round(b*255)))
}

// gammaEncode converts one linear channel back to sRGB.
func gammaEncode(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func clamp01(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
