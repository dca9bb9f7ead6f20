package style

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"github.com/matzehuels/dagview/pkg/errors"
)

// Transparent is accepted in addition to the SVG color names.
const Transparent = "transparent"

var rgbFuncRe = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,\s*([0-9]*\.?[0-9]+)\s*)?\)$`)

// ValidateColor reports whether s is a usable color: #rgb, #rrggbb, an SVG
// color name, rgb(r, g, b) or rgba(r, g, b, a).
func ValidateColor(s string) error {
	_, err := NormalizeColor(s)
	return err
}

// NormalizeColor converts a valid color string to "#rrggbb", or "#rrggbbaa"
// when it carries an alpha below 1.
func NormalizeColor(s string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if in == "" {
		return "", errors.New(errors.ErrCodeInvalidColor, "color cannot be empty")
	}
	if in == Transparent {
		return "#00000000", nil
	}

	if strings.HasPrefix(in, "#") {
		if (len(in) != 4 && len(in) != 7) || !isHex(in[1:]) {
			return "", errors.New(errors.ErrCodeInvalidColor, "invalid hex color: %q", s)
		}
		c, err := colorful.Hex(in)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidColor, err, "invalid hex color: %q", s)
		}
		return c.Hex(), nil
	}

	if m := rgbFuncRe.FindStringSubmatch(in); m != nil {
		var rgb [3]uint8
		for i := range rgb {
			v, _ := strconv.Atoi(m[i+1])
			if v > 255 {
				return "", errors.New(errors.ErrCodeInvalidColor, "color channel out of range in %q", s)
			}
			rgb[i] = uint8(v)
		}
		hex := fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
		if m[4] == "" {
			if strings.HasPrefix(in, "rgba") {
				return "", errors.New(errors.ErrCodeInvalidColor, "rgba color needs an alpha value: %q", s)
			}
			return hex, nil
		}
		if !strings.HasPrefix(in, "rgba") {
			return "", errors.New(errors.ErrCodeInvalidColor, "rgb color takes three channels: %q", s)
		}
		a, err := strconv.ParseFloat(m[4], 64)
		if err != nil || a > 1 {
			return "", errors.New(errors.ErrCodeInvalidColor, "alpha must be between 0 and 1 in %q", s)
		}
		if a == 1 {
			return hex, nil
		}
		return hex + fmt.Sprintf("%02x", uint8(a*255+0.5)), nil
	}

	if c, ok := colornames.Map[in]; ok {
		return rgbaHex(c), nil
	}

	return "", errors.New(errors.ErrCodeInvalidColor, "invalid color: %q", s)
}

func rgbaHex(c color.RGBA) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
