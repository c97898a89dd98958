package form

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// Kind selects how an input is normalized.
type Kind int

const (
	KindText Kind = iota
	KindChoice
	// KindDigits keeps digits only (phone numbers).
	KindDigits
	// KindCurrency is a yen amount stored with thousands separators; its
	// resting value is "0".
	KindCurrency
	// KindPercentage treats "0" the same as empty.
	KindPercentage
	// KindCount is a small non-negative integer where "0" is meaningful.
	KindCount
)

// MaxAmount bounds every yen amount.
const MaxAmount int64 = 999999999999

// narrow folds full-width digits and separators typed on Japanese IMEs.
func narrow(s string) string {
	out, _, err := transform.String(width.Narrow, s)
	if err != nil {
		return s
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range narrow(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeInput applies the per-keystroke rules for kind.
func NormalizeInput(kind Kind, raw string) string {
	switch kind {
	case KindDigits:
		return digitsOnly(raw)
	case KindCurrency:
		d := digitsOnly(raw)
		if d == "" {
			return ""
		}
		d = strings.TrimLeft(d, "0")
		if d == "" {
			return "0"
		}
		return groupThousands(d)
	case KindPercentage:
		return strings.TrimLeft(digitsOnly(raw), "0")
	case KindCount:
		d := digitsOnly(raw)
		if d == "" {
			return ""
		}
		if d = strings.TrimLeft(d, "0"); d == "" {
			return "0"
		}
		return d
	default:
		return raw
	}
}

// NormalizeBlur applies the leave-field rules: an empty currency field rests
// at "0", everything else is left as is.
func NormalizeBlur(kind Kind, v string) string {
	if kind == KindCurrency && strings.TrimSpace(v) == "" {
		return "0"
	}
	return v
}

// FormatNumber renders digits with thousands separators; empty becomes "0".
func FormatNumber(v string) string {
	d := strings.TrimLeft(digitsOnly(v), "0")
	if d == "" {
		return "0"
	}
	return groupThousands(d)
}

// FormatCurrency renders a yen amount for display, e.g. "¥1,234,567".
func FormatCurrency(v string) string {
	return "¥" + FormatNumber(v)
}

// FormatYen renders an integer amount for display.
func FormatYen(n int64) string {
	if n < 0 {
		return "-¥" + FormatNumber(strconv.FormatInt(-n, 10))
	}
	return FormatCurrency(strconv.FormatInt(n, 10))
}

// ParseAmount reads a stored or displayed amount back to an integer,
// ignoring separators, the yen glyph and surrounding space.
func ParseAmount(v string) (int64, error) {
	s := strings.Map(func(r rune) rune {
		if r == ',' || r == '¥' || r == '￥' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, narrow(v))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid amount %q: negative", v)
	}
	return n, nil
}

func groupThousands(d string) string {
	if len(d) <= 3 {
		return d
	}
	var b strings.Builder
	lead := len(d) % 3
	if lead > 0 {
		b.WriteString(d[:lead])
	}
	for i := lead; i < len(d); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d[i : i+3])
	}
	return b.String()
}
