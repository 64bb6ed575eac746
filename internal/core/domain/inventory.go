package domain

import "strings"

type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// DefaultSize is used when a request names no size.
const DefaultSize = SizeM

// FallbackSizes is the order in which alternate sizes are tried when the
// requested size cannot be reserved.
var FallbackSizes = []Size{SizeM, SizeL, SizeS, SizeXL}

var knownSizes = map[string]Size{
	"XS":  SizeXS,
	"S":   SizeS,
	"M":   SizeM,
	"L":   SizeL,
	"XL":  SizeXL,
	"XXL": SizeXXL,
}

// NormalizeSize maps loose user input ("xl", " m ", "L.") to a Size.
func NormalizeSize(s string) (Size, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
	size, ok := knownSizes[s]
	return size, ok
}

// StockKey addresses one inventory counter.
type StockKey struct {
	ProductID string
	Size      Size
}
