package provider

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pricescout/backend/internal/domain"
)

// priceRangeRegex matches "$X" or "$X to $Y"
var priceRangeRegex = regexp.MustCompile(`\$(\d+(?:\.\d+)?)(?:\s*to\s*\$(\d+(?:\.\d+)?))?`)

// ExtractPrice estimates a USD price from the result's rich-snippet extensions.
// Only the first extension containing '$' is considered. A range yields its
// midpoint. The bool is false when no price can be read.
func ExtractPrice(result domain.RawResult) (float64, bool) {
	for _, extension := range result.Extensions() {
		if !strings.Contains(extension, "$") {
			continue
		}
		return parsePriceText(extension)
	}
	return 0, false
}

func parsePriceText(text string) (float64, bool) {
	matches := priceRangeRegex.FindStringSubmatch(text)
	if matches == nil {
		return 0, false
	}

	low, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	if matches[2] == "" {
		return low, true
	}

	high, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return 0, false
	}
	return (low + high) / 2, true
}
