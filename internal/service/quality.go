package service

import (
	"regexp"
	"strings"

	"effectharvest/internal/core/domain"
)

// MeetsMinimum reports whether d satisfies the minimum resolution.
//
// A recognised server-reported quality label decides on its own. Only when
// the label is missing or unrecognised does the pixel height decide.
func MeetsMinimum(d domain.AssetDescriptor, minimum domain.Resolution) bool {
	if tier, ok := labelTier(d.QualityLabel); ok {
		return tier >= minimum
	}
	return d.HeightPx >= minimum.MinHeight()
}

// belowLadder is the tier of labels such as "540p" that name a resolution
// under 720p.
const belowLadder domain.Resolution = 0

var progressiveLabel = regexp.MustCompile(`\b\d{3,4}P\b`)

// labelTier maps a free-form label such as "1080p", "4K" or "HD" onto the ladder.
func labelTier(label string) (domain.Resolution, bool) {
	upper := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case upper == "":
		return 0, false
	case strings.Contains(upper, "4K"), strings.Contains(upper, "2160"), strings.Contains(upper, "UHD"):
		return domain.Resolution4K, true
	case strings.Contains(upper, "2K"), strings.Contains(upper, "1440"):
		return domain.Resolution2K, true
	case strings.Contains(upper, "1080"):
		return domain.Resolution1080p, true
	case strings.Contains(upper, "720"):
		return domain.Resolution720p, true
	case strings.Contains(upper, "HD"):
		return domain.Resolution1080p, true
	case progressiveLabel.MatchString(upper):
		return belowLadder, true
	default:
		return 0, false
	}
}
