package domain

import (
	"fmt"
	"strings"
)

// Resolution is a minimum-quality bar for downloads.
type Resolution int

const (
	Resolution720p Resolution = iota + 1
	Resolution1080p
	Resolution2K
	Resolution4K
)

// DefaultResolution is applied when nothing is configured.
const DefaultResolution = Resolution1080p

// ParseResolution accepts "720p", "1080p", "2K" and "4K" (case-insensitive).
func ParseResolution(value string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "720p", "720":
		return Resolution720p, nil
	case "1080p", "1080":
		return Resolution1080p, nil
	case "2k", "1440p":
		return Resolution2K, nil
	case "4k", "2160p":
		return Resolution4K, nil
	case "":
		return DefaultResolution, nil
	default:
		return 0, &ValidationError{Field: "min_resolution", Reason: fmt.Sprintf("unsupported value %q (want 720p, 1080p, 2K or 4K)", value)}
	}
}

// MinHeight is the pixel height that satisfies the bar without a label.
func (r Resolution) MinHeight() int {
	switch r {
	case Resolution720p:
		return 720
	case Resolution2K:
		return 1440
	case Resolution4K:
		return 2160
	default:
		return 1080
	}
}

func (r Resolution) String() string {
	switch r {
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution2K:
		return "2K"
	case Resolution4K:
		return "4K"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}
