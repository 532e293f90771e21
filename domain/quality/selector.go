// Package quality maps client hints (requested quality, device class,
// bandwidth estimate) to an ordered fallback chain of concrete format
// selectors. It is pure policy: no I/O, no state.
package quality

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DeviceClass is the coarse client category carried on stream requests.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
	DeviceUnknown DeviceClass = "unknown"
)

// BandwidthUnknown marks an absent bandwidth hint.
const BandwidthUnknown = 0

// ladder is the set of heights the proxy will relay, descending. 720p is the
// ceiling for the proxy's own relay cost, not a platform limitation.
var ladder = []int{720, 480, 360, 240}

// bandwidthBucket maps a measured kbps ceiling to a target height for "auto"
// requests. Buckets are evaluated in order; the first match wins.
var bandwidthBuckets = []struct {
	MaxKbps int // inclusive upper bound, 0 = unbounded
	Height  int
}{
	{MaxKbps: 1500, Height: 360},
	{MaxKbps: 4000, Height: 480},
	{MaxKbps: 0, Height: 720},
}

// deviceCaps bounds the target height per device class. Mobile may break its
// cap only on desktop-class bandwidth (above the last bounded bucket).
var deviceCaps = map[DeviceClass]int{
	DeviceMobile:  480,
	DeviceDesktop: 720,
	DeviceUnknown: 720,
}

// Select resolves the request hints into a fallback chain, most preferred
// first, always ending in "best" so the extractor has a floor when none of
// the concrete selectors match a given video.
func Select(requested string, device DeviceClass, bandwidthKbps int) []string {
	requested = strings.ToLower(strings.TrimSpace(requested))

	switch requested {
	case "", "auto":
		return chainFor(autoHeight(device, bandwidthKbps))
	case "best", "highest":
		return chainFor(ladder[0])
	case "worst", "lowest":
		return []string{fmt.Sprintf("%dp", ladder[len(ladder)-1]), "worst"}
	}

	if h, ok := parseHeight(requested); ok {
		if h > ladder[0] {
			h = ladder[0]
		}
		return chainFor(h)
	}

	// Unparseable hint: treat as auto rather than failing the request.
	return chainFor(autoHeight(device, bandwidthKbps))
}

// autoHeight applies the bandwidth bucket table, then the device cap.
func autoHeight(device DeviceClass, bandwidthKbps int) int {
	height := ladder[0]
	if bandwidthKbps != BandwidthUnknown {
		for _, b := range bandwidthBuckets {
			if b.MaxKbps == 0 || bandwidthKbps <= b.MaxKbps {
				height = b.Height
				break
			}
		}
	}

	limit, ok := deviceCaps[device]
	if !ok {
		limit = deviceCaps[DeviceUnknown]
	}
	if device == DeviceMobile && bandwidthKbps > bandwidthBuckets[len(bandwidthBuckets)-2].MaxKbps {
		// Desktop-class bandwidth lifts the mobile cap.
		limit = deviceCaps[DeviceDesktop]
	}
	if height > limit {
		height = limit
	}
	return height
}

// chainFor lists every ladder height at or below the target, then "best".
func chainFor(target int) []string {
	chain := make([]string, 0, len(ladder)+1)
	for _, h := range ladder {
		if h <= target {
			chain = append(chain, fmt.Sprintf("%dp", h))
		}
	}
	chain = append(chain, "best")
	return chain
}

// ResolveAvailable clamps a requested quality to the best available rendition
// at or below it. It never upgrades past the request; if nothing at or below
// the request exists it falls back to the lowest available rendition rather
// than failing, and errors only when the list is empty.
func ResolveAvailable(requested string, available []string) (string, error) {
	if len(available) == 0 {
		return "", fmt.Errorf("no formats available")
	}

	heights := make([]int, 0, len(available))
	byHeight := make(map[int]string, len(available))
	for _, q := range available {
		if h, ok := parseHeight(q); ok {
			heights = append(heights, h)
			byHeight[h] = q
		}
	}
	if len(heights) == 0 {
		return available[0], nil
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	want, ok := parseHeight(strings.ToLower(strings.TrimSpace(requested)))
	if !ok {
		switch strings.ToLower(strings.TrimSpace(requested)) {
		case "worst", "lowest":
			return byHeight[heights[len(heights)-1]], nil
		default: // best/highest/auto/empty
			return byHeight[heights[0]], nil
		}
	}

	for _, h := range heights {
		if h <= want {
			return byHeight[h], nil
		}
	}
	// Everything available is above the request; serve the smallest upgrade
	// rather than nothing at all.
	return byHeight[heights[len(heights)-1]], nil
}

func parseHeight(q string) (int, bool) {
	if !strings.HasSuffix(q, "p") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(q, "p"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
