package model

import "strings"

// NormalizeKey builds the canonical composite key for a (platform, videoID,
// quality) triple. Platform and quality are case-insensitive; video IDs are
// case-sensitive on some platforms and are kept as given.
func NormalizeKey(platform, videoID, quality string) string {
	return strings.ToLower(strings.TrimSpace(platform)) + ":" +
		strings.TrimSpace(videoID) + ":" +
		strings.ToLower(strings.TrimSpace(quality))
}
