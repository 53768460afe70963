package logic

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// TimestampLayout is the capture time format used in setup file names.
const TimestampLayout = "2006-01-02 15-04-05"

var invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)

// Filename joins the non-empty parts with " - " and strips characters that
// are not allowed in setup file names.
func Filename(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return invalidFilenameChars.ReplaceAllString(strings.Join(kept, " - "), "")
}

// LaptimeSuffix formats a lap time as M-SS-mmm. Unset or non-positive times
// give 0-00-000.
func LaptimeSuffix(seconds float64) string {
	if !IsSet(seconds) {
		seconds = 0
	}
	return fmt.Sprintf("%.0f-%02.0f-%03.0f",
		math.Floor(seconds/60),
		math.Mod(seconds, 60)-math.Mod(seconds, 1),
		math.Mod(seconds, 1)*1000,
	)
}
