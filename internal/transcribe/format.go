package transcribe

import (
	"fmt"
	"math"
	"strings"

	"whisper-studio/internal/domain"
)

// FormatTimestamp renders seconds as MM:SS.mmm, e.g. 65.25 -> 01:05.250.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms%60000)/1000, ms%1000)
}

// FormatSegments renders the final transcription text. Aligned segments get
// one bracketed timestamp line each; anything else collapses to plain
// space-joined text.
func FormatSegments(segments []domain.Segment) string {
	if len(segments) == 0 {
		return ""
	}

	if segments[0].Aligned {
		lines := make([]string, 0, len(segments))
		for _, seg := range segments {
			lines = append(lines, fmt.Sprintf(
				"[%s - %s] %s",
				FormatTimestamp(seg.Start),
				FormatTimestamp(seg.End),
				strings.TrimSpace(seg.Text),
			))
		}
		return strings.Join(lines, "\n")
	}

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}
