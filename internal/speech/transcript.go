package speech

import (
	"regexp"
	"sort"
	"strings"
)

// UnclearAudioText replaces a transcript that is empty after cleaning.
const UnclearAudioText = "Unable to transcribe audio clearly. Please try again with a clearer recording."

var (
	failedSegment = regexp.MustCompile(`\[Segment \d+ transcription failed\]\s*`)
	failedTail    = regexp.MustCompile(`Failed to transcribe audio.*$`)
	errorTail     = regexp.MustCompile(`Error processing audio.*$`)
)

// Segment is one piece of a transcription.
type Segment struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	AudioID string `json:"audio_id,omitempty"`
}

// CleanTranscript joins segments in index order and strips failure markers.
func CleanTranscript(segments []Segment) string {
	sorted := append([]Segment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = s.Text
	}
	text := strings.Join(parts, " ")

	text = strings.TrimSpace(failedSegment.ReplaceAllString(text, ""))
	text = strings.TrimSpace(failedTail.ReplaceAllString(text, ""))
	text = strings.TrimSpace(errorTail.ReplaceAllString(text, ""))

	if text == "" {
		return UnclearAudioText
	}
	return text
}
