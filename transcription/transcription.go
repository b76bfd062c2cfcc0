package transcription

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one timed span of spoken text, in seconds from the start of
// the video.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) String() string {
	return fmt.Sprintf("[%.2fs -> %.2fs] %s", s.Start, s.End, s.Text)
}

var (
	segmentLine = regexp.MustCompile(`^\[(\d+(?:\.\d+)?)s -> (\d+(?:\.\d+)?)s\] ?(.*)$`)
	timestampRe = regexp.MustCompile(`\[(\d+(?:\.\d+)?)s`)
)

// Format renders segments one per line as "[<start>s -> <end>s] <text>".
func Format(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		seg.Text = text
		lines = append(lines, seg.String())
	}
	return strings.Join(lines, "\n")
}

// Parse reads back the output of Format. Lines that do not carry a
// segment header are skipped.
func Parse(transcript string) []Segment {
	var segments []Segment
	for _, line := range strings.Split(transcript, "\n") {
		m := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		start, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		segments = append(segments, Segment{Start: start, End: end, Text: m[3]})
	}
	return segments
}

// DecodeSegments parses the JSON transcript returned by the AI backend,
// either {"segments":[...]} or a bare array.
func DecodeSegments(raw string) ([]Segment, error) {
	raw = strings.TrimSpace(raw)
	var segments []Segment
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
	} else {
		var payload struct {
			Segments []Segment `json:"segments"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
		segments = payload.Segments
	}

	for i, seg := range segments {
		if seg.End < seg.Start {
			return nil, fmt.Errorf("segment %d ends before it starts", i)
		}
	}
	return segments, nil
}

// ExtractTimestamps returns the start offsets an answer cites in
// "[12.5s" form, in order of appearance without duplicates. An answer
// with no citations yields an empty, non-nil slice.
func ExtractTimestamps(answer string) []float64 {
	timestamps := []float64{}
	seen := make(map[float64]bool)
	for _, m := range timestampRe.FindAllStringSubmatch(answer, -1) {
		ts, err := strconv.ParseFloat(m[1], 64)
		if err != nil || seen[ts] {
			continue
		}
		seen[ts] = true
		timestamps = append(timestamps, ts)
	}
	return timestamps
}

// offsetTolerance absorbs the two-decimal rounding of Format.
const offsetTolerance = 0.005

// Grounded keeps the timestamps that fall inside one of the segments,
// preserving order. Offsets the transcript does not cover are dropped.
func Grounded(timestamps []float64, segments []Segment) []float64 {
	kept := []float64{}
	for _, ts := range timestamps {
		for _, seg := range segments {
			if ts >= seg.Start-offsetTolerance && ts <= seg.End+offsetTolerance {
				kept = append(kept, ts)
				break
			}
		}
	}
	return kept
}
