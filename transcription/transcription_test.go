package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	got := Format([]Segment{
		{Start: 0, End: 2.5, Text: "Hello world"},
		{Start: 2.5, End: 3, Text: "   "},
		{Start: 3, End: 4, Text: " again "},
	})

	expected := "[0.00s -> 2.50s] Hello world\n[3.00s -> 4.00s] again"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2.5, Text: "Hello world"},
		{Start: 12.25, End: 15, Text: "[laughs] that was -> fun"},
	}

	parsed := Parse(Format(segments))
	require.Len(t, parsed, 2)
	assert.Equal(t, segments, parsed)
}

func TestParseSkipsNoise(t *testing.T) {
	parsed := Parse("intro\n[1.00s -> 2.00s] one\n\nnot a segment")
	require.Len(t, parsed, 1)
	assert.Equal(t, "one", parsed[0].Text)
}

func TestDecodeSegments(t *testing.T) {
	segments, err := DecodeSegments(`{"segments":[{"start":0,"end":2.5,"text":"Hello world"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "[0.00s -> 2.50s] Hello world", Format(segments))

	segments, err = DecodeSegments(`[{"start":1,"end":2,"text":"x"}]`)
	require.NoError(t, err)
	assert.Len(t, segments, 1)

	_, err = DecodeSegments(`[{"start":3,"end":2,"text":"x"}]`)
	assert.Error(t, err)

	_, err = DecodeSegments("not json")
	assert.Error(t, err)
}

func TestExtractTimestamps(t *testing.T) {
	tests := []struct {
		answer   string
		expected []float64
	}{
		{"Hello world is said.", []float64{}},
		{"At [0.00s -> 2.50s] they greet, and again at [12.5s].", []float64{0, 12.5}},
		{"[3s] and [3s] again", []float64{3}},
	}

	for _, tt := range tests {
		got := ExtractTimestamps(tt.answer)
		assert.Equal(t, tt.expected, got, tt.answer)
	}
}

func TestGrounded(t *testing.T) {
	segments := Parse("[0.00s -> 2.50s] Hello world\n[10.00s -> 12.75s] again")

	tests := []struct {
		name       string
		timestamps []float64
		expected   []float64
	}{
		{"inside segments", []float64{0, 11}, []float64{0, 11}},
		{"segment end", []float64{2.5, 12.75}, []float64{2.5, 12.75}},
		{"gap and past the end", []float64{5, 99}, []float64{}},
		{"mixed keeps order", []float64{10.5, 99, 1}, []float64{10.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Grounded(tt.timestamps, segments))
		})
	}

	assert.Equal(t, []float64{}, Grounded([]float64{0}, nil))
}
