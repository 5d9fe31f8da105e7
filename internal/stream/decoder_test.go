// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeChunks feeds every chunk then finishes, collecting all events.
func decodeChunks(chunks ...[]byte) []Event {
	dec := NewDecoder()
	var events []Event
	for _, c := range chunks {
		events = append(events, dec.Feed(c)...)
	}
	return append(events, dec.Finish()...)
}

func deltaLine(text string) string {
	return `data: {"choices":[{"delta":{"content":"` + text + `"}}]}` + "\n"
}

// =============================================================================
// BASIC DECODING
// =============================================================================

func TestDecoder_HelloExample(t *testing.T) {
	dec := NewDecoder()

	var events []Event
	events = append(events, dec.Feed([]byte(deltaLine("Hel")))...)
	events = append(events, dec.Feed([]byte(deltaLine("lo")))...)
	events = append(events, dec.Feed([]byte("data: [DONE]\n"))...)
	events = append(events, dec.Finish()...)

	assert.Equal(t, []Event{Delta("Hel"), Delta("lo"), End()}, events)
	assert.True(t, dec.Done())
}

func TestDecoder_ImagesArrayWithoutText(t *testing.T) {
	line := `data: {"choices":[{"delta":{"images":[{"type":"image_url","image_url":{"url":"http://x/y.png"}}]}}]}` + "\n"
	events := decodeChunks([]byte(line))
	assert.Equal(t, []Event{Image("http://x/y.png")}, events)
}

func TestDecoder_ImageBeforeText(t *testing.T) {
	line := `data: {"choices":[{"delta":{"content":"here","images":[{"url":"http://a"},{"type":"image_url","image_url":{"url":"http://b"}}]}}]}` + "\n"
	events := decodeChunks([]byte(line))
	assert.Equal(t, []Event{Image("http://a"), Image("http://b"), Delta("here")}, events)
}

func TestDecoder_LegacyImageFields(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Event
	}{
		{
			name: "delta image_url string",
			line: `data: {"choices":[{"delta":{"image_url":"http://legacy/1.png"}}]}`,
			want: []Event{Image("http://legacy/1.png")},
		},
		{
			name: "choice image_url string",
			line: `data: {"choices":[{"delta":{},"image_url":"http://legacy/2.png"}]}`,
			want: []Event{Image("http://legacy/2.png")},
		},
		{
			name: "delta image_url object",
			line: `data: {"choices":[{"delta":{"image_url":{"url":"http://legacy/3.png"}}}]}`,
			want: []Event{Image("http://legacy/3.png")},
		},
		{
			name: "empty images array wins over legacy field",
			line: `data: {"choices":[{"delta":{"images":[],"image_url":"http://legacy/4.png"}}]}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeChunks([]byte(tt.line+"\n")))
		})
	}
}

// =============================================================================
// IGNORED INPUT
// =============================================================================

func TestDecoder_NonDataLinesIgnored(t *testing.T) {
	input := strings.Join([]string{
		": OPENROUTER PROCESSING",
		"event: message",
		"id: 42",
		"",
		"data:" + `{"choices":[{"delta":{"content":"no space"}}]}`,
		"  data: " + `{"choices":[{"delta":{"content":"indented"}}]}`,
		"retry: 1000",
	}, "\n") + "\n"

	assert.Empty(t, decodeChunks([]byte(input)))
}

func TestDecoder_MalformedJSONSwallowed(t *testing.T) {
	input := "data: {not json\n" +
		"data: {\"choices\":\n" +
		deltaLine("ok") +
		"data: \"just a string\"\n" +
		"data: {\"choices\":[]}\n" +
		`data: {"choices":[{"delta":{"content":42}}]}` + "\n"

	assert.Equal(t, []Event{Delta("ok")}, decodeChunks([]byte(input)))
}

func TestDecoder_EmptyContentProducesNothing(t *testing.T) {
	input := `data: {"choices":[{"delta":{"role":"assistant","content":""}}]}` + "\n"
	assert.Empty(t, decodeChunks([]byte(input)))
}

func TestDecoder_CRLFLines(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r\n" + "data: [DONE]\r\n"
	assert.Equal(t, []Event{Delta("a"), End()}, decodeChunks([]byte(input)))
}

// =============================================================================
// END HANDLING
// =============================================================================

func TestDecoder_DoneStopsFurtherLines(t *testing.T) {
	input := deltaLine("before") + "data: [DONE]\n" + deltaLine("after") + "data: [DONE]\n"

	dec := NewDecoder()
	events := dec.Feed([]byte(input))
	assert.Equal(t, []Event{Delta("before"), End()}, events)

	assert.Empty(t, dec.Feed([]byte(deltaLine("later"))))
	assert.Empty(t, dec.Finish())
}

func TestDecoder_DoneOnlyProducesEnd(t *testing.T) {
	assert.Equal(t, []Event{End()}, decodeChunks([]byte("data: [DONE]\n")))
	assert.Equal(t, []Event{End()}, decodeChunks([]byte("data: [DONE]")))
	assert.Empty(t, decodeChunks([]byte("data: [DONE] extra\n")))
}

func TestDecoder_FinishProcessesUnterminatedLine(t *testing.T) {
	dec := NewDecoder()
	events := dec.Feed([]byte(`data: {"choices":[{"delta":{"content":"tail"}}]}`))
	assert.Empty(t, events)

	assert.Equal(t, []Event{Delta("tail")}, dec.Finish())
}

// =============================================================================
// CHUNK BOUNDARIES
// =============================================================================

func chunkInvarianceInput() []byte {
	return []byte(": keep-alive\n" +
		deltaLine("Grüße, ") +
		deltaLine("世界 🌍") +
		`data: {"choices":[{"delta":{"images":[{"url":"http://x/猫.png"}]}}]}` + "\n" +
		"data: {broken\n" +
		deltaLine("ok") +
		"data: [DONE]\n" +
		deltaLine("ignored"))
}

func TestDecoder_ChunkingInvariance_EverySplit(t *testing.T) {
	input := chunkInvarianceInput()
	want := decodeChunks(input)
	require.Equal(t, []Event{
		Delta("Grüße, "),
		Delta("世界 🌍"),
		Image("http://x/猫.png"),
		Delta("ok"),
		End(),
	}, want)

	for i := 0; i <= len(input); i++ {
		got := decodeChunks(input[:i], input[i:])
		assert.Equal(t, want, got, "split at byte %d", i)
	}
}

func TestDecoder_ChunkingInvariance_ByteAtATime(t *testing.T) {
	input := chunkInvarianceInput()
	want := decodeChunks(input)

	chunks := make([][]byte, len(input))
	for i := range input {
		chunks[i] = input[i : i+1]
	}
	assert.Equal(t, want, decodeChunks(chunks...))
}

func TestDecoder_SplitMultibyteRuneIsDeferred(t *testing.T) {
	line := []byte(deltaLine("€"))
	idx := strings.Index(string(line), "€")
	require.Positive(t, idx)

	dec := NewDecoder()
	assert.Empty(t, dec.Feed(line[:idx+1]))
	assert.Empty(t, dec.Feed(line[idx+1:idx+2]))
	assert.Equal(t, []Event{Delta("€")}, dec.Feed(line[idx+2:]))
}

func TestDecoder_FinishReplacesTruncatedRune(t *testing.T) {
	line := []byte(`data: {"choices":[{"delta":{"content":"x`)
	truncated := append(line, []byte("€")[:2]...)

	dec := NewDecoder()
	assert.Empty(t, dec.Feed(truncated))
	// The line is left as invalid JSON, so it still produces nothing.
	assert.Empty(t, dec.Finish())
}
