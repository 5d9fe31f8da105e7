// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// PROTOCOL CONSTANTS
// =============================================================================

const (
	// DataPrefix starts every protocol-relevant SSE line.
	DataPrefix = "data: "

	// DoneSentinel is the payload that terminates a stream.
	DoneSentinel = "[DONE]"
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns SSE byte chunks into events. It keeps undecoded trailing
// bytes and the last incomplete line between calls. A Decoder is not safe
// for concurrent use; feed it from one goroutine.
type Decoder struct {
	utf8    transform.Transformer
	pending []byte
	line    string
	done    bool
}

// NewDecoder creates a decoder for one stream.
func NewDecoder() *Decoder {
	return &Decoder{utf8: unicode.UTF8.NewDecoder()}
}

// Done reports whether the end event has been emitted.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed decodes chunk and returns the events for every line it completes.
// An incomplete multibyte sequence at the end of chunk is held back until
// the next call.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done {
		return nil
	}
	text := d.decode(chunk, false)
	if text == "" {
		return nil
	}

	buf := d.line + text
	lines := strings.Split(buf, "\n")
	d.line = lines[len(lines)-1]

	return d.processLines(lines[:len(lines)-1])
}

// Finish flushes the decoder at end of stream. Held-back bytes are decoded
// in final mode and the buffered line is processed even without a newline.
func (d *Decoder) Finish() []Event {
	if d.done {
		return nil
	}
	rest := d.line + d.decode(nil, true)
	d.line = ""
	d.utf8.Reset()

	if rest == "" {
		return nil
	}
	return d.processLines(strings.Split(rest, "\n"))
}

func (d *Decoder) processLines(lines []string) []Event {
	var events []Event
	for _, line := range lines {
		events = append(events, d.processLine(line)...)
		if d.done {
			d.line = ""
			break
		}
	}
	return events
}

func (d *Decoder) processLine(line string) []Event {
	line = strings.TrimRight(line, " \t\r")
	payload, ok := strings.CutPrefix(line, DataPrefix)
	if !ok {
		return nil
	}
	if payload == DoneSentinel {
		d.done = true
		return []Event{End()}
	}
	return parseChunk(payload)
}

// decode runs src through the UTF-8 transformer. When atEOF is false an
// incomplete trailing sequence is stored in d.pending instead of being
// replaced.
func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := append(d.pending, chunk...)
	d.pending = nil
	if len(src) == 0 {
		return ""
	}

	var sb strings.Builder
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	for len(src) > 0 {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		sb.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return sb.String()
		case errors.Is(err, transform.ErrShortDst):
			dst = make([]byte, 2*len(dst))
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return sb.String()
		default:
			// The UTF-8 decoder substitutes U+FFFD rather than failing.
			return sb.String()
		}
	}
	return sb.String()
}

// =============================================================================
// CHUNK PAYLOAD
// =============================================================================

type chunkPayload struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta    chunkDelta      `json:"delta"`
	ImageURL json.RawMessage `json:"image_url"`
}

type chunkDelta struct {
	Content  json.RawMessage `json:"content"`
	Images   json.RawMessage `json:"images"`
	ImageURL json.RawMessage `json:"image_url"`
}

type imagePart struct {
	Type     string          `json:"type"`
	ImageURL json.RawMessage `json:"image_url"`
	URL      json.RawMessage `json:"url"`
}

// parseChunk extracts events from one data payload. Malformed JSON yields
// no events.
func parseChunk(payload string) []Event {
	var chunk chunkPayload
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	var events []Event
	for _, url := range deltaImages(choice) {
		events = append(events, Image(url))
	}
	if text := stringValue(choice.Delta.Content); text != "" {
		events = append(events, Delta(text))
	}
	return events
}

// deltaImages returns the image URLs of a choice in array order. An images
// array takes priority over the legacy single image_url fields.
func deltaImages(c chunkChoice) []string {
	var parts []json.RawMessage
	if present(c.Delta.Images) && json.Unmarshal(c.Delta.Images, &parts) == nil {
		var urls []string
		for _, raw := range parts {
			if url := imagePartURL(raw); url != "" {
				urls = append(urls, url)
			}
		}
		return urls
	}

	if url := urlValue(c.Delta.ImageURL); url != "" {
		return []string{url}
	}
	if url := urlValue(c.ImageURL); url != "" {
		return []string{url}
	}
	return nil
}

func imagePartURL(raw json.RawMessage) string {
	var part imagePart
	if err := json.Unmarshal(raw, &part); err != nil {
		return ""
	}
	if part.Type == "image_url" {
		if url := urlValue(part.ImageURL); url != "" {
			return url
		}
	}
	return stringValue(part.URL)
}

// urlValue accepts either a bare string or an object with a url field.
func urlValue(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	if s := stringValue(raw); s != "" {
		return s
	}
	var obj struct {
		URL json.RawMessage `json:"url"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	return stringValue(obj.URL)
}

func stringValue(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
