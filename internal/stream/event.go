// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// EventKind identifies a decoded stream event.
type EventKind int

const (
	// EventDelta carries an incremental text fragment.
	EventDelta EventKind = iota
	// EventImage carries one image reference.
	EventImage
	// EventEnd marks the end of the stream.
	EventEnd
)

// String returns the lowercase name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventImage:
		return "image"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one decoded protocol event. Text is set for deltas, URL for images.
type Event struct {
	Kind EventKind
	Text string
	URL  string
}

// Delta returns a text delta event.
func Delta(text string) Event { return Event{Kind: EventDelta, Text: text} }

// Image returns an image event.
func Image(url string) Event { return Event{Kind: EventImage, URL: url} }

// End returns the end-of-stream event.
func End() Event { return Event{Kind: EventEnd} }

// String renders the event as kind("payload").
func (e Event) String() string {
	switch e.Kind {
	case EventDelta:
		return fmt.Sprintf("delta(%q)", e.Text)
	case EventImage:
		return fmt.Sprintf("image(%q)", e.URL)
	default:
		return e.Kind.String()
	}
}
