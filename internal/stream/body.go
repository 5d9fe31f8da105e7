// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBody is returned when a whole-body response is not valid JSON.
var ErrMalformedBody = errors.New("malformed response body")

type bodyPayload struct {
	Choices []struct {
		Message struct {
			Content  json.RawMessage `json:"content"`
			ImageURL json.RawMessage `json:"image_url"`
		} `json:"message"`
	} `json:"choices"`
	ImageURL json.RawMessage `json:"image_url"`
	URL      json.RawMessage `json:"url"`
}

// DecodeBody extracts events from a non-streaming completion. The result
// holds at most one delta, at most one image, and always ends with an end
// event. A body with neither text nor image is an empty completion.
func DecodeBody(body []byte) ([]Event, error) {
	var resp bodyPayload
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var text, url string
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		text = stringValue(msg.Content)
		url = urlValue(msg.ImageURL)
	}
	if url == "" {
		url = urlValue(resp.ImageURL)
	}
	if url == "" {
		url = stringValue(resp.URL)
	}

	var events []Event
	if text != "" {
		events = append(events, Delta(text))
	}
	if url != "" {
		events = append(events, Image(url))
	}
	return append(events, End()), nil
}
