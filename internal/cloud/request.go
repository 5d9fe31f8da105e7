// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"maps"

	"github.com/jeranaias/gleam/internal/model"
)

// contentPart is one element of a multimodal message.
type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *imageURL   `json:"image_url,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// wireMessage is a message as OpenRouter receives it. Content is either a
// string or a []contentPart.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func toWireMessage(m model.Message) wireMessage {
	if len(m.Images) == 0 && len(m.Audio) == 0 {
		return wireMessage{Role: m.Role.String(), Content: m.Content}
	}

	parts := make([]contentPart, 0, 1+len(m.Images)+len(m.Audio))
	if m.Content != "" {
		parts = append(parts, contentPart{Type: "text", Text: m.Content})
	}
	for _, url := range m.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}
	for _, a := range m.Audio {
		parts = append(parts, contentPart{
			Type:       "input_audio",
			InputAudio: &inputAudio{Data: a.Data, Format: a.Format},
		})
	}
	return wireMessage{Role: m.Role.String(), Content: parts}
}

// buildRequestBody encodes the chat completion body. Parameters are spread
// into the top level; the model, messages and stream keys always win.
func buildRequestBody(req model.RequestContext) ([]byte, error) {
	messages := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = toWireMessage(m)
	}

	body := make(map[string]any, len(req.Parameters)+3)
	maps.Copy(body, req.Parameters)
	maps.DeleteFunc(body, func(_ string, v any) bool { return v == nil })
	body["model"] = req.Model
	body["messages"] = messages
	body["stream"] = req.Stream
	return json.Marshal(body)
}
