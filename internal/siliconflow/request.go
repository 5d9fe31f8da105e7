// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package siliconflow

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/gleam/internal/model"
)

func buildRequest(req model.RequestContext) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleName(m.Role),
			Content: m.Content,
		})
	}

	creq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   req.Stream,
	}
	applyParameters(&creq, req.Parameters)
	return creq
}

func roleName(r model.Role) string {
	switch r {
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// applyParameters copies the parameters the OpenAI request type can carry.
func applyParameters(creq *openai.ChatCompletionRequest, p model.Parameters) {
	if v, ok := p.Float("temperature"); ok {
		creq.Temperature = float32(v)
	}
	if v, ok := p.Float("top_p"); ok {
		creq.TopP = float32(v)
	}
	if v, ok := p.Int("max_tokens"); ok {
		creq.MaxTokens = v
	}
	if v, ok := p.Float("presence_penalty"); ok {
		creq.PresencePenalty = float32(v)
	}
	if v, ok := p.Float("frequency_penalty"); ok {
		creq.FrequencyPenalty = float32(v)
	}
	if v, ok := p.Strings("stop"); ok {
		creq.Stop = v
	}
	if bias := logitBias(p["logit_bias"]); len(bias) > 0 {
		creq.LogitBias = bias
	}
}

func logitBias(v any) map[string]int {
	raw, ok := v.(map[string]any)
	if !ok {
		if m, ok := v.(map[string]int); ok {
			return m
		}
		return nil
	}
	out := make(map[string]int, len(raw))
	for token, bias := range raw {
		n, ok := model.Parameters{"b": bias}.Int("b")
		if !ok {
			continue
		}
		out[token] = n
	}
	return out
}
