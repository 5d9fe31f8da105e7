// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the OpenRouter chat transport.
//
// The client shapes OpenRouter chat completion requests (multimodal content
// parts, merged model parameters, attribution headers), routes the response
// to the SSE decoder or the whole-body decoder by content type, and reports
// every decoded event to the caller as it arrives.
//
// Usage:
//
//	client := cloud.NewClient(cloud.WithLogger(logger))
//	result, err := client.Chat(ctx, req, func(ev stream.Event) { ... })
package cloud
