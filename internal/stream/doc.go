// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes chat completion responses into discrete events.
//
// A Decoder consumes raw SSE bytes in whatever chunks the transport
// delivers and yields text deltas, image references and a single end
// event. Chunk boundaries may fall anywhere, including inside a line or a
// multibyte character; the emitted sequence is the same as if the whole
// body had arrived at once.
//
//	dec := stream.NewDecoder()
//	for chunk := range chunks {
//		for _, ev := range dec.Feed(chunk) {
//			handle(ev)
//		}
//	}
//	for _, ev := range dec.Finish() {
//		handle(ev)
//	}
//
// DecodeBody handles providers that answer with a single JSON document.
package stream
