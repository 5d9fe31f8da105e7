// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inject

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeranaias/gleam/internal/util"
)

// DocumentProvider returns the text of the document the user is working on.
// An empty string means no document is open.
type DocumentProvider interface {
	CurrentDocument(ctx context.Context) (string, error)
}

const promptTemplate = `The following is the content of the current document. Use it as context:

%s

Answer the user's questions based on the content above.`

// BuildPrompt wraps document text in the context instruction. Empty text
// yields an empty prompt.
func BuildPrompt(document string) string {
	document = strings.TrimSpace(document)
	if document == "" {
		return ""
	}
	return fmt.Sprintf(promptTemplate, document)
}

// Injector turns a provider's document into context message content.
type Injector struct {
	provider DocumentProvider
	logger   *slog.Logger
}

// New creates an injector reading from provider.
func New(provider DocumentProvider, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Injector{
		provider: provider,
		logger:   logger.With("component", "inject"),
	}
}

// Content returns the context prompt, or "" when no document is available.
func (i *Injector) Content(ctx context.Context) (string, error) {
	doc, err := i.provider.CurrentDocument(ctx)
	if err != nil {
		return "", fmt.Errorf("reading current document: %w", err)
	}
	prompt := BuildPrompt(doc)
	if prompt == "" {
		i.logger.Debug("no document content available")
		return "", nil
	}
	i.logger.Debug("document context ready",
		"chars", len(doc),
		"preview", util.TruncateRunes(util.SingleLine(doc), 60))
	return prompt, nil
}
