// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inject

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var (
	// ErrFileTooLarge is returned when a document exceeds the size limit.
	ErrFileTooLarge = errors.New("document too large")

	// ErrNotText is returned when a document is not valid UTF-8.
	ErrNotText = errors.New("document is not UTF-8 text")
)

// DefaultMaxFileSize caps documents read from disk.
const DefaultMaxFileSize = 256 * 1024

// =============================================================================
// FILE PROVIDER
// =============================================================================

// FileProvider reads the document from a local file. A missing file is not
// an error; it means no document is available.
type FileProvider struct {
	Path    string
	MaxSize int64
}

// CurrentDocument reads the file.
func (p FileProvider) CurrentDocument(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Path == "" {
		return "", nil
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", p.Path)
	}

	limit := p.MaxSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if info.Size() > limit {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, info.Size(), limit)
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

// =============================================================================
// BLOCK PROVIDER
// =============================================================================

// BlockProvider asks a note-taking host for the block the user is editing.
// It POSTs {"id": <block>} to <BaseURL>/api/block/getBlockInfo and extracts
// the visible text from the HTML in data.content.
type BlockProvider struct {
	BaseURL string
	Token   string
	BlockID func() string
	Client  *http.Client
}

type blockInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Content string `json:"content"`
	} `json:"data"`
}

// CurrentDocument fetches and flattens the current block.
func (p BlockProvider) CurrentDocument(ctx context.Context) (string, error) {
	if p.BlockID == nil {
		return "", nil
	}
	id := p.BlockID()
	if id == "" {
		return "", nil
	}

	body, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(p.BaseURL, "/") + "/api/block/getBlockInfo"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building block request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Token "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting block %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("block API returned HTTP %d", resp.StatusCode)
	}

	var info blockInfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4*DefaultMaxFileSize)).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding block response: %w", err)
	}
	if info.Code != 0 {
		return "", fmt.Errorf("block API error %d: %s", info.Code, info.Msg)
	}
	if info.Data == nil || info.Data.Content == "" {
		return "", nil
	}
	return ExtractText(info.Data.Content), nil
}

// =============================================================================
// HTML TEXT
// =============================================================================

// ExtractText returns the visible text of an HTML fragment. Block-level
// elements are separated by newlines; script and style are dropped. Input
// that does not parse is returned trimmed.
func ExtractText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				sb.WriteString("\n")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	return collapseBlankLines(sb.String())
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "tr", "table", "section", "article":
		return true
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
