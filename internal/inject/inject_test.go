// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inject

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	doc string
	err error
}

func (p staticProvider) CurrentDocument(context.Context) (string, error) {
	return p.doc, p.err
}

func TestBuildPrompt(t *testing.T) {
	assert.Empty(t, BuildPrompt("   \n"))

	prompt := BuildPrompt("  Meeting notes  ")
	assert.Contains(t, prompt, "\n\nMeeting notes\n\n")
	assert.True(t, strings.HasPrefix(prompt, "The following is the content of the current document"))
}

func TestInjector_Content(t *testing.T) {
	ctx := context.Background()

	got, err := New(staticProvider{doc: "hello"}, nil).Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, BuildPrompt("hello"), got)

	got, err = New(staticProvider{}, nil).Content(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = New(staticProvider{err: errors.New("boom")}, nil).Content(ctx)
	assert.ErrorContains(t, err, "boom")
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\nbody"), 0600))
	ctx := context.Background()

	doc, err := FileProvider{Path: path}.CurrentDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\nbody", doc)

	doc, err = FileProvider{Path: filepath.Join(dir, "missing.md")}.CurrentDocument(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	_, err = FileProvider{Path: path, MaxSize: 4}.CurrentDocument(ctx)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = FileProvider{Path: dir}.CurrentDocument(ctx)
	assert.Error(t, err)

	bin := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0x00}, 0600))
	_, err = FileProvider{Path: bin}.CurrentDocument(ctx)
	assert.ErrorIs(t, err, ErrNotText)
}

func TestBlockProvider(t *testing.T) {
	var gotID, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/block/getBlockInfo", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotID = body["id"]
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"content": `<div><h1>Title</h1><p>First <b>bold</b> line</p><script>x()</script><p>Second</p></div>`,
			},
		})
	}))
	defer srv.Close()

	p := BlockProvider{
		BaseURL: srv.URL + "/",
		Token:   "secret",
		BlockID: func() string { return "20240101-abc" },
	}
	doc, err := p.CurrentDocument(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20240101-abc", gotID)
	assert.Equal(t, "Token secret", gotAuth)
	assert.Equal(t, "Title\nFirst bold line\nSecond", doc)
}

func TestBlockProvider_NoBlockSelected(t *testing.T) {
	p := BlockProvider{BaseURL: "http://127.0.0.1:1", BlockID: func() string { return "" }}
	doc, err := p.CurrentDocument(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestBlockProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"api code", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":-1,"msg":"block not found"}`))
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := BlockProvider{BaseURL: srv.URL, BlockID: func() string { return "id" }}
			_, err := p.CurrentDocument(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "a\nb", ExtractText("a<br>b"))
	assert.Equal(t, "plain text", ExtractText("plain text"))
	assert.Equal(t, "one\ntwo", ExtractText("<ul><li>one</li><li>two</li></ul><style>p{}</style>"))
}
