// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/gleam/internal/chat"
	"github.com/jeranaias/gleam/internal/model"
)

// =============================================================================
// STREAM RENDERER
// =============================================================================

// renderer prints controller notifications as a streamed transcript. Only
// the unseen tail of an assistant message is written on each update.
type renderer struct {
	mu  sync.Mutex
	out io.Writer

	msgID   string
	printed string
	images  int
	open    bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

// Handle is registered with chat.Controller.Subscribe.
func (r *renderer) Handle(n chat.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch n.Kind {
	case chat.NotifyReset:
		r.reset()
	case chat.NotifyMessage:
		if n.Message.Role == model.RoleAssistant {
			r.update(n.Message)
		}
	case chat.NotifyState:
		switch n.State {
		case chat.StateSending:
			r.reset()
			fmt.Fprintf(r.out, "%s ", AssistantStyle.Render(model.RoleAssistant.DisplayName()+":"))
			r.open = true
		case chat.StateCompleted:
			r.finish()
		case chat.StateError:
			r.finish()
			if errors.Is(n.Err, chat.ErrCancelled) {
				fmt.Fprintln(r.out, WarningStyle.Render("[Cancelled]"))
			} else if n.Err != nil {
				fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), n.Err)
			}
		}
	case chat.NotifyWarning:
		fmt.Fprintf(r.out, "%s %v\n", WarningStyle.Render("[Warning]"), n.Err)
	}
}

func (r *renderer) update(msg model.Message) {
	if msg.ID != r.msgID {
		r.msgID = msg.ID
		r.printed = ""
		r.images = 0
	}

	// Marker stripping can rewrite text already shown; only append when
	// the shown text is still a prefix.
	if strings.HasPrefix(msg.Content, r.printed) {
		fmt.Fprint(r.out, msg.Content[len(r.printed):])
	}
	r.printed = msg.Content

	for _, url := range msg.Images[min(r.images, len(msg.Images)):] {
		fmt.Fprintf(r.out, "\n%s %s\n", DimStyle.Render("[image]"), url)
	}
	r.images = len(msg.Images)
}

func (r *renderer) finish() {
	if r.open {
		fmt.Fprintln(r.out)
		r.open = false
	}
}

func (r *renderer) reset() {
	r.msgID = ""
	r.printed = ""
	r.images = 0
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// printTranscript writes a whole conversation, used after /load.
func printTranscript(out io.Writer, msgs []model.Message) {
	for _, m := range msgs {
		label := UserStyle.Render(m.Role.DisplayName() + ":")
		if m.Role == model.RoleAssistant {
			label = AssistantStyle.Render(m.Role.DisplayName() + ":")
		}
		fmt.Fprintf(out, "%s %s\n", label, m.Content)
		for _, url := range m.Images {
			fmt.Fprintf(out, "%s %s\n", DimStyle.Render("[image]"), url)
		}
		if len(m.Audio) > 0 {
			fmt.Fprintf(out, "%s\n", DimStyle.Render(fmt.Sprintf("[%d audio clip(s)]", len(m.Audio))))
		}
		if m.Errored {
			fmt.Fprintln(out, WarningStyle.Render("[reply incomplete]"))
		}
	}
}
