// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/gleam/internal/commands"
	"github.com/jeranaias/gleam/internal/config"
	"github.com/jeranaias/gleam/internal/export"
	"github.com/jeranaias/gleam/internal/model"
	"github.com/jeranaias/gleam/internal/util"
)

// errNoListing is returned by numbered commands before /history has run.
var errNoListing = errors.New("no conversations listed; run /history first")

// newRegistry registers the REPL commands bound to a.
func newRegistry(a *App) *commands.Registry {
	entryArg := commands.ArgDef{Name: "n", Required: true, Type: commands.ArgTypeEntry, Description: "number from /history"}

	r := commands.NewRegistry()
	r.Register(&commands.Command{Name: "/new", Aliases: []string{"/clear"}, Description: "Start a new conversation", Handler: a.cmdNew})
	r.Register(&commands.Command{Name: "/regen", Aliases: []string{"/retry"}, Description: "Regenerate the last reply", Handler: a.cmdRegen})
	r.Register(&commands.Command{
		Name:        "/history",
		Usage:       "/history [query]",
		Description: "List saved conversations",
		Handler:     a.cmdHistory,
	})
	r.Register(&commands.Command{Name: "/load", Usage: "/load <n>", Description: "Load a saved conversation", Args: []commands.ArgDef{entryArg}, Handler: a.cmdLoad})
	r.Register(&commands.Command{Name: "/fav", Usage: "/fav <n>", Description: "Toggle favorite on a conversation", Args: []commands.ArgDef{entryArg}, Handler: a.cmdFavorite})
	r.Register(&commands.Command{Name: "/del", Aliases: []string{"/delete"}, Usage: "/del <n>", Description: "Delete a saved conversation", Args: []commands.ArgDef{entryArg}, Handler: a.cmdDelete})
	r.Register(&commands.Command{
		Name:        "/export",
		Usage:       "/export <n> <file>",
		Description: "Export a conversation as .md or .json",
		Args: []commands.ArgDef{
			entryArg,
			{Name: "file", Required: true, Type: commands.ArgTypeFile, Description: "output path ending in .md or .json"},
		},
		Handler: a.cmdExport,
	})
	r.Register(&commands.Command{
		Name:        "/model",
		Usage:       "/model [id]",
		Description: "Show or select the active model",
		Args:        []commands.ArgDef{{Name: "id", Type: commands.ArgTypeModel}},
		Handler:     a.cmdModel,
	})
	r.Register(&commands.Command{Name: "/models", Usage: "/models [filter]", Description: "List models offered by the provider", Handler: a.cmdModels})
	r.Register(&commands.Command{
		Name:        "/image",
		Usage:       "/image <url>",
		Description: "Attach an image to the next message",
		Args:        []commands.ArgDef{{Name: "url", Required: true, Description: "image URL or data URL"}},
		Handler:     a.cmdImage,
	})
	r.Register(&commands.Command{
		Name:        "/context",
		Usage:       "/context [on|off]",
		Description: "Show or toggle document context",
		Args:        []commands.ArgDef{{Name: "state", Type: commands.ArgTypeEnum, Values: []string{"on", "off"}}},
		Handler:     a.cmdContext,
	})
	r.Register(&commands.Command{Name: "/help", Aliases: []string{"/h", "/?"}, Description: "Show this help", Handler: a.cmdHelp})
	r.Register(&commands.Command{Name: "/quit", Aliases: []string{"/exit", "/q"}, Description: "Exit gleam", Handler: a.cmdQuit})
	return r
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (a *App) cmdNew(_ context.Context, _ []string) error {
	a.ctrl.NewConversation()
	fmt.Fprintln(a.out, SuccessStyle.Render("Started a new conversation."))
	return nil
}

func (a *App) cmdRegen(ctx context.Context, _ []string) error {
	msgs := a.ctrl.Messages()
	if len(msgs) == 0 {
		return errors.New("nothing to regenerate")
	}
	err := a.ctrl.Regenerate(ctx, msgs[len(msgs)-1].ID)
	a.reportRequestError(err)
	return nil
}

func (a *App) cmdImage(_ context.Context, args []string) error {
	a.ctrl.AttachImage(args[0])
	n := len(a.ctrl.Attachments().Images)
	fmt.Fprintf(a.out, "%s %s\n", SuccessStyle.Render("Attached."), DimStyle.Render(fmt.Sprintf("%d image(s) pending for the next message", n)))
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

func (a *App) cmdHistory(ctx context.Context, args []string) error {
	var (
		entries []model.HistoryEntry
		err     error
	)
	if query := strings.Join(args, " "); query != "" {
		entries, err = a.history.Search(ctx, query)
	} else {
		entries, err = a.history.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	a.mu.Lock()
	a.listing = entries
	a.mu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(a.out, DimStyle.Render("No saved conversations."))
		return nil
	}

	titleWidth := max(GetTerminalWidth()-30, 20)
	fmt.Fprintln(a.out, TitleStyle.Render(fmt.Sprintf("%4s   %s  %-16s  %s", "#", util.FitWidth("Title", titleWidth), "Saved", "Msgs")))
	for i, e := range entries {
		star := " "
		if e.IsFavorite {
			star = FavoriteStyle.Render("*")
		}
		title := util.FitWidth(util.SingleLine(e.Title), titleWidth)
		fmt.Fprintf(a.out, "%4d %s %s  %-16s  %d\n", i+1, star, title, e.Timestamp.Local().Format("2006-01-02 15:04"), len(e.Messages))
	}
	return nil
}

// listed returns the entry at a 1-based position of the last listing.
func (a *App) listed(arg string) (int, model.HistoryEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.listing) == 0 {
		return 0, model.HistoryEntry{}, errNoListing
	}
	i, err := ParseIndex(arg, len(a.listing))
	if err != nil {
		return 0, model.HistoryEntry{}, err
	}
	return i, a.listing[i], nil
}

func (a *App) cmdLoad(ctx context.Context, args []string) error {
	_, listed, err := a.listed(args[0])
	if err != nil {
		return err
	}
	entry, err := a.history.Get(ctx, listed.ID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if err := a.ctrl.LoadConversation(entry); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s %s\n", SuccessStyle.Render("Loaded"), entry.Title)
	printTranscript(a.out, a.ctrl.Messages())
	return nil
}

func (a *App) cmdFavorite(ctx context.Context, args []string) error {
	i, entry, err := a.listed(args[0])
	if err != nil {
		return err
	}
	if err := a.history.ToggleFavorite(ctx, entry.ID); err != nil {
		return fmt.Errorf("toggling favorite: %w", err)
	}

	a.mu.Lock()
	if i < len(a.listing) && a.listing[i].ID == entry.ID {
		a.listing[i].IsFavorite = !entry.IsFavorite
	}
	a.mu.Unlock()

	state := "Added to favorites:"
	if entry.IsFavorite {
		state = "Removed from favorites:"
	}
	fmt.Fprintf(a.out, "%s %s\n", SuccessStyle.Render(state), entry.Title)
	return nil
}

func (a *App) cmdDelete(ctx context.Context, args []string) error {
	i, entry, err := a.listed(args[0])
	if err != nil {
		return err
	}
	if err := a.history.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	a.mu.Lock()
	if i < len(a.listing) && a.listing[i].ID == entry.ID {
		a.listing = append(a.listing[:i:i], a.listing[i+1:]...)
	}
	a.mu.Unlock()

	fmt.Fprintf(a.out, "%s %s\n", SuccessStyle.Render("Deleted"), entry.Title)
	return nil
}

func (a *App) cmdExport(ctx context.Context, args []string) error {
	_, listed, err := a.listed(args[0])
	if err != nil {
		return err
	}
	path := args[1]
	exporter, err := export.ForPath(path, export.DefaultOptions())
	if err != nil {
		return err
	}
	entry, err := a.history.Get(ctx, listed.ID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if err := export.ToFile(entry, exporter, path); err != nil {
		return fmt.Errorf("exporting conversation: %w", err)
	}
	fmt.Fprintf(a.out, "%s %s\n", SuccessStyle.Render("Exported to"), path)
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (a *App) cmdModel(_ context.Context, args []string) error {
	if len(args) == 0 {
		cfg := a.config.Current()
		current := cfg.Model
		if current == "" {
			current = "(none)"
		}
		fmt.Fprintf(a.out, "Model: %s %s\n", current, DimStyle.Render("via "+cfg.Provider))
		return nil
	}

	id := args[0]
	a.mu.Lock()
	catalog := a.catalog
	a.mu.Unlock()
	if catalog.Len() > 0 {
		if _, ok := catalog.Get(id); !ok {
			return fmt.Errorf("unknown model %q (see /models)", id)
		}
	}

	if err := a.updateConfig(func(c *config.Config) { c.Model = id }); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	fmt.Fprintf(a.out, "%s %s\n", SuccessStyle.Render("Model set to"), id)
	if catalog.SupportsImageOutput(id) {
		fmt.Fprintln(a.out, DimStyle.Render("This model can return images."))
	}
	return nil
}

func (a *App) cmdModels(ctx context.Context, args []string) error {
	catalog, err := a.models.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	a.mu.Lock()
	a.catalog = catalog
	a.mu.Unlock()

	found := catalog.Filter(strings.Join(args, " "))
	if len(found) == 0 {
		fmt.Fprintln(a.out, DimStyle.Render("No matching models."))
		return nil
	}

	current := a.config.Current().Model
	idWidth := max(GetTerminalWidth()-24, 30)
	fmt.Fprintln(a.out, TitleStyle.Render(fmt.Sprintf("  %s  %7s  %s", util.FitWidth("Model", idWidth), "Context", "Media")))
	for _, m := range found {
		marker := " "
		if m.ID == current {
			marker = SuccessStyle.Render(">")
		}
		var media []string
		if m.AcceptsImages() {
			media = append(media, "img-in")
		}
		if m.ProducesImages() {
			media = append(media, "img-out")
		}
		fmt.Fprintf(a.out, "%s %s  %7s  %s\n", marker, util.FitWidth(m.ID, idWidth), m.ContextString(), strings.Join(media, ","))
	}
	fmt.Fprintln(a.out, DimStyle.Render(fmt.Sprintf("%d of %d models", len(found), catalog.Len())))
	return nil
}

func (a *App) cmdContext(_ context.Context, args []string) error {
	if len(args) == 0 {
		cfg := a.config.Current()
		state := "off"
		if cfg.EnableContext {
			state = "on"
		}
		source := cfg.Context.Source
		if source == "" {
			source = "none"
		}
		fmt.Fprintf(a.out, "Context: %s %s\n", state, DimStyle.Render(fmt.Sprintf("(source: %s, injected: %t)", source, a.ctrl.ContextInjected())))
		return nil
	}

	enabled, err := ParseBoolString(args[0])
	if err != nil {
		return err
	}
	if err := a.updateConfig(func(c *config.Config) { c.EnableContext = enabled }); err != nil {
		return fmt.Errorf("saving context setting: %w", err)
	}
	word := "disabled"
	if enabled {
		word = "enabled"
	}
	fmt.Fprintf(a.out, "%s\n", SuccessStyle.Render("Document context "+word+"."))
	return nil
}

// =============================================================================
// SESSION
// =============================================================================

// updateConfig saves a settings change. The effective model and provider,
// which may come from flags, are written along with it because an update
// drops command-line overrides.
func (a *App) updateConfig(fn func(*config.Config)) error {
	current := a.config.Current()
	return a.config.Update(func(c *config.Config) {
		c.Model = current.Model
		c.Provider = current.Provider
		fn(c)
	})
}

func (a *App) cmdHelp(_ context.Context, _ []string) error {
	fmt.Fprintln(a.out, TitleStyle.Render("Commands"))
	fmt.Fprint(a.out, a.registry.Help())
	fmt.Fprintln(a.out, DimStyle.Render("Anything else is sent to the model. Ctrl+C cancels a reply."))
	return nil
}

func (a *App) cmdQuit(_ context.Context, _ []string) error {
	return commands.ErrQuit
}
