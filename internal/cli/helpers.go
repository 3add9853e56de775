package cli

import (
	"fmt"
	"strings"

	"github.com/aidanlsb/kmd/internal/index"
	"github.com/aidanlsb/kmd/internal/pipeline"
	"github.com/aidanlsb/kmd/internal/ui"
	"github.com/aidanlsb/kmd/internal/workspace"
)

// listedItem is the JSON shape of a numbered item in listings.
type listedItem struct {
	Num      int    `json:"num"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Format   string `json:"format,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Archived bool   `json:"archived,omitempty"`
}

func toListed(entries []index.Entry) []listedItem {
	out := make([]listedItem, len(entries))
	for i, e := range entries {
		out[i] = listedItem{
			Num:      i + 1,
			Path:     e.StorePath,
			Type:     e.Type,
			Format:   e.Format,
			Title:    e.Title,
			URL:      e.URL,
			Archived: e.Archived,
		}
	}
	return out
}

// entriesFor returns index rows for paths, in order. Paths the index does
// not know are loaded from disk.
func entriesFor(ws *workspace.Workspace, paths []string) ([]index.Entry, error) {
	found, err := ws.Index.Lookup(paths)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]index.Entry, len(found))
	for _, e := range found {
		byPath[e.StorePath] = e
	}
	out := make([]index.Entry, 0, len(paths))
	for _, p := range paths {
		if e, ok := byPath[p]; ok {
			out = append(out, e)
			continue
		}
		item, err := ws.Store.Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, index.EntryFor(item))
	}
	return out, nil
}

// renderEntries prints a numbered table and remembers it so later commands
// can refer to rows by number.
func renderEntries(ws *workspace.Workspace, source string, entries []index.Entry) error {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.StorePath
	}
	if err := ws.RememberListing(source, paths); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	listing := ui.NewListing(ui.Width())
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = e.URL
		}
		kind := e.Type
		if e.Format != "" {
			kind += " · " + e.Format
		}
		listing.Add(title, kind, e.StorePath)
	}
	fmt.Println(listing.Render())
	return nil
}

// printOutcome reports a committed step and lists its outputs.
func printOutcome(ws *workspace.Workspace, out *pipeline.Outcome) error {
	if isJSONOutput() {
		outputSuccess(out, &Meta{Count: len(out.Outputs), DurationMs: out.Duration.Milliseconds()})
		return nil
	}

	verb := out.Operation
	if out.Action != "" {
		verb = out.Action
	}
	fmt.Println(ui.Successf("%s %s", verb, ui.Count(len(out.Outputs), "output", "outputs")))
	for _, a := range out.Archived {
		fmt.Println(ui.Infof("archived %s", ui.FilePath(a)))
	}

	entries, err := entriesFor(ws, out.Outputs)
	if err != nil {
		return err
	}
	if err := renderEntries(ws, out.Operation, entries); err != nil {
		return err
	}
	if out.Terminal && len(out.Outputs) > 0 {
		fmt.Println(ui.Hint("export written: " + strings.Join(out.Outputs, ", ")))
	}
	return nil
}

// withProgress runs fn behind a spinner in text mode.
func withProgress(msg string, fn func() error) error {
	if isJSONOutput() {
		return fn()
	}
	return ui.Spin(msg, fn)
}
