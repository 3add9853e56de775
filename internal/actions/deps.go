// Package actions holds the builtin actions and builds a workspace's action
// registry from them plus user definitions in settings.
package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/web"
	"github.com/aidanlsb/kmd/internal/webcache"
)

// PageFetcher downloads a page and its metadata.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*web.Page, error)
}

// Transcriber produces a transcript for a media URL.
type Transcriber interface {
	Transcribe(ctx context.Context, url string) (string, error)
}

// PDFRenderer writes Markdown as a PDF file.
type PDFRenderer interface {
	RenderPDF(markdown, outputPath, title, description string) error
}

// Cache kinds.
const (
	kindPage       = "page"
	kindTranscript = "transcript"
)

// Deps are the collaborators builtin actions use. Nil collaborators make
// the actions that need them fail when run.
type Deps struct {
	Fetcher     PageFetcher
	Transcriber Transcriber
	Renderer    PDFRenderer
	Completer   action.Completer
	Cache       *webcache.Cache
	// TempDir receives files (PDFs) that the store copies in on commit.
	TempDir string
	Logger  *zap.Logger
}

func (d *Deps) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// fetch returns the page for url, from the cache when possible.
func (d *Deps) fetch(ctx context.Context, url string) (*web.Page, error) {
	var page web.Page
	if d.Cache.Get(kindPage, url, &page) {
		d.log().Debug("page cache hit", zap.String("url", url))
		return &page, nil
	}
	if d.Fetcher == nil {
		return nil, fmt.Errorf("no page fetcher configured")
	}
	p, err := d.Fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := d.Cache.Put(kindPage, url, p); err != nil {
		d.log().Warn("page cache write failed", zap.String("url", url), zap.Error(err))
	}
	return p, nil
}

// transcribe returns the transcript for url, from the cache when possible.
func (d *Deps) transcribe(ctx context.Context, url string) (string, error) {
	var text string
	if d.Cache.Get(kindTranscript, url, &text) {
		d.log().Debug("transcript cache hit", zap.String("url", url))
		return text, nil
	}
	if d.Transcriber == nil {
		return "", fmt.Errorf("no transcriber configured")
	}
	text, err := d.Transcriber.Transcribe(ctx, url)
	if err != nil {
		return "", err
	}
	if err := d.Cache.Put(kindTranscript, url, text); err != nil {
		d.log().Warn("transcript cache write failed", zap.String("url", url), zap.Error(err))
	}
	return text, nil
}

// FetchResource fetches url and returns a resource item carrying the page
// metadata. The item is not saved.
func (d *Deps) FetchResource(ctx context.Context, url string) (*model.Item, error) {
	page, err := d.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if page.Title == "" {
		return nil, fmt.Errorf("fetch %s: page has no title", url)
	}
	item := model.New(model.TypeResource, model.FormatURL)
	item.URL = url
	item.Title = page.Title
	item.Description = page.Description
	item.ThumbnailURL = page.ThumbnailURL
	return item, nil
}

// NewRegistry returns the builtin actions plus the user actions defined in
// settings. User actions may not shadow builtins.
func NewRegistry(deps *Deps, settings *config.Settings) (*action.Registry, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	all, err := Builtins(deps, settings.DefaultModel, settings.MaxTokens)
	if err != nil {
		return nil, err
	}
	for _, def := range settings.Actions {
		a, err := userAction(def, deps.Completer, settings)
		if err != nil {
			return nil, err
		}
		all = append(all, a)
	}
	return action.NewRegistry(all...)
}

func userAction(def config.ActionDef, completer action.Completer, settings *config.Settings) (action.Action, error) {
	pre, err := action.PreconditionByName(def.Precondition)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", def.Name, err)
	}
	if pre.Test == nil && len(def.Steps) == 0 {
		pre = action.HasBody
	}
	modelName := def.Model
	if modelName == "" {
		modelName = settings.DefaultModel
	}
	outType := model.TypeNote
	if def.OutputType != "" {
		outType, err = model.ParseItemType(def.OutputType)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", def.Name, err)
		}
	}
	if len(def.Steps) > 0 {
		spec := action.Spec{
			Name:           def.Name,
			Description:    def.Description,
			Implementation: action.User,
			OutputType:     outType,
			MinArgs:        def.MinArgs,
			MaxArgs:        def.MaxArgs,
			Precondition:   pre,
			ReplacesInput:  def.ReplacesInput,
			Steps:          def.Steps,
		}
		if def.Combine {
			return action.NewCombo(spec, nil)
		}
		return action.NewSequence(spec)
	}
	a, err := action.NewLLM(action.Spec{
		Name:           def.Name,
		Description:    def.Description,
		Implementation: action.User,
		Model:          modelName,
		SystemMessage:  def.SystemMessage,
		Template:       def.Template,
		TitleTemplate:  def.TitleTemplate,
		OutputType:     outType,
		MinArgs:        def.MinArgs,
		MaxArgs:        def.MaxArgs,
		Precondition:   pre,
		ReplacesInput:  def.ReplacesInput,
	}, completer, settings.MaxTokens)
	if err != nil {
		return nil, err
	}
	return a, nil
}
