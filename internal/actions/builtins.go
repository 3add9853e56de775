package actions

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/web"
)

const editorSystemMessage = `You are a careful and precise editor.
You give exactly the results requested without additional commentary.`

// Builtins returns every builtin action. LLM actions use defaultModel.
func Builtins(deps *Deps, defaultModel string, maxTokens int) ([]action.Action, error) {
	out := []action.Action{
		action.NewFunc(action.Spec{
			Name:         "fetch_page",
			Description:  "Fetch a web page for its title, description and thumbnail.",
			MinArgs:      1,
			Precondition: action.HasURL,
		}, eachItem(deps.fetchPage)),
		action.NewFunc(action.Spec{
			Name:         "fetch_text",
			Description:  "Fetch a web page and save its main content as a Markdown note.",
			MinArgs:      1,
			Precondition: action.HasURL,
		}, eachItem(deps.fetchText)),
		action.NewFunc(action.Spec{
			Name:         "transcribe",
			Description:  "Transcribe the audio of a podcast or video URL.",
			MinArgs:      1,
			Precondition: action.HasURL,
		}, eachItem(deps.transcribeItem)),
		action.NewFunc(action.Spec{
			Name:         "strip_html",
			Description:  "Strip HTML tags, keeping the visible text.",
			MinArgs:      1,
			Precondition: action.And(action.IsText, action.HasBody),
		}, eachItem(stripHTML)),
		action.NewFunc(action.Spec{
			Name:         "markdownify",
			Description:  "Convert HTML to Markdown.",
			MinArgs:      1,
			Precondition: action.And(action.IsHTML, action.HasBody),
		}, eachItem(markdownify)),
		action.NewFunc(action.Spec{
			Name:         "markdown_to_html",
			Description:  "Render Markdown as HTML.",
			MinArgs:      1,
			Precondition: action.And(action.IsMarkdown, action.HasBody),
		}, eachItem(markdownToHTML)),
		action.NewFunc(action.Spec{
			Name:         "create_pdf",
			Description:  "Create a PDF export from text or Markdown.",
			MinArgs:      1,
			MaxArgs:      1,
			Precondition: action.And(action.IsText, action.HasBody),
			Terminal:     true,
		}, eachItem(deps.createPDF)),
		action.NewFunc(action.Spec{
			Name:        "copy_items",
			Description: "Pass the inputs through unchanged.",
		}, func(_ context.Context, items []*model.Item) ([]*model.Item, error) {
			return items, nil
		}),
		action.NewFunc(action.Spec{
			Name:         "concat",
			Description:  "Concatenate text items into one document with a section per item.",
			MinArgs:      1,
			Precondition: action.And(action.IsText, action.HasBody),
		}, concat),
	}

	llmSpecs := []action.Spec{
		{
			Name:          "summarize_as_bullets",
			Description:   "Summarize text as bullet points.",
			SystemMessage: editorSystemMessage,
			TitleTemplate: "Summary of {{title}}",
			OutputType:    model.TypeNote,
			Template: `Summarize the following text as a list of concise bullet points:
- Each point should be one sentence long.
- Format your response as a single, flat Markdown bullet list.
- Include all key numbers or facts without omitting any claims or important details.
- State the facts directly, without referring to the text or the author.
- Do not add any detail that is not stated in the original text.
- If the input is too short or unclear to summarize, output "(No results)".

Input text:

{{body}}

Bullet points:`,
		},
		{
			Name:          "describe_briefly",
			Description:   "Describe text in at most three sentences.",
			SystemMessage: editorSystemMessage,
			TitleTemplate: "Description of {{title}}",
			OutputType:    model.TypeDescription,
			Template: `Give a brief description of the entire text below, as a summary of two or three sentences,
suitable as the short description of a web page or article.
- Use simple and precise language.
- State the facts directly, without referring to the text or the author.
- If the content is too brief to describe, say "(No description.)"

Original text:

{{body}}

Brief description of the text:`,
		},
		{
			Name:          "proofread",
			Description:   "Proofread text, fixing only spelling, punctuation and grammar.",
			SystemMessage: editorSystemMessage,
			ReplacesInput: true,
			Template: `Proofread the following text according to these rules:
- Correct only typos and spelling, grammar, capitalization or punctuation mistakes.
- Do not alter the meaning of the text or change the style of writing.
- If unsure about a correction, leave that portion unchanged.
- Preserve all Markdown formatting.
- Give only the corrected text, with no other commentary.

Original text:

{{body}}

Corrected text:`,
		},
	}
	for _, spec := range llmSpecs {
		spec.Model = defaultModel
		spec.Precondition = action.And(action.IsText, action.HasBody)
		a, err := action.NewLLM(spec, deps.Completer, maxTokens)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	compounds, err := compoundBuiltins()
	if err != nil {
		return nil, err
	}
	return append(out, compounds...), nil
}

// compoundBuiltins chain the actions above. Their steps are resolved when
// the registry is built.
func compoundBuiltins() ([]action.Action, error) {
	readable := action.And(action.IsText, action.HasBody, action.Not(action.IsHTML))
	addDescription, err := action.NewCombo(action.Spec{
		Name:         "add_description",
		Description:  "Add a brief description of the content above the full text of the item.",
		Precondition: readable,
		Steps:        []string{"describe_briefly", "copy_items"},
	}, action.Divs("description", "full-text"))
	if err != nil {
		return nil, err
	}
	addSummary, err := action.NewCombo(action.Spec{
		Name:         "add_summary_bullets",
		Description:  "Add a bullet-point summary of the content above the full text of the item.",
		Precondition: readable,
		Steps:        []string{"summarize_as_bullets", "copy_items"},
	}, action.Divs("summary", "full-text"))
	if err != nil {
		return nil, err
	}
	summarizePage, err := action.NewSequence(action.Spec{
		Name:         "summarize_page",
		Description:  "Fetch the text of a web page and summarize it as bullet points.",
		Precondition: action.HasURL,
		Steps:        []string{"fetch_text", "summarize_as_bullets"},
	})
	if err != nil {
		return nil, err
	}
	return []action.Action{addDescription, addSummary, summarizePage}, nil
}

// eachItem lifts a per-item function to a whole-input action body.
func eachItem(fn func(ctx context.Context, it *model.Item) (*model.Item, error)) action.RunFunc {
	return func(ctx context.Context, items []*model.Item) ([]*model.Item, error) {
		out := make([]*model.Item, 0, len(items))
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := fn(ctx, it)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
		return out, nil
	}
}

// fetchPage fills in title, description and thumbnail. Items that already
// have a title and description are returned unchanged.
func (d *Deps) fetchPage(ctx context.Context, it *model.Item) (*model.Item, error) {
	if it.Title != "" && it.Description != "" {
		return it, nil
	}
	page, err := d.fetch(ctx, it.URL)
	if err != nil {
		return nil, err
	}
	updated := model.MergedCopy(it, &model.Item{
		Title:        page.Title,
		Description:  page.Description,
		ThumbnailURL: page.ThumbnailURL,
	})
	if updated.Title == "" {
		return nil, fmt.Errorf("fetch %s: page has no title", it.URL)
	}
	return updated, nil
}

func (d *Deps) fetchText(ctx context.Context, it *model.Item) (*model.Item, error) {
	page, err := d.fetch(ctx, it.URL)
	if err != nil {
		return nil, err
	}
	body, err := web.ToMarkdown(page.HTML, it.URL)
	if err != nil {
		return nil, err
	}
	title := it.Title
	if title == "" {
		title = page.Title
	}
	return action.Derive(it, "fetch_text",
		model.WithType(model.TypeNote),
		model.WithFormat(model.FormatMarkdown),
		model.WithTitle(title),
		model.WithBody(body),
	), nil
}

func (d *Deps) transcribeItem(ctx context.Context, it *model.Item) (*model.Item, error) {
	text, err := d.transcribe(ctx, it.URL)
	if err != nil {
		return nil, err
	}
	return action.Derive(it, "transcribe",
		model.WithType(model.TypeNote),
		model.WithFormat(model.FormatPlaintext),
		model.WithBody(text),
	), nil
}

func stripHTML(_ context.Context, it *model.Item) (*model.Item, error) {
	text, err := web.StripHTML(it.Body)
	if err != nil {
		return nil, err
	}
	return action.Derive(it, "strip_html",
		model.WithType(model.TypeNote),
		model.WithFormat(model.FormatPlaintext),
		model.WithBody(text),
	), nil
}

func markdownify(_ context.Context, it *model.Item) (*model.Item, error) {
	body, err := web.ToMarkdown(it.Body, it.URL)
	if err != nil {
		return nil, err
	}
	return action.Derive(it, "markdownify",
		model.WithType(model.TypeNote),
		model.WithFormat(model.FormatMarkdown),
		model.WithBody(body),
	), nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func markdownToHTML(_ context.Context, it *model.Item) (*model.Item, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(it.Body), &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return action.Derive(it, "markdown_to_html",
		model.WithType(model.TypeNote),
		model.WithFormat(model.FormatHTML),
		model.WithBody(buf.String()),
	), nil
}

// createPDF renders the item into TempDir and returns an export item backed
// by that file; the store copies it in when the result is committed.
func (d *Deps) createPDF(_ context.Context, it *model.Item) (*model.Item, error) {
	if d.Renderer == nil {
		return nil, fmt.Errorf("no PDF renderer configured")
	}
	if d.TempDir == "" {
		return nil, fmt.Errorf("no temp directory configured")
	}

	body := it.Body
	if it.Format == model.FormatHTML {
		md, err := web.ToMarkdown(body, it.URL)
		if err != nil {
			return nil, err
		}
		body = md
	}

	out := filepath.Join(d.TempDir, "export-"+uuid.NewString()+".pdf")
	if err := d.Renderer.RenderPDF(body, out, strings.TrimSpace(it.Title), it.Description); err != nil {
		return nil, err
	}
	d.log().Debug("rendered export", zap.String("tmp", out))

	return action.Derive(it, "create_pdf",
		model.WithType(model.TypeExport),
		model.WithFormat(model.FormatPDF),
		model.WithExternalPath(out, model.ExtPDF),
	), nil
}

// concat joins text items into one Markdown document, one titled section
// per item. The result is derived from every input.
func concat(_ context.Context, items []*model.Item) ([]*model.Item, error) {
	sections := make([]string, 0, len(items))
	var from []string
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = it.SlugSource()
		}
		sections = append(sections, "## "+title+"\n\n"+strings.TrimSpace(it.Body))
		if it.StorePath != "" {
			from = append(from, it.StorePath)
		}
	}

	out := action.Derive(items[0], "concat",
		model.WithType(model.TypeNote),
		model.WithFormat(model.FormatMarkdown),
		model.WithBody(strings.Join(sections, "\n\n")+"\n"),
	)
	if len(items) > 1 {
		out.Title = fmt.Sprintf("%s and %d more", items[0].SlugSource(), len(items)-1)
		out.URL = ""
	}
	out.Relations.DerivedFrom = from
	out.Source.Arguments = from
	return []*model.Item{out}, nil
}
