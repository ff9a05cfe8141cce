package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/settings"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/report"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/web"
)

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// BusinessSource supplies the letterhead and template choice.
type BusinessSource interface {
	Business(ctx context.Context) (settings.Business, error)
}

// Loader fetches the document to render. It runs concurrently with the
// settings lookup.
type Loader func(ctx context.Context) (Document, error)

// Rendered is a produced PDF.
type Rendered struct {
	Filename string
	HTML     string
	PDF      []byte
}

// Renderer turns documents into PDF bytes via html/template and Gotenberg.
type Renderer struct {
	business  BusinessSource
	client    PDFClient
	templates map[string]*template.Template
}

// NewRenderer parses the embedded document templates.
func NewRenderer(business BusinessSource, client PDFClient) (*Renderer, error) {
	if business == nil || client == nil {
		return nil, fmt.Errorf("documents renderer: settings and pdf client required")
	}
	printer := message.NewPrinter(language.English)
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"money": func(code string, v decimal.Decimal) string {
			return formatMoney(printer, code, v)
		},
		"quantity": func(v decimal.Decimal) string {
			return v.String()
		},
		"percent": func(v decimal.Decimal) string {
			return v.String() + "%"
		},
		"inc": func(i int) int { return i + 1 },
	}
	templates := make(map[string]*template.Template, 2)
	for _, name := range []string{settings.TemplateClassic, settings.TemplateModern} {
		file := name + ".html"
		tpl, err := template.New(file).Funcs(funcMap).ParseFS(web.Templates, "templates/documents/"+file)
		if err != nil {
			return nil, fmt.Errorf("documents renderer: parse %s: %w", file, err)
		}
		templates[name] = tpl
	}
	return &Renderer{business: business, client: client, templates: templates}, nil
}

type page struct {
	Business settings.Business
	Document Document
}

// HTML renders doc with the template selected by biz.
func (r *Renderer) HTML(doc Document, biz settings.Business) (string, error) {
	tpl, ok := r.templates[biz.PDFTemplate]
	if !ok {
		tpl = r.templates[settings.TemplateClassic]
	}
	buf := &bytes.Buffer{}
	if err := tpl.Execute(buf, page{Business: biz, Document: doc}); err != nil {
		return "", fmt.Errorf("documents: execute template: %w", err)
	}
	return buf.String(), nil
}

// Render loads the document and settings in parallel, then converts the
// HTML to PDF.
func (r *Renderer) Render(ctx context.Context, load Loader) (Rendered, error) {
	var (
		doc Document
		biz settings.Business
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = load(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		biz, err = r.business.Business(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Rendered{}, err
	}

	html, err := r.HTML(doc, biz)
	if err != nil {
		return Rendered{}, err
	}
	pdf, err := r.client.RenderHTML(ctx, html)
	if errors.Is(err, report.ErrUnavailable) {
		return Rendered{}, fmt.Errorf("documents: %w: %v", httpx.ErrUnavailable, err)
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("documents: render pdf: %w", err)
	}
	return Rendered{Filename: doc.Filename(), HTML: html, PDF: pdf}, nil
}

func formatMoney(p *message.Printer, code string, v decimal.Decimal) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " " + v.StringFixed(2)
	}
	return p.Sprint(currency.Symbol(unit.Amount(v.Round(2).InexactFloat64())))
}

// ContentDisposition builds the header value for inline previews and
// attachment downloads.
func ContentDisposition(filename string, attachment bool) string {
	kind := "inline"
	if attachment {
		kind = "attachment"
	}
	return kind + "; filename=" + strconv.Quote(filename)
}
