// Package content implements the Content Builder: composing final email
// subject/HTML from a template plus tenant-level fallbacks, per the
// contractual priority table (subject/body overrides, header image, footer).
package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventforge/batchjobs/internal/assets"
)

// Template is the subset of PromotionEmailTemplate/EmailTemplate fields the
// builder reads.
type Template struct {
	Subject        string
	BodyHTML       string
	HeaderImageURL string
	FooterHTML     string
	FooterImageURL string
}

// TenantFallback is the subset of TenantSettings the builder falls back to.
type TenantFallback struct {
	TenantID            string
	EmailHeaderImageURL string
	EmailFooterHTMLURL  string
	LogoImageURL        string
}

// Result is the composed email ready for dispatch.
type Result struct {
	Subject  string
	BodyHTML string
}

// Builder composes email content. It never returns an error: every missing
// piece is silently omitted.
type Builder struct {
	assetFetcher *assets.Fetcher
}

// New builds a Builder backed by the given Asset Fetcher.
func New(assetFetcher *assets.Fetcher) *Builder {
	return &Builder{assetFetcher: assetFetcher}
}

// Build composes subject and body HTML following the priority table:
// subject/body overrides beat the template, header image falls back from
// template to tenant settings, and footer falls back from template HTML to
// template image to a tenant-configured footer fetched via the asset
// fetcher — engaged only when the template has neither footer field set, to
// avoid rendering two footers.
func (b *Builder) Build(ctx context.Context, tmpl Template, subjectOverride, bodyOverride string, tenant TenantFallback) Result {
	subject := subjectOverride
	if subject == "" {
		subject = tmpl.Subject
	}

	body := bodyOverride
	if body == "" {
		body = tmpl.BodyHTML
	}

	var sections []string

	headerImage := tmpl.HeaderImageURL
	if headerImage == "" {
		headerImage = tenant.EmailHeaderImageURL
	}
	if headerImage != "" {
		sections = append(sections, fmt.Sprintf(`<img src="%s" alt="" />`, headerImage))
	}

	sections = append(sections, body)

	footer := resolveFooter(ctx, b.assetFetcher, tmpl, tenant)
	if footer != "" {
		sections = append(sections, footer)
	}

	return Result{
		Subject:  subject,
		BodyHTML: wrapHTML(strings.Join(sections, "\n")),
	}
}

func resolveFooter(ctx context.Context, fetcher *assets.Fetcher, tmpl Template, tenant TenantFallback) string {
	if tmpl.FooterHTML != "" {
		return tmpl.FooterHTML
	}
	if tmpl.FooterImageURL != "" {
		return fmt.Sprintf(`<img src="%s" alt="" />`, tmpl.FooterImageURL)
	}
	// Only reached when the template has neither footer field, so there is
	// no risk of rendering a tenant footer alongside a template one.
	if tenant.EmailFooterHTMLURL == "" || fetcher == nil {
		return ""
	}
	return fetcher.FetchFooterHTML(ctx, tenant.TenantID, tenant.EmailFooterHTMLURL, tenant.LogoImageURL)
}

func wrapHTML(inner string) string {
	return "<!DOCTYPE html><html><head><meta charset='UTF-8'></head><body>" + inner + "</body></html>"
}
