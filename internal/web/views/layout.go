package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// HTMXSource is the script tag source for htmx.
const HTMXSource = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"

// FlashID is the element error fragments are swapped into.
const FlashID = "flash"

// htmxConfig swaps error responses too, so the server's alert fragments
// reach the page.
const htmxConfig = `{"responseHandling":[{"code":"204","swap":false},{"code":"[23]..","swap":true},{"code":"[45]..","swap":true,"error":true}]}`

// NavItem is one table link in the sidebar.
type NavItem struct {
	Key    string
	Label  string
	Href   string
	Active bool
}

// NavGroup is a sidebar section.
type NavGroup struct {
	Name  string
	Items []NavItem
}

// clientScript wires what htmx attributes cannot express: tri-state header
// checkboxes and keyboard navigation on focused tables.
const clientScript = `
document.addEventListener("htmx:load", function (e) {
  e.detail.elt.querySelectorAll("input[data-state]").forEach(function (el) {
    el.indeterminate = el.dataset.state === "indeterminate";
  });
});
document.addEventListener("keydown", function (e) {
  var table = e.target.closest && e.target.closest("[data-keys-url]");
  if (!table || !/^(ArrowUp|ArrowDown|Home|End|PageUp|PageDown| )$/.test(e.key)) return;
  e.preventDefault();
  htmx.ajax("POST", table.dataset.keysUrl, {source: table, target: table.closest(".dt"), swap: "outerHTML", values: {key: e.key}});
});
`

// Page wraps body in the admin shell.
func Page(title string, nav []NavGroup, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(` · VoteDesk</title>`)
		h.raw(`<meta name="htmx-config"`)
		h.attr("content", htmxConfig)
		h.raw(`>`)
		h.raw(`<link rel="stylesheet" href="/static/app.css">`)
		h.rawf(`<script src="%s"></script>`, HTMXSource)
		h.raw(`<script>` + clientScript + `</script>`)
		h.raw(`</head><body><div class="shell"><nav class="sidebar"><a class="brand" href="/">VoteDesk</a>`)
		for _, g := range nav {
			h.raw(`<div class="nav-group"><h2>`)
			h.text(g.Name)
			h.raw(`</h2><ul>`)
			for _, it := range g.Items {
				h.raw(`<li><a`)
				h.attr("href", it.Href)
				h.flag(`class="active" aria-current="page"`, it.Active)
				h.raw(`>`)
				h.text(it.Label)
				h.raw(`</a></li>`)
			}
			h.raw(`</ul></div>`)
		}
		h.raw(`</nav><main><div id="` + FlashID + `" aria-live="polite"></div>`)
		h.render(ctx, body)
		h.raw(`</main></div></body></html>`)
		return h.err
	})
}

// Index lists every table by group.
func Index(nav []NavGroup) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>Tables</h1>`)
		if len(nav) == 0 {
			h.raw(`<p class="muted">No tables are configured.</p>`)
		}
		for _, g := range nav {
			h.raw(`<section class="index-group"><h2>`)
			h.text(g.Name)
			h.raw(`</h2><ul>`)
			for _, it := range g.Items {
				h.raw(`<li><a`)
				h.attr("href", it.Href)
				h.raw(`>`)
				h.text(it.Label)
				h.raw(`</a></li>`)
			}
			h.raw(`</ul></section>`)
		}
		return h.err
	})
}

// ErrorAlert shows a mapped error. retryURL, when set, adds a retry button
// that posts to it.
func ErrorAlert(message, action, code, retryURL string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="alert alert-error" role="alert"><p class="alert-message">`)
		h.text(message)
		h.raw(`</p>`)
		if action != "" {
			h.raw(`<p class="alert-action">`)
			h.text(action)
			h.raw(`</p>`)
		}
		if code != "" {
			h.raw(`<p class="alert-code">Code: `)
			h.text(code)
			h.raw(`</p>`)
		}
		if retryURL != "" {
			h.raw(`<button type="button" class="btn"`)
			h.attr("hx-post", retryURL)
			h.raw(`>Retry</button>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}
