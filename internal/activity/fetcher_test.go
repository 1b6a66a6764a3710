package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// fakeFetcher serves canned html keyed by endpoint and records every call.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error

	mutex sync.Mutex
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, endpoint string) (Page, error) {
	f.mutex.Lock()
	f.calls = append(f.calls, endpoint)
	f.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if err, ok := f.errs[endpoint]; ok {
		return Page{}, err
	}
	contents, ok := f.pages[endpoint]
	if !ok {
		return Page{}, fmt.Errorf("unexpected endpoint %s", endpoint)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contents))
	if err != nil {
		return Page{}, err
	}
	return Page{Document: doc, Endpoint: endpoint, StatusCode: 200}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.calls...)
}

type platformItem struct {
	label  string
	href   string
	active bool
}

func platformsHTML(items ...platformItem) string {
	var out strings.Builder
	out.WriteString(`<div class="platforms">`)
	for _, item := range items {
		class := "platform-item"
		if item.active {
			class += " active"
		}
		href := ""
		if item.href != "" {
			href = fmt.Sprintf(` href="%s"`, item.href)
		}
		fmt.Fprintf(&out, `<a class="%s"%s>
			<span class="platform-name">%s</span>
		</a>`, class, href, item.label)
	}
	out.WriteString(`</div>`)
	return out.String()
}

func charactersHTML(current string, ids ...string) string {
	var out strings.Builder
	out.WriteString(`<div class="dropdown-item-character-selector">`)
	fmt.Fprintf(&out, `<div class="current-option"><div class="select-option" data-value="%s">Hunter</div></div>`, current)
	out.WriteString(`<div class="select-options">`)
	for _, id := range ids {
		fmt.Fprintf(&out, `<div class="select-option" data-value="%s">Character</div>`, id)
	}
	out.WriteString(`</div></div>`)
	return out.String()
}

// flairHTML renders the recent games list, an empty time renders a list
// without any time information.
func flairHTML(times ...string) string {
	var out strings.Builder
	out.WriteString(`<div class="game-history">`)
	for _, t := range times {
		fmt.Fprintf(&out, `<div class="flair-slot"><div class="activity" data-time="%s">Crucible</div></div>`, t)
	}
	if len(times) == 0 {
		out.WriteString(`<div class="flair-slot"><div class="activity">Private</div></div>`)
	}
	out.WriteString(`</div>`)
	return out.String()
}

func pageHTML(parts ...string) string {
	return "<html><body>" + strings.Join(parts, "\n") + "</body></html>"
}
