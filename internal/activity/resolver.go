package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clanactivity/internal/components/assert"
	"clanactivity/internal/components/telemetry"
	"clanactivity/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resolver_fetch            = "resolver.fetch"
	report_resolver_select_platforms = "resolver.select-platforms"
	report_resolver_extract_activity = "resolver.extract-activity"
)

var tracer = otel.Tracer("clanactivity.internal.activity")

// Resolver finds the most recent activity of a single member.
type Resolver struct {
	fetcher Fetcher
	tel     telemetry.API
}

func NewResolver(fetcher Fetcher, tel telemetry.API) Resolver {
	assert.NotNil(fetcher)
	assert.NotNil(tel)

	return Resolver{
		fetcher: fetcher,
		tel:     telemetry.NewScopedAPI("activity", tel),
	}
}

// Resolve walks the member's game history, every linked platform it has to
// look at and every character on those platforms, merging each activity marker
// it finds into member.LastActive.
//
// Only fetch failures are returned, pages without activity are skipped.
func (r Resolver) Resolve(ctx context.Context, member *Member) error {
	ctx, span := tracer.Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("member", member.Name),
		attribute.String("platform", member.Platform),
	))
	defer span.End()

	err := r.resolve(ctx, member)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve member")
		return err
	}
	span.SetAttributes(attribute.String("last_active", member.LastActive.Format(time.RFC3339)))
	return nil
}

func (r Resolver) resolve(ctx context.Context, member *Member) error {
	history, err := r.fetch(ctx, member, GameHistoryEndpoint(member.Profile))
	if err != nil {
		return err
	}

	// every platform page has to be known before characters are enumerated
	pages, err := r.selectPlatforms(ctx, member, history)
	if err != nil {
		return err
	}

	for _, page := range pages {
		characters, err := r.characterPages(ctx, member, page)
		if err != nil {
			return err
		}
		for _, character := range characters {
			r.mergeActivity(member, character)
		}
	}
	return nil
}

func (r Resolver) fetch(ctx context.Context, member *Member, endpoint string) (Page, error) {
	page, err := r.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		r.tel.ReportBroken(
			report_resolver_fetch,
			fmt.Errorf("fetch: %w", err),
			member.Name,
			endpoint,
		)
		return Page{}, &ResolveError{
			Member:   member.Name,
			Endpoint: endpoint,
			Err:      err,
		}
	}
	return page, nil
}

// selectPlatforms returns the pages whose characters should be enumerated.
//
// The game history page defaults to the account's active platform, which is
// not necessarily the platform the clan lists the member under.
func (r Resolver) selectPlatforms(ctx context.Context, member *Member, history Page) ([]Page, error) {
	items := history.Document.Find(".platforms a.platform-item")
	if items.Length() <= 1 {
		return []Page{history}, nil
	}

	match := items.FilterFunction(func(_ int, item *goquery.Selection) bool {
		return htmlutil.Text(item) == member.Platform
	}).First()
	if match.HasClass("active") {
		return []Page{history}, nil
	}

	href := strings.TrimSpace(match.AttrOr("href", ""))
	if href != "" {
		r.tel.ReportDebug("platform is not active, switching", member.Name, member.Platform, href)
		page, err := r.fetch(ctx, member, href)
		if err != nil {
			return nil, err
		}
		return []Page{page}, nil
	}

	// the clan lists a platform the profile doesn't expose, so every linked
	// platform is a candidate.
	var candidates []string
	seen := map[string]bool{}
	items.Each(func(_ int, item *goquery.Selection) {
		link := strings.TrimSpace(item.AttrOr("href", ""))
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		candidates = append(candidates, link)
	})

	r.tel.ReportDebug("platform is not listed, trying every linked platform", member.Name, member.Platform, candidates)

	var pages []Page
	for _, link := range candidates {
		if link == history.Endpoint {
			pages = append(pages, history)
			continue
		}
		page, err := r.fetch(ctx, member, link)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	if len(pages) == 0 {
		r.tel.ReportWarning(
			report_resolver_select_platforms,
			fmt.Errorf("no platform candidates"),
			member.Name,
			member.Platform,
		)
	}
	return pages, nil
}

// CharacterIds returns the ids of the characters in the character selector
// that are not currently displayed, in page order.
//
// The selector is ordered by character creation, not by when a character was
// last played.
func CharacterIds(doc *goquery.Document) []string {
	dropdown := doc.Find("div.dropdown-item-character-selector")
	current := strings.TrimSpace(dropdown.Find(".current-option .select-option").AttrOr("data-value", ""))

	var ids []string
	seen := map[string]bool{current: true}
	dropdown.Find(".select-options .select-option").Each(func(_ int, option *goquery.Selection) {
		id := strings.TrimSpace(option.AttrOr("data-value", ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	})
	return ids
}

// characterPages returns page and the page of every other character on it.
// The extra fetches happen one after the other, they are not bounded by the
// roster's concurrency.
func (r Resolver) characterPages(ctx context.Context, member *Member, page Page) ([]Page, error) {
	pages := []Page{page}
	for _, id := range CharacterIds(page.Document) {
		endpoint, err := CharacterEndpoint(page.Endpoint, id)
		if err != nil {
			return nil, &ResolveError{
				Member:   member.Name,
				Endpoint: page.Endpoint,
				Err:      err,
			}
		}
		character, err := r.fetch(ctx, member, endpoint)
		if err != nil {
			return nil, err
		}
		pages = append(pages, character)
	}

	r.tel.ReportDebug("fetched all characters", member.Name, page.Endpoint, len(pages))
	return pages, nil
}

func (r Resolver) mergeActivity(member *Member, page Page) {
	marker := page.Document.Find("div.flair-slot div[data-time]").First()
	raw := strings.TrimSpace(marker.AttrOr("data-time", ""))
	if raw == "" {
		// deleted characters, characters created by a migration that were
		// never played and private profiles have no activity.
		r.tel.ReportDebug("no activity information", member.Name, page.Endpoint)
		return
	}

	t, err := ParseActivityTime(raw)
	if err != nil {
		r.tel.ReportWarning(
			report_resolver_extract_activity,
			fmt.Errorf("parse data-time: %w", err),
			member.Name,
			page.Endpoint,
		)
		return
	}

	if member.Observe(t) {
		r.tel.ReportDebug("updated activity", member.Name, t)
	}
}

var activityLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseActivityTime parses the data-time attribute of an activity marker.
// Layouts without a zone are read as UTC.
func ParseActivityTime(raw string) (time.Time, error) {
	var firstErr error
	for _, layout := range activityLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
