package activity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched and parsed bungie.net page.
type Page struct {
	Document *goquery.Document
	// Endpoint is the endpoint that was actually fetched, relative to the fetcher's base url.
	Endpoint   string
	StatusCode int
}

// Fetcher retrieves a single page, it must return an error on transport
// failures and non-success responses.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (Page, error)
}

// GameHistoryEndpoint derives the game history page from a profile endpoint.
func GameHistoryEndpoint(profile string) string {
	return strings.Replace(profile, "/Profile/", "/Profile/GameHistory/", 1)
}

// CharacterEndpoint returns endpoint with the character selector set to id,
// any other query parameters are kept.
func CharacterEndpoint(endpoint, id string) (string, error) {
	link, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	query := link.Query()
	query.Set("character", id)
	link.RawQuery = query.Encode()
	return link.String(), nil
}

// ResolveError is the failure of a single member's resolution.
type ResolveError struct {
	Member   string
	Endpoint string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %s: %s", e.Member, e.Endpoint, e.Err.Error())
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
