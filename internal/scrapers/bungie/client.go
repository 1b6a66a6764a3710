// client.go contains the page fetcher for bungie.net, everything that knows
// how the site is laid out lives in internal/activity and roster.go.

package bungie

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"clanactivity/internal/activity"
	"clanactivity/internal/components/assert"
	"clanactivity/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch = "client.fetch"
)

const DefaultBaseUrl = "https://www.bungie.net"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl, every endpoint is resolved against it.
	BaseUrl string
	// RequestsPerSecond limits every request made by the client, 0 means unlimited.
	RequestsPerSecond float64
	// Timeout of a single request, 0 means 30 seconds.
	Timeout   time.Duration
	UserAgent string
	// DisableCloudflareBypass keeps the default transport, useful when talking
	// to a local server.
	DisableCloudflareBypass bool
	// Dump receives the full text of every request, it is optional.
	Dump telemetry.MessageOutput
}

// FetchError is returned when a request fails or the response isn't a success.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s", e.Endpoint, e.Err.Error())
	}
	return fmt.Sprintf("fetch %s: received invalid status code %d", e.Endpoint, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	tel telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("bungie_scraper", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if parsedBaseUrl.Scheme == "" || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if !opts.DisableCloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	if opts.RequestsPerSecond > 0 {
		// burst of 1 so requests are spread out evenly
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &Client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		tel:     tel,
	}, nil
}

// Fetch gets an endpoint relative to the base url and parses it as html.
func (c *Client) Fetch(ctx context.Context, endpoint string) (activity.Page, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		c.tel.ReportBroken(
			report_client_fetch,
			fmt.Errorf("request: %w", err),
			endpoint,
		)
		return activity.Page{}, &FetchError{Endpoint: endpoint, Err: err}
	}
	if !res.IsSuccess() {
		c.tel.ReportBroken(
			report_client_fetch,
			fmt.Errorf("invalid status code %d", res.StatusCode()),
			endpoint,
		)
		return activity.Page{}, &FetchError{Endpoint: endpoint, StatusCode: res.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(
			report_client_fetch,
			fmt.Errorf("parse html: %w", err),
			endpoint,
		)
		return activity.Page{}, &FetchError{Endpoint: endpoint, StatusCode: res.StatusCode(), Err: err}
	}

	return activity.Page{
		Document:   doc,
		Endpoint:   endpoint,
		StatusCode: res.StatusCode(),
	}, nil
}
