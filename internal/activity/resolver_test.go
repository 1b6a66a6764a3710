package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"clanactivity/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const (
	profile = "/en/Profile/2/4611686018/Alpha"
	history = "/en/Profile/GameHistory/2/4611686018/Alpha"
)

func mustCharacterEndpoint(t *testing.T, endpoint, id string) string {
	out, err := CharacterEndpoint(endpoint, id)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func requireCalls(t *testing.T, expected []string, fetcher *fakeFetcher) {
	t.Helper()
	if diff := cmp.Diff(expected, fetcher.Calls()); diff != "" {
		t.Fatalf("unexpected fetches (-want +got):\n%s", diff)
	}
}

func TestGameHistoryEndpoint(t *testing.T) {
	require.Equal(t, history, GameHistoryEndpoint(profile))
	require.Equal(t, "/en/Clan", GameHistoryEndpoint("/en/Clan"))
}

func TestCharacterEndpoint(t *testing.T) {
	require.Equal(t, history+"?character=c1", mustCharacterEndpoint(t, history, "c1"))
	require.Equal(
		t,
		"/en/Profile/GameHistory/1/2/Alpha?character=c1&platform=psn",
		mustCharacterEndpoint(t, "/en/Profile/GameHistory/1/2/Alpha?platform=psn&character=old", "c1"),
	)
}

func TestParseActivityTime(t *testing.T) {
	expected := time.Date(2017, 10, 1, 18, 30, 5, 0, time.UTC)

	for _, raw := range []string{
		"2017-10-01T18:30:05Z",
		"2017-10-01T11:30:05-07:00",
		"2017-10-01T18:30:05",
		"2017-10-01 18:30:05",
	} {
		parsed, err := ParseActivityTime(raw)
		require.NoError(t, err, raw)
		require.True(t, expected.Equal(parsed), raw)
	}

	parsed, err := ParseActivityTime("2017-10-01T18:30:05.250Z")
	require.NoError(t, err)
	require.Equal(t, expected.Add(250*time.Millisecond), parsed)

	_, err = ParseActivityTime("yesterday")
	require.Error(t, err)
}

func TestCharacterIds(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(charactersHTML("c2", "c1", "c2", "", "c3", "c1"))

	page, err := fetcher.Fetch(context.Background(), history)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c3"}, CharacterIds(page.Document))

	fetcher.pages["/none"] = pageHTML(flairHTML())
	page, err = fetcher.Fetch(context.Background(), "/none")
	require.NoError(t, err)
	require.Empty(t, CharacterIds(page.Document))
}

func TestResolveMultipleCharacters(t *testing.T) {
	t1 := "2024-02-01T10:00:00Z"
	t2 := "2024-03-15T22:45:00Z"

	fetcher := newFakeFetcher()
	// the displayed character has no activity, the others were played later
	fetcher.pages[history] = pageHTML(
		platformsHTML(platformItem{label: "PlayStation Network", href: history, active: true}),
		charactersHTML("c0", "c0", "c1", "c2"),
		flairHTML(),
	)
	fetcher.pages[mustCharacterEndpoint(t, history, "c1")] = pageHTML(
		charactersHTML("c1", "c0", "c1", "c2"),
		flairHTML(t1, "2024-01-01T00:00:00Z"),
	)
	fetcher.pages[mustCharacterEndpoint(t, history, "c2")] = pageHTML(
		charactersHTML("c2", "c0", "c1", "c2"),
		flairHTML(t2),
	)

	tel := telemetry.NewMemoryAPI()
	member := NewMember("Alpha", "PSN", profile)
	err := NewResolver(fetcher, tel).Resolve(context.Background(), member)
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 3, 15, 22, 45, 0, 0, time.UTC), member.LastActive)
	requireCalls(t, []string{
		history,
		mustCharacterEndpoint(t, history, "c1"),
		mustCharacterEndpoint(t, history, "c2"),
	}, fetcher)
	require.Len(t, tel.Find(telemetry.KindDebug, "no activity information"), 1)
}

func TestResolveSwitchesToInactivePlatform(t *testing.T) {
	bnet := "/en/Profile/GameHistory/4/4611686019/Alpha"

	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		platformsHTML(
			platformItem{label: "PlayStation Network", href: history, active: true},
			platformItem{label: "Battle.Net", href: bnet},
		),
		charactersHTML("c0", "c0"),
		// activity of the wrong platform, it must not be merged
		flairHTML("2025-01-01T00:00:00Z"),
	)
	fetcher.pages[bnet] = pageHTML(
		platformsHTML(
			platformItem{label: "PlayStation Network", href: history},
			platformItem{label: "Battle.Net", href: bnet, active: true},
		),
		charactersHTML("b0", "b0"),
		flairHTML("2024-04-01T00:00:00Z"),
	)

	member := NewMember("Alpha", "BLIZ", profile)
	err := NewResolver(fetcher, telemetry.NewMemoryAPI()).Resolve(context.Background(), member)
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), member.LastActive)
	requireCalls(t, []string{history, bnet}, fetcher)
}

func TestResolveActivePlatformStaysOnHistory(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		platformsHTML(
			platformItem{label: "PlayStation Network", href: "/en/Profile/GameHistory/2/1/Alpha"},
			platformItem{label: "Battle.Net", href: history, active: true},
		),
		charactersHTML("b0", "b0"),
		flairHTML("2024-04-01T00:00:00Z"),
	)

	member := NewMember("Alpha", "BLIZ", profile)
	err := NewResolver(fetcher, telemetry.NewMemoryAPI()).Resolve(context.Background(), member)
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), member.LastActive)
	requireCalls(t, []string{history}, fetcher)
}

func TestResolveFallsBackToEveryPlatform(t *testing.T) {
	psn := "/en/Profile/GameHistory/2/4611686018/Alpha?platform=psn"
	bnet := "/en/Profile/GameHistory/4/4611686019/Alpha"

	items := []platformItem{
		{label: "PlayStation Network", href: psn, active: true},
		{label: "Battle.Net", href: bnet},
	}

	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		platformsHTML(items...),
		charactersHTML("p0", "p0", "p1"),
		flairHTML("2023-01-01T00:00:00Z"),
	)
	fetcher.pages[psn] = pageHTML(
		platformsHTML(items...),
		charactersHTML("p0", "p0", "p1"),
		flairHTML("2024-01-01T00:00:00Z"),
	)
	fetcher.pages[mustCharacterEndpoint(t, psn, "p1")] = pageHTML(
		charactersHTML("p1", "p0", "p1"),
		flairHTML("2024-07-04T12:00:00Z"),
	)
	fetcher.pages[bnet] = pageHTML(
		platformsHTML(items...),
		charactersHTML("b0", "b0"),
		flairHTML("2024-05-01T00:00:00Z"),
	)

	member := NewMember("Alpha", "XBOX", profile)
	err := NewResolver(fetcher, telemetry.NewMemoryAPI()).Resolve(context.Background(), member)
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC), member.LastActive)
	// both platform pages are fetched before any character is enumerated
	requireCalls(t, []string{
		history,
		psn,
		bnet,
		mustCharacterEndpoint(t, psn, "p1"),
	}, fetcher)
}

func TestResolveFallbackReusesFetchedPage(t *testing.T) {
	bnet := "/en/Profile/GameHistory/4/4611686019/Alpha"

	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		platformsHTML(
			platformItem{label: "PlayStation Network", href: history, active: true},
			platformItem{label: "Battle.Net", href: bnet},
		),
		charactersHTML("p0", "p0"),
		flairHTML("2024-09-01T00:00:00Z"),
	)
	fetcher.pages[bnet] = pageHTML(
		charactersHTML("b0", "b0"),
		flairHTML("2024-05-01T00:00:00Z"),
	)

	member := NewMember("Alpha", "XBOX", profile)
	err := NewResolver(fetcher, telemetry.NewMemoryAPI()).Resolve(context.Background(), member)
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), member.LastActive)
	requireCalls(t, []string{history, bnet}, fetcher)
}

func TestResolveWithoutPlatformCandidates(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		platformsHTML(
			platformItem{label: "PlayStation Network", active: true},
			platformItem{label: "Battle.Net"},
		),
		flairHTML("2024-09-01T00:00:00Z"),
	)

	tel := telemetry.NewMemoryAPI()
	member := NewMember("Alpha", "XBOX", profile)
	err := NewResolver(fetcher, tel).Resolve(context.Background(), member)
	require.NoError(t, err)

	require.Equal(t, Unknown, member.LastActive)
	require.Len(t, tel.Find(telemetry.KindWarning, report_resolver_select_platforms), 1)
}

func TestResolveWithoutActivity(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		charactersHTML("c0", "c0", "c1"),
		flairHTML(),
	)
	fetcher.pages[mustCharacterEndpoint(t, history, "c1")] = pageHTML(flairHTML())

	member := NewMember("Alpha", "PSN", profile)
	err := NewResolver(fetcher, telemetry.NewMemoryAPI()).Resolve(context.Background(), member)
	require.NoError(t, err)
	require.Equal(t, Unknown, member.LastActive)
}

func TestResolveIgnoresUnparseableActivity(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(flairHTML("last tuesday"))

	tel := telemetry.NewMemoryAPI()
	member := NewMember("Alpha", "PSN", profile)
	err := NewResolver(fetcher, tel).Resolve(context.Background(), member)
	require.NoError(t, err)
	require.Equal(t, Unknown, member.LastActive)
	require.Len(t, tel.Find(telemetry.KindWarning, report_resolver_extract_activity), 1)
}

func TestResolveHistoryFailure(t *testing.T) {
	errUnavailable := errors.New("503 service unavailable")

	fetcher := newFakeFetcher()
	fetcher.errs[history] = errUnavailable

	tel := telemetry.NewMemoryAPI()
	member := NewMember("Alpha", "PSN", profile)
	err := NewResolver(fetcher, tel).Resolve(context.Background(), member)
	require.ErrorIs(t, err, errUnavailable)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	require.Equal(t, "Alpha", resolveErr.Member)
	require.Equal(t, history, resolveErr.Endpoint)
	require.Equal(t, Unknown, member.LastActive)
	require.Len(t, tel.Find(telemetry.KindBroken, report_resolver_fetch), 1)
}

func TestResolveCharacterFailure(t *testing.T) {
	errTimeout := errors.New("timeout")
	c1 := mustCharacterEndpoint(t, history, "c1")
	c2 := mustCharacterEndpoint(t, history, "c2")

	fetcher := newFakeFetcher()
	fetcher.pages[history] = pageHTML(
		charactersHTML("c0", "c0", "c1", "c2"),
		flairHTML("2024-01-01T00:00:00Z"),
	)
	fetcher.errs[c1] = errTimeout
	fetcher.pages[c2] = pageHTML(flairHTML("2024-02-01T00:00:00Z"))

	member := NewMember("Alpha", "PSN", profile)
	err := NewResolver(fetcher, telemetry.NewMemoryAPI()).Resolve(context.Background(), member)
	require.ErrorIs(t, err, errTimeout)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	require.Equal(t, c1, resolveErr.Endpoint)
	// the remaining characters are not fetched once one fails
	requireCalls(t, []string{history, c1}, fetcher)
}
