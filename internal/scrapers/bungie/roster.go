package bungie

import (
	"context"
	"fmt"
	"net/url"

	"clanactivity/internal/activity"
	"clanactivity/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_client_clan_members = "client.clan-members"
)

// ClanEndpoint is the roster page of a group.
func ClanEndpoint(groupId string) string {
	query := url.Values{}
	query.Set("groupid", groupId)
	return "/en/ClanV2?" + query.Encode()
}

// ClanMembers scrapes the member list of a clan, members come back in the
// order the clan page lists them with their activity still unknown.
func (c *Client) ClanMembers(ctx context.Context, groupId string) ([]*activity.Member, error) {
	if groupId == "" {
		return nil, fmt.Errorf("group id must not be empty")
	}

	page, err := c.Fetch(ctx, ClanEndpoint(groupId))
	if err != nil {
		return nil, fmt.Errorf("clan members: %w", err)
	}
	members := ParseClanMembers(page.Document)

	c.tel.ReportDebug("found clan members", groupId, len(members))
	if len(members) == 0 {
		c.tel.ReportWarning(
			report_client_clan_members,
			fmt.Errorf("no members found, the page layout may have changed"),
			groupId,
		)
	}
	return members, nil
}

// ParseClanMembers reads every member card of a clan page. Cards without a
// profile link are skipped since nothing can be resolved for them.
func ParseClanMembers(doc *goquery.Document) []*activity.Member {
	var members []*activity.Member
	doc.Find(".clanmembers-container .card-list-item").Each(func(_ int, card *goquery.Selection) {
		details := card.Find(".card-header-details")
		title := details.Find(".card-title")

		// the title nests the member's clan rank after the name
		name := htmlutil.FirstLine(title)
		platform := htmlutil.Text(details.Find(".platform-type"))
		profile := title.Find("a").AttrOr("href", "")
		if name == "" || profile == "" {
			return
		}

		members = append(members, activity.NewMember(name, platform, profile))
	})
	return members
}
