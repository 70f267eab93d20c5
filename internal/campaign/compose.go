package campaign

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"time"

	"affbot/internal/configapi"
	"affbot/internal/platform"
)

// fallbackGroupName substitutes for {server_name} when the recipient has no
// group context.
const fallbackGroupName = "Unknown Server"

// RenderTemplate substitutes the recognized placeholders with recipient
// attributes. Unknown placeholders are left verbatim.
func RenderTemplate(content string, m platform.Member, affiliateID string) string {
	group := m.GroupName
	if group == "" {
		group = fallbackGroupName
	}
	r := strings.NewReplacer(
		"{username}", m.DisplayName,
		"{user_mention}", m.Mention,
		"{affiliate_id}", affiliateID,
		"{server_name}", group,
	)
	return r.Replace(content)
}

// SelectVariant deterministically assigns an A/B branch from the recipient
// ID. FNV-1a over the ID's string form keeps the mapping stable across
// processes and restarts; a template without A/B tests gets no variant.
func SelectVariant(recipientID string, tests []configapi.ABTest) string {
	if len(tests) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipientID))
	if h.Sum32()%2 == 0 {
		return "A"
	}
	return "B"
}

// TrackableLink wraps originalURL in a click-tracking redirect. The tracking
// code has second resolution, so two links for the same affiliate/campaign
// pair within one second collide; acceptable at this system's click-tracking
// granularity.
func TrackableLink(apiBase, originalURL, affiliateID, campaignID string, now time.Time) string {
	code := fmt.Sprintf("%s_%s_%d", affiliateID, campaignID, now.Unix())
	return fmt.Sprintf("%s/functions/trackLinkClick?code=%s&redirect=%s",
		strings.TrimRight(apiBase, "/"), code, url.QueryEscape(originalURL))
}

// BuildButtons constructs the link buttons for a template. The named link is
// resolved from the affiliate-links list (first match); a missing link yields
// a placeholder "#" destination rather than an error.
func BuildButtons(apiBase string, tpl configapi.Template, cfg *configapi.BotConfig, now time.Time) []platform.Button {
	if !tpl.HasButtons || len(tpl.ButtonLabels) == 0 {
		return nil
	}

	linkName := tpl.SelectedLinkName
	if linkName == "" {
		linkName = "main_affiliate_link"
	}
	original := "#"
	for _, l := range cfg.AffiliateLinks {
		if l.Name == linkName {
			original = l.URLTemplate
			break
		}
	}

	buttons := make([]platform.Button, 0, len(tpl.ButtonLabels))
	for _, label := range tpl.ButtonLabels {
		buttons = append(buttons, platform.Button{
			Label: label,
			URL:   TrackableLink(apiBase, original, cfg.AffiliateID, tpl.Name, now),
			Style: "primary",
		})
	}
	return buttons
}
