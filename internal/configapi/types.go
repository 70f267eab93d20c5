package configapi

// BotConfig is the remote campaign configuration. It is fetched fresh every
// poll cycle, never persisted locally, and treated as immutable within a cycle.
type BotConfig struct {
	Active           bool       `json:"active"`
	AffiliateID      string     `json:"affiliate_id"`
	MessageTemplates []Template `json:"message_templates"`
	TargetRoles      []RoleRule `json:"target_roles"`
	AffiliateLinks   []Link     `json:"affiliate_links"`
}

// Template is one campaign message template, owned by the remote backend.
type Template struct {
	Name             string   `json:"name"`
	Content          string   `json:"content"`
	HasButtons       bool     `json:"has_buttons"`
	ButtonLabels     []string `json:"button_labels"`
	SelectedLinkName string   `json:"selected_link_name"`
	ABTests          []ABTest `json:"ab_tests"`
}

// ABTest declares an A/B experiment on a template. Its presence is what
// drives variant assignment; the engine does not interpret the details.
type ABTest struct {
	Name string `json:"name"`
}

// RoleRule targets members holding a given role. Disabled rules are ignored.
type RoleRule struct {
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
	Enabled  bool   `json:"enabled"`
}

// Link is a named affiliate destination looked up when building buttons.
type Link struct {
	Name        string `json:"name"`
	URLTemplate string `json:"url_template"`
	Enabled     bool   `json:"enabled"`
}

// Activity types reported to the remote activity log.
const (
	ActivityStartup      = "startup"
	ActivityShutdown     = "shutdown"
	ActivityMessageSent  = "message_sent"
	ActivityUserTargeted = "user_targeted"
	ActivityError        = "error"
)

// DefaultConfig is the fallback used when the remote fetch fails, so the
// loop degrades to an idle-but-alive cycle instead of halting.
func DefaultConfig() *BotConfig {
	return &BotConfig{
		Active:           true,
		AffiliateID:      "default_affiliate",
		MessageTemplates: []Template{},
		TargetRoles:      []RoleRule{},
		AffiliateLinks:   []Link{},
	}
}
