package discord

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"affbot/internal/platform"
	"affbot/pkg/logx"
)

type Config struct {
	Token string
}

// Adapter maps the Discord gateway/REST surface onto the platform facade.
type Adapter struct {
	cfg Config
	log logx.Logger

	session *discordgo.Session

	runMu   sync.Mutex
	running bool

	updateMu sync.Mutex
	onUpdate func(platform.MemberUpdate)
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, err
	}
	// Member rosters and membership-change events both need the privileged
	// members intent.
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	s.StateEnabled = true
	return &Adapter{cfg: cfg, log: log, session: s}, nil
}

func (a *Adapter) OnMemberUpdate(fn func(platform.MemberUpdate)) {
	a.updateMu.Lock()
	a.onUpdate = fn
	a.updateMu.Unlock()
}

func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}

	a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.log.Info("gateway ready",
			logx.String("user", r.User.String()),
			logx.Int("guilds", len(r.Guilds)),
		)
	})
	a.session.AddHandler(a.handleMemberUpdate)

	if err := a.session.Open(); err != nil {
		return err
	}
	a.running = true
	a.log.Info("session opened")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		a.log.Debug("discord stop called but not running")
		return nil
	}
	err := a.session.Close()
	if err != nil {
		a.log.Warn("session close failed", logx.Err(err))
		return err
	}
	a.log.Info("session closed")
	return nil
}

// Groups enumerates every guild the bot is in with a full member roster.
// Rosters are fetched via paginated REST calls; the gateway state alone is
// not guaranteed to hold every member.
func (a *Adapter) Groups(ctx context.Context) ([]platform.Group, error) {
	st := a.session.State
	if st == nil {
		return nil, errors.New("session state unavailable")
	}

	out := make([]platform.Group, 0, len(st.Guilds))
	for _, g := range st.Guilds {
		roles, err := a.roleNames(g)
		if err != nil {
			return nil, mapError(err)
		}

		members, err := a.allMembers(ctx, g.ID)
		if err != nil {
			return nil, mapError(err)
		}

		pg := platform.Group{ID: g.ID, Name: g.Name, Members: make([]platform.Member, 0, len(members))}
		for _, m := range members {
			if m.User == nil || m.User.Bot {
				continue
			}
			pm := platform.Member{
				ID:          m.User.ID,
				DisplayName: displayName(m),
				Mention:     m.User.Mention(),
				GroupName:   g.Name,
				Roles:       make([]platform.Role, 0, len(m.Roles)),
			}
			for _, rid := range m.Roles {
				pm.Roles = append(pm.Roles, platform.Role{ID: rid, Name: roles[rid]})
			}
			pg.Members = append(pg.Members, pm)
		}
		out = append(out, pg)
	}
	return out, nil
}

func (a *Adapter) allMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var all []*discordgo.Member
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := a.session.GuildMembers(guildID, after, 1000)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 1000 {
			return all, nil
		}
		after = batch[len(batch)-1].User.ID
	}
}

func (a *Adapter) roleNames(g *discordgo.Guild) (map[string]string, error) {
	roles := g.Roles
	if len(roles) == 0 {
		fetched, err := a.session.GuildRoles(g.ID)
		if err != nil {
			return nil, err
		}
		roles = fetched
	}
	m := make(map[string]string, len(roles))
	for _, r := range roles {
		m[r.ID] = r.Name
	}
	return m, nil
}

func (a *Adapter) SendDM(ctx context.Context, memberID, content string, buttons []platform.Button) error {
	ch, err := a.session.UserChannelCreate(memberID)
	if err != nil {
		return mapError(err)
	}

	msg := &discordgo.MessageSend{Content: content}
	if len(buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range buttons {
			// Discord requires the link style for URL buttons; the configured
			// visual style only matters for interaction buttons.
			row.Components = append(row.Components, discordgo.Button{
				Label: b.Label,
				Style: discordgo.LinkButton,
				URL:   b.URL,
			})
		}
		msg.Components = []discordgo.MessageComponent{row}
	}

	if _, err := a.session.ChannelMessageSendComplex(ch.ID, msg); err != nil {
		return mapError(err)
	}
	return nil
}

func (a *Adapter) handleMemberUpdate(s *discordgo.Session, u *discordgo.GuildMemberUpdate) {
	a.updateMu.Lock()
	fn := a.onUpdate
	a.updateMu.Unlock()
	if fn == nil || u.Member == nil || u.User == nil {
		return
	}

	guildName := ""
	var roleNames map[string]string
	if g, err := s.State.Guild(u.GuildID); err == nil && g != nil {
		guildName = g.Name
		roleNames = make(map[string]string, len(g.Roles))
		for _, r := range g.Roles {
			roleNames[r.ID] = r.Name
		}
	}

	var before []platform.Role
	if u.BeforeUpdate != nil {
		before = toRoles(u.BeforeUpdate.Roles, roleNames)
	}
	after := toRoles(u.Roles, roleNames)

	added := platform.AddedRoles(before, after)
	if len(added) == 0 {
		return
	}

	fn(platform.MemberUpdate{
		Member: platform.Member{
			ID:          u.User.ID,
			DisplayName: displayName(u.Member),
			Mention:     u.User.Mention(),
			GroupName:   guildName,
			Roles:       after,
		},
		AddedRoles: added,
	})
}

func toRoles(ids []string, names map[string]string) []platform.Role {
	out := make([]platform.Role, 0, len(ids))
	for _, id := range ids {
		out = append(out, platform.Role{ID: id, Name: names[id]})
	}
	return out
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}

// mapError folds discordgo errors into the facade's failure classes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) {
		if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
			return platform.ErrDMsDisabled
		}
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		detail := ""
		if rerr.Message != nil {
			detail = rerr.Message.Message
		}
		return &platform.RESTError{Status: status, Detail: detail}
	}
	return err
}
