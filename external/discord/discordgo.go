package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	discordpkg "github.com/araucarialabs/presenca/internal/discord"
	"github.com/bwmarrin/discordgo"
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers)
	// Deliver gateway events in order on one goroutine. The engine's
	// check-then-act store sequences assume serialized dispatch.
	s.SyncEvents = true
	s.State.TrackVoice = true
	s.State.TrackMembers = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) RegisterMembershipChangeHandler(handler func(discordpkg.MembershipChange)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil {
			return
		}
		previousRoomID := ""
		if vs.BeforeUpdate != nil {
			previousRoomID = vs.BeforeUpdate.ChannelID
		}
		newRoomID := vs.ChannelID
		if previousRoomID == newRoomID {
			return
		}
		if vs.GuildID == "" || vs.UserID == "" {
			return
		}
		handler(discordpkg.MembershipChange{
			GuildID:        vs.GuildID,
			UserID:         vs.UserID,
			DisplayName:    c.resolveDisplayName(vs.GuildID, vs.UserID, vs.VoiceState),
			UserIsBot:      c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			PreviousRoomID: previousRoomID,
			NewRoomID:      newRoomID,
		})
	})
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		displayName := ""
		hasManageGuild := false
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
			displayName = memberDisplayName(ic.Member)
			hasManageGuild = ic.Member.Permissions&discordgo.PermissionManageGuild != 0
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
			displayName = preferredDiscordName(ic.User.GlobalName, ic.User.Username, ic.User.ID)
		}
		if userID == "" {
			return
		}
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			if opt == nil {
				continue
			}
			options[opt.Name] = optionValueString(opt)
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		handler(discordpkg.SlashCommandEvent{
			GuildID:        ic.GuildID,
			ChannelID:      ic.ChannelID,
			CommandName:    data.Name,
			UserID:         userID,
			DisplayName:    displayName,
			HasManageGuild: hasManageGuild,
			Options:        options,
			RespondEphemeral: func(content string) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			},
		})
	})
}

func optionValueString(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionString:
		return opt.StringValue()
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(opt.IntValue(), 10)
	case discordgo.ApplicationCommandOptionChannel:
		return fmt.Sprintf("%v", opt.Value)
	default:
		return fmt.Sprintf("%v", opt.Value)
	}
}

func (c *Client) UpsertSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := commandPayload(def)
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if cmd.Description == def.Description && len(cmd.Options) == len(payload.Options) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func commandPayload(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	if def.AdminOnly {
		perms := int64(discordgo.PermissionManageGuild)
		payload.DefaultMemberPermissions = &perms
	}
	for _, opt := range def.Options {
		payload.Options = append(payload.Options, optionPayload(opt))
	}
	return payload
}

func optionPayload(opt discordpkg.SlashCommandOption) *discordgo.ApplicationCommandOption {
	out := &discordgo.ApplicationCommandOption{
		Name:        opt.Name,
		Description: opt.Description,
		Required:    opt.Required,
	}
	switch opt.Kind {
	case discordpkg.OptionInteger:
		out.Type = discordgo.ApplicationCommandOptionInteger
	case discordpkg.OptionVoiceChannel:
		out.Type = discordgo.ApplicationCommandOptionChannel
		out.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice}
	default:
		out.Type = discordgo.ApplicationCommandOptionString
	}
	return out
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: msg.Content,
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/csv", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return err
}

func (c *Client) SendDirectMessage(userID, content string) error {
	ch, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = c.session.ChannelMessageSend(ch.ID, content)
	return err
}

func (c *Client) ListRoomOccupants(guildID, roomID string) ([]discordpkg.RoomOccupant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, nil
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil, nil
	}
	occupants := make([]discordpkg.RoomOccupant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != roomID || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		occupants = append(occupants, discordpkg.RoomOccupant{
			UserID:      state.UserID,
			DisplayName: c.resolveDisplayName(guildID, state.UserID, state),
			IsBot:       c.resolveUserIsBot(guildID, state.UserID, state),
		})
	}
	return occupants, nil
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot
	}
	if c.session != nil && c.session.State != nil {
		if c.session.State.User != nil && c.session.State.User.ID == userID {
			return true
		}
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil && member.User != nil {
			return member.User.Bot
		}
	}
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) resolveDisplayName(guildID, userID string, state *discordgo.VoiceState) string {
	if state != nil && state.Member != nil {
		if name := memberDisplayName(state.Member); name != "" {
			return name
		}
	}
	member := c.resolveGuildMember(guildID, userID)
	if member != nil {
		if name := memberDisplayName(member); name != "" {
			return name
		}
	}
	u, err := c.session.User(userID)
	if err == nil && u != nil {
		return preferredDiscordName(u.GlobalName, u.Username, userID)
	}
	return userID
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func memberDisplayName(member *discordgo.Member) string {
	if member == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		return preferredDiscordName(member.User.GlobalName, member.User.Username, member.User.ID)
	}
	return ""
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}
