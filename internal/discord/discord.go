package discord

import "context"

// MembershipChange is a normalized voice-state transition: the user moved
// from PreviousRoomID to NewRoomID inside a guild. Either side may be
// empty, meaning "not in a voice room."
type MembershipChange struct {
	GuildID        string
	UserID         string
	DisplayName    string
	UserIsBot      bool
	PreviousRoomID string
	NewRoomID      string
}

// RoomOccupant is one member currently present in a voice room, as
// reported by the live gateway state.
type RoomOccupant struct {
	UserID      string
	DisplayName string
	IsBot       bool
}

type OptionKind int

const (
	OptionString OptionKind = iota
	OptionInteger
	OptionVoiceChannel
)

type SlashCommandOption struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	AdminOnly   bool
	Options     []SlashCommandOption
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	DisplayName      string
	HasManageGuild   bool
	Options          map[string]string
	RespondEphemeral func(content string) error
}

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	RegisterMembershipChangeHandler(handler func(MembershipChange))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertSlashCommands(guildID string, defs []SlashCommandDefinition) error
	SendChannelMessage(channelID, content string) error
	SendChannelMessageWithFile(msg FileMessage) error
	SendDirectMessage(userID, content string) error
	ListRoomOccupants(guildID, roomID string) ([]RoomOccupant, error)
	GetBotUserID() (string, error)
}
