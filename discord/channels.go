package discord

import (
	"github.com/bwmarrin/discordgo"

	"discord-marketing/pipeline/models"
)

// excludedChannelTypes are never returned by ListTextChannels: voice,
// category, stage, directory, media. Generalizes the teacher's
// forum-only filter in scanner/scanner.go to the full exclusion set.
var excludedChannelTypes = map[discordgo.ChannelType]bool{
	discordgo.ChannelTypeGuildVoice:      true,
	discordgo.ChannelTypeGuildCategory:   true,
	discordgo.ChannelTypeGuildStageVoice: true,
	discordgo.ChannelTypeGuildDirectory:  true,
	discordgo.ChannelTypeGuildMedia:      true,
}

// ListTextChannels returns channels the bot can both view and read
// message history in, excluding voice/category/stage/directory/media
// kinds.
func (s *Session) ListTextChannels(guildID string) ([]models.Channel, error) {
	raw, err := s.raw.GuildChannels(guildID)
	if err != nil {
		return nil, wrapRESTErr(err, "list guild channels")
	}

	var out []models.Channel
	for _, ch := range raw {
		if excludedChannelTypes[ch.Type] {
			continue
		}
		if !s.canRead(guildID, ch) {
			continue
		}
		out = append(out, models.Channel{
			ID:       ch.ID,
			GuildID:  guildID,
			Name:     ch.Name,
			Type:     models.ChannelType(ch.Type),
			ParentID: ch.ParentID,
			Position: ch.Position,
			Topic:    ch.Topic,
		})
	}
	return out, nil
}

// canRead checks view-channel and read-message-history permissions
// for the bot's own member, generalizing utils/auth.go's admin-role
// bitmask check to channel permission bitmasks.
func (s *Session) canRead(guildID string, ch *discordgo.Channel) bool {
	perms, err := s.raw.State.UserChannelPermissions(s.Identity(), ch.ID)
	if err != nil {
		perms, err = s.raw.UserChannelPermissions(s.Identity(), ch.ID)
		if err != nil {
			return false
		}
	}
	const required = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory
	return perms&required == required
}

// Guild fetches guild metadata for upsert.
func (s *Session) Guild(guildID string) (models.Guild, error) {
	g, err := s.raw.Guild(guildID)
	if err != nil {
		return models.Guild{}, wrapRESTErr(err, "fetch guild")
	}
	iconURL := g.IconURL("256")
	return models.Guild{
		ID:          g.ID,
		Name:        g.Name,
		IconURL:     iconURL,
		MemberCount: g.MemberCount,
	}, nil
}
