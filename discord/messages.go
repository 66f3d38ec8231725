package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"discord-marketing/pipeline/models"
)

// MessageBundle is one fetched message with its associated rows.
type MessageBundle struct {
	Message     models.Message
	Author      models.User
	Embeds      []models.Embed
	Attachments []models.Attachment
	Reactions   []models.Reaction
}

// FetchOptions narrows a FetchMessages call.
type FetchOptions struct {
	After   string
	Before  string
	Limit   int
	DelayMs int
}

const pageSize = 100

// FetchMessages yields a lazy, finite sequence of message bundles via
// the callback. One underlying request returns at most 100 messages;
// when After is set the walk proceeds from there, otherwise it pages
// backwards from newest using Before updated to the oldest id of
// each batch. Within a batch, bundles are yielded in descending
// timestamp order, matching the order the gateway returns them in.
// Generalizes the teacher's scanner.go archived-thread `before`
// cursor loop to plain channel message pagination.
func (s *Session) FetchMessages(ctx context.Context, channelID string, opts FetchOptions, yield func(MessageBundle) error) error {
	delay := opts.DelayMs
	if delay <= 0 {
		delay = 100
	}

	after := opts.After
	before := opts.Before
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := s.fetcher.ChannelMessages(channelID, pageSize, before, after, "")
		if err != nil {
			return wrapRESTErr(err, "fetch channel messages")
		}
		if len(batch) == 0 {
			return nil
		}

		for _, m := range batch {
			bundle, convErr := toBundle(m)
			if convErr != nil {
				return convErr
			}
			if err := yield(bundle); err != nil {
				return err
			}
			total++
			if opts.Limit > 0 && total >= opts.Limit {
				return nil
			}
		}

		// discordgo.ChannelMessages already returns newest-first
		// within the page; the oldest id in the page is the last
		// element, used as the next `before` cursor on a cold scrape.
		if after == "" {
			before = batch[len(batch)-1].ID
		} else {
			// Incremental mode pages forward: the newest id in the
			// page becomes the next `after` cursor.
			after = batch[0].ID
		}

		if len(batch) < pageSize {
			return nil
		}

		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
}

func toBundle(m *discordgo.Message) (MessageBundle, error) {
	ts := m.Timestamp
	var editedTS *time.Time
	if m.EditedTimestamp != nil && !m.EditedTimestamp.IsZero() {
		t := *m.EditedTimestamp
		editedTS = &t
	}

	var referenceID string
	if m.MessageReference != nil {
		referenceID = m.MessageReference.MessageID
	}

	msg := models.Message{
		ID:              m.ID,
		ChannelID:       m.ChannelID,
		AuthorID:        m.Author.ID,
		Content:         m.Content,
		CleanContent:    m.ContentWithMentionsReplaced(),
		Timestamp:       ts,
		EditedTimestamp: editedTS,
		MessageType:     models.MessageType(m.Type),
		ReferenceID:     referenceID,
		HasEmbeds:       len(m.Embeds) > 0,
		HasAttachments:  len(m.Attachments) > 0,
	}

	author := models.User{
		ID:            m.Author.ID,
		Username:      m.Author.Username,
		GlobalName:    m.Author.GlobalName,
		Discriminator: m.Author.Discriminator,
		AvatarURL:     m.Author.AvatarURL(""),
		IsBot:         m.Author.Bot,
	}

	embeds := make([]models.Embed, 0, len(m.Embeds))
	for _, e := range m.Embeds {
		embeds = append(embeds, models.Embed{MessageID: m.ID, Title: e.Title, URL: e.URL})
	}

	attachments := make([]models.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, models.Attachment{
			MessageID:   m.ID,
			URL:         a.URL,
			Filename:    a.Filename,
			Size:        int64(a.Size),
			ContentType: a.ContentType,
		})
	}

	reactionCount := 0
	reactions := make([]models.Reaction, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		reactions = append(reactions, models.Reaction{MessageID: m.ID, Emoji: r.Emoji.APIName(), Count: r.Count})
		reactionCount += r.Count
	}
	msg.ReactionCount = reactionCount

	return MessageBundle{
		Message:     msg,
		Author:      author,
		Embeds:      embeds,
		Attachments: attachments,
		Reactions:   reactions,
	}, nil
}
