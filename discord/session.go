// Package discord wraps the Discord gateway/REST client for the
// scraper: session lifecycle, channel enumeration with permission
// checks, paginated message fetch, and the periodic scrape
// orchestrator. Grounded on the teacher's bot/bot.go session setup,
// scanner/scanner.go pagination, and utils/auth.go permission checks.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"discord-marketing/pipeline/errkind"
)

// messageFetcher narrows *discordgo.Session to the one call
// FetchMessages needs, so tests can drive the before/after cursor walk
// against a fake instead of a live gateway connection.
type messageFetcher interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Session wraps an open discordgo session.
type Session struct {
	raw     *discordgo.Session
	fetcher messageFetcher
}

// Connect opens a session with the given bot token. It fails if the
// gateway does not report ready within 30 seconds.
func Connect(ctx context.Context, token string) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Configuration, "create discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	ready := make(chan struct{}, 1)
	dg.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})

	if err := dg.Open(); err != nil {
		return nil, errkind.Wrap(err, errkind.Transient, "open discord connection")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	select {
	case <-ready:
	case <-connectCtx.Done():
		dg.Close()
		return nil, errkind.New(errkind.Transient, "discord session did not become ready within 30s")
	}

	return &Session{raw: dg, fetcher: dg}, nil
}

// Close tears down the gateway connection.
func (s *Session) Close() error {
	return s.raw.Close()
}

// Identity returns the bot user's snowflake id, populated after Connect.
func (s *Session) Identity() string {
	if s.raw.State == nil || s.raw.State.User == nil {
		return ""
	}
	return s.raw.State.User.ID
}

func wrapRESTErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case 429, 500, 502, 503:
			return errkind.Wrap(err, errkind.Transient, op)
		}
	}
	return errkind.Wrap(err, errkind.Transient, op)
}
