package discord

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

// fetchCall records the cursor arguments one ChannelMessages call was
// made with, so tests can assert the pager's cursor advancement.
type fetchCall struct {
	beforeID, afterID string
}

type fakeFetcher struct {
	pages [][]*discordgo.Message
	calls []fetchCall
}

func (f *fakeFetcher) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.calls = append(f.calls, fetchCall{beforeID: beforeID, afterID: afterID})
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func id(n int) string {
	return fmt.Sprintf("%020d", n)
}

func fakeMsg(n int) *discordgo.Message {
	return &discordgo.Message{
		ID:        id(n),
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Content:   "hello",
		Timestamp: time.Unix(int64(n), 0).UTC(),
	}
}

// descendingPage builds a fake page the way discordgo returns it:
// newest message first within the page.
func descendingPage(from, to int) []*discordgo.Message {
	var out []*discordgo.Message
	for n := from; n >= to; n-- {
		out = append(out, fakeMsg(n))
	}
	return out
}

// S1: an incremental resume pass walks forward from the stored
// watermark, and the cursor it advances to is the newest id actually
// observed in the page just fetched (property 3).
func TestFetchMessages_IncrementalResumeCursor(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: [][]*discordgo.Message{
			descendingPage(200, 101), // full page: cursor must advance
			descendingPage(201, 201), // short page: pager stops here
		},
	}
	sess := &Session{fetcher: fetcher}

	var yielded []string
	err := sess.FetchMessages(context.Background(), "c1", FetchOptions{After: id(100)}, func(b MessageBundle) error {
		yielded = append(yielded, b.Message.ID)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, yielded, 101)

	require.Len(t, fetcher.calls, 2)
	require.Equal(t, id(100), fetcher.calls[0].afterID)
	require.Equal(t, "", fetcher.calls[0].beforeID)
	// The pager must resume from the newest id actually seen in the
	// first page (200), not from pageSize or an assumed increment.
	require.Equal(t, id(200), fetcher.calls[1].afterID)
}

// A cold (non-incremental) pass pages backwards from newest using the
// before cursor, advancing it to the oldest id seen in each page.
func TestFetchMessages_ColdScrapeBeforeCursor(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: [][]*discordgo.Message{
			descendingPage(300, 201), // full page, oldest id is 201
			descendingPage(200, 200), // short page, pager stops
		},
	}
	sess := &Session{fetcher: fetcher}

	err := sess.FetchMessages(context.Background(), "c1", FetchOptions{}, func(MessageBundle) error { return nil })
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 2)
	require.Equal(t, "", fetcher.calls[0].afterID)
	require.Equal(t, id(201), fetcher.calls[1].beforeID)
}

func TestFetchMessages_RespectsLimit(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: [][]*discordgo.Message{
			descendingPage(200, 101),
		},
	}
	sess := &Session{fetcher: fetcher}

	var count int
	err := sess.FetchMessages(context.Background(), "c1", FetchOptions{Limit: 5}, func(MessageBundle) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 5, count)
}
