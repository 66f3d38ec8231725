package stage

import (
	"context"

	"discord-marketing/pipeline/anonymize"
	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
)

// enrichWithAuthors loads each message's author, skipping (and
// silently dropping) messages whose author row is somehow missing
// rather than failing the whole batch build.
func enrichWithAuthors(ctx context.Context, rc *runctx.Context, messages []models.Message) []candidateItem {
	items := make([]candidateItem, 0, len(messages))
	for _, m := range messages {
		author, err := rc.Store.AuthorByID(ctx, m.AuthorID)
		if err != nil {
			continue
		}
		items = append(items, candidateItem{Message: m, Author: author})
	}
	return items
}

// messagePayloads renders items into the plain JSON shape the prompt
// templates embed under {{MESSAGES}}, anonymizing author identity and
// content when anonymizeInPrompts is set. Message ids are never
// anonymized: per-item responses key on them unchanged.
func messagePayloads(items []candidateItem, anonymizeInPrompts bool) []map[string]any {
	if !anonymizeInPrompts {
		out := make([]map[string]any, len(items))
		for i, it := range items {
			out[i] = map[string]any{
				"id":       it.Message.ID,
				"username": it.Author.Username,
				"content":  it.Message.CleanContent,
			}
		}
		return out
	}

	sources := make([]anonymize.SourceMessage, len(items))
	for i, it := range items {
		sources[i] = anonymize.SourceMessage{
			ID: it.Message.ID, AuthorID: it.Author.ID,
			Username: it.Author.Username, GlobalName: it.Author.GlobalName,
			Content: it.Message.Content, CleanContent: it.Message.CleanContent,
		}
	}
	anonMessages, _ := anonymize.AnonymizeMessages(sources, anonymize.Options{AnonymizeContent: true})

	out := make([]map[string]any, len(anonMessages))
	for i, a := range anonMessages {
		out[i] = map[string]any{
			"id":       a.OriginalID,
			"username": a.AuthorAlias,
			"content":  a.CleanContent,
		}
	}
	return out
}

func batchIDs(items []candidateItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Message.ID
	}
	return ids
}
