// Package anonymize allocates stable, session-scoped aliases for
// usernames before they are sent to the LLM. No pack library offers
// this deterministic sequential aliasing, so it stays on the
// standard library (see DESIGN.md).
package anonymize

import (
	"fmt"
	"regexp"
	"strings"
)

// Factory allocates aliases User_A..User_Z, User_A1, User_B1, ... for
// novel usernames, deterministic within one instance. Not safe for
// concurrent use; one Factory per batch/prompt.
type Factory struct {
	aliasOf map[string]string
	next    int
}

// NewFactory returns an empty alias factory.
func NewFactory() *Factory {
	return &Factory{aliasOf: make(map[string]string)}
}

// Alias returns the stable alias for username, allocating a new one
// on first sight. The same username always maps to the same alias
// within this factory's lifetime.
func (f *Factory) Alias(username string) string {
	if alias, ok := f.aliasOf[username]; ok {
		return alias
	}
	alias := f.nextAlias()
	f.aliasOf[username] = alias
	return alias
}

func (f *Factory) nextAlias() string {
	letter := f.next % 26
	generation := f.next / 26
	f.next++

	suffix := ""
	if generation > 0 {
		suffix = fmt.Sprintf("%d", generation)
	}
	return fmt.Sprintf("User_%c%s", 'A'+letter, suffix)
}

// Reset clears all allocated aliases.
func (f *Factory) Reset() {
	f.aliasOf = make(map[string]string)
	f.next = 0
}

// AnonymizedMessage is the shape AnonymizeMessages produces: a
// message plus its already-substituted fields, keyed on the
// original, never anonymized, entity id.
type AnonymizedMessage struct {
	OriginalID   string
	AuthorAlias  string
	AuthorIDAlias string
	Content      string
	CleanContent string
}

// Options narrows AnonymizeMessages.
type Options struct {
	AnonymizeContent bool
}

// SourceMessage is the minimal shape AnonymizeMessages needs from a
// message+author pair.
type SourceMessage struct {
	ID           string
	AuthorID     string
	Username     string
	GlobalName   string
	Content      string
	CleanContent string
}

var mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_.]+`)

// AnonymizeMessages rewrites author.username/author.global_name and
// author_id (to anon_<last4>) for every message, using one Factory so
// the same username maps to the same alias across the whole batch.
// When opts.AnonymizeContent is set, @name occurrences in content and
// clean_content are rewritten through the same mapping.
func AnonymizeMessages(messages []SourceMessage, opts Options) ([]AnonymizedMessage, *Factory) {
	factory := NewFactory()
	out := make([]AnonymizedMessage, 0, len(messages))

	for _, m := range messages {
		alias := factory.Alias(m.Username)
		idAlias := anonID(m.AuthorID)

		content := m.Content
		clean := m.CleanContent
		if opts.AnonymizeContent {
			content = rewriteMentions(content, m.Username, alias)
			clean = rewriteMentions(clean, m.Username, alias)
		}

		out = append(out, AnonymizedMessage{
			OriginalID:    m.ID,
			AuthorAlias:   alias,
			AuthorIDAlias: idAlias,
			Content:       content,
			CleanContent:  clean,
		})
	}
	return out, factory
}

func anonID(id string) string {
	if len(id) <= 4 {
		return "anon_" + id
	}
	return "anon_" + id[len(id)-4:]
}

func rewriteMentions(content, username, alias string) string {
	if content == "" {
		return content
	}
	return mentionPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimPrefix(match, "@")
		if strings.EqualFold(name, username) {
			return "@" + alias
		}
		return match
	})
}
