package anonymize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/anonymize"
)

func TestAliasSequence(t *testing.T) {
	f := anonymize.NewFactory()
	require.Equal(t, "User_A", f.Alias("alice"))
	require.Equal(t, "User_B", f.Alias("bob"))
	require.Equal(t, "User_A", f.Alias("alice"), "repeat lookups are stable")
}

func TestAliasWrapsAfterZ(t *testing.T) {
	f := anonymize.NewFactory()
	for i := 0; i < 26; i++ {
		f.Alias(string(rune('a' + i)))
	}
	require.Equal(t, "User_A1", f.Alias("new-user"))
}

func TestResetClearsState(t *testing.T) {
	f := anonymize.NewFactory()
	require.Equal(t, "User_A", f.Alias("alice"))
	f.Reset()
	require.Equal(t, "User_A", f.Alias("bob"))
}

func TestAnonymizeMessagesStabilityAndContentRewrite(t *testing.T) {
	msgs := []anonymize.SourceMessage{
		{ID: "1", AuthorID: "1234567890", Username: "alice", Content: "hi @alice how are you"},
		{ID: "2", AuthorID: "9999999999", Username: "bob", Content: "hey @alice"},
		{ID: "3", AuthorID: "1111111111", Username: "alice", Content: "me again"},
	}
	out, _ := anonymize.AnonymizeMessages(msgs, anonymize.Options{AnonymizeContent: true})

	require.Len(t, out, 3)
	require.Equal(t, "User_A", out[0].AuthorAlias)
	require.Equal(t, "User_A", out[2].AuthorAlias, "same username maps to same alias within one call")
	require.Equal(t, "User_B", out[1].AuthorAlias)
	require.NotEqual(t, out[0].AuthorAlias, out[1].AuthorAlias)

	require.Equal(t, "anon_7890", out[0].AuthorIDAlias)
	require.Contains(t, out[0].Content, "User_A")
	require.NotContains(t, out[0].Content, "@alice")
	require.Contains(t, out[1].Content, "User_A")
}

func TestAnonymizeMessagesPreservesOriginalID(t *testing.T) {
	msgs := []anonymize.SourceMessage{{ID: "msg-42", AuthorID: "1234", Username: "alice"}}
	out, _ := anonymize.AnonymizeMessages(msgs, anonymize.Options{})
	require.Equal(t, "msg-42", out[0].OriginalID)
}
