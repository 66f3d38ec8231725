// Package models defines the entities persisted by store and produced by
// the scraper and stage engine.
package models

import "time"

// Guild is the Discord server the pipeline ingests from. One per run.
type Guild struct {
	ID           string
	Name         string
	IconURL      string
	MemberCount  int
}

// ChannelType mirrors the subset of Discord channel kinds the scraper
// cares about. Values match discordgo.ChannelType so conversions are a
// plain cast at the scraper boundary.
type ChannelType int

// Channel is a guild text channel tracked for incremental scraping.
type Channel struct {
	ID                    string
	GuildID               string
	Name                  string
	Type                  ChannelType
	ParentID              string
	Position              int
	Topic                 string
	LastScrapedMessageID  string
	LastScrapedAt         time.Time
	MessageCount          int64
}

// User is a Discord account, author of zero or more messages.
type User struct {
	ID            string
	Username      string
	GlobalName    string
	Discriminator string
	AvatarURL     string
	IsBot         bool
}

// MessageType mirrors discordgo.MessageType for the subset persisted.
type MessageType int

// Message is one ingested chat message. Timestamp is never rewritten on
// upsert; content fields may be.
type Message struct {
	ID               string
	ChannelID        string
	AuthorID         string
	Content          string
	CleanContent     string
	Timestamp        time.Time
	EditedTimestamp  *time.Time
	MessageType      MessageType
	ReferenceID      string
	ThreadID         string
	HasEmbeds        bool
	HasAttachments   bool
	ReactionCount    int
}

// Embed is a child row of Message, cascade-deleted with it.
type Embed struct {
	ID        int64
	MessageID string
	Title     string
	URL       string
	RawJSON   string
}

// Attachment is a child row of Message, cascade-deleted with it.
type Attachment struct {
	ID        int64
	MessageID string
	URL       string
	Filename  string
	Size      int64
	ContentType string
}

// Reaction is a child row of Message, unique per (message_id, emoji).
type Reaction struct {
	MessageID string
	Emoji     string
	Count     int
}

// SyncType enumerates the scope of a scrape invocation.
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
	SyncTypeChannel     SyncType = "channel"
)

// SyncStatus is the lifecycle state of a SyncState row.
type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// SyncState records one invocation of the scraper. Status transitions
// are in_progress -> completed | failed, terminal once set.
type SyncState struct {
	ID                 int64
	SyncType           SyncType
	GuildID            string
	ChannelID          string
	StartedAt          time.Time
	CompletedAt        *time.Time
	MessagesProcessed  int64
	Status             SyncStatus
	ErrorMessage       string
}

// Stage enumerates the pipeline phases, fixed order filter -> categorize
// -> summarize -> extract -> format.
type Stage string

const (
	StageFilter      Stage = "filter"
	StageCategorize  Stage = "categorize"
	StageSummarize   Stage = "summarize"
	StageExtract     Stage = "extract"
	StageFormat      Stage = "format"
)

// EntityType enumerates the kinds of entity an AIProcessing row can key on.
type EntityType string

const (
	EntityMessage       EntityType = "message"
	EntityChannel       EntityType = "channel"
	EntityDailySummary  EntityType = "daily_summary"
	EntityWeeklySummary EntityType = "weekly_summary"
)

// AIProcessing is the memoization table: one row per (entity_type,
// entity_id, stage). Its presence is the "done" marker for that triple.
type AIProcessing struct {
	EntityType  EntityType
	EntityID    string
	Stage       Stage
	ResultJSON  string
	ModelUsed   string
	TokensIn    int
	TokensOut   int
	ProcessedAt time.Time
}

// ExtractType enumerates the marketing artifact kinds extract produces.
type ExtractType string

const (
	ExtractAnnouncement ExtractType = "announcement"
	ExtractQuote        ExtractType = "quote"
	ExtractFAQ          ExtractType = "faq"
	ExtractHighlight    ExtractType = "highlight"
	ExtractSocialPost   ExtractType = "social_post"
)

// Sentiment enumerates the sentiment vocabulary shared by categorize and
// extract stage payloads.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
)

// MarketingExtract is an append-only typed artifact derived from one
// source message (or summary). No natural key.
type MarketingExtract struct {
	ID                 int64
	SourceType         string
	SourceID           string
	ExtractType        ExtractType
	Title              string
	Content            string
	FormattedContent   string
	RelevanceScore     float64
	Sentiment          Sentiment
	Topics             []string
	RequiresPermission bool
	PermissionGranted  bool
	CreatedAt          time.Time
}

// MessageEdit records one observed edit of a message: original and
// edited content, for operator visibility. Supplements the base
// Message invariant that content may be rewritten on upsert without
// discarding history.
type MessageEdit struct {
	ID                  int64
	MessageID           string
	GuildID             string
	ChannelID           string
	OriginalContent     string
	EditedContent       string
	OriginalAttachments string
	EditedAttachments   string
	EditedAt            time.Time
}

// MessageDeletion records one observed deletion of a message, for
// operator visibility only; the scraper is poll-only so deletions are
// never acted on (no content is removed retroactively).
type MessageDeletion struct {
	ID        int64
	MessageID string
	GuildID   string
	ChannelID string
	DeletedAt time.Time
}
