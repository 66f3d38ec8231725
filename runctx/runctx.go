// Package runctx threads the process-wide collaborators (store, LLM
// client, prompt cache, usage tracker, logger) explicitly through
// call sites instead of package-level globals, per the design note
// that tests should be able to instantiate parallel instances.
package runctx

import (
	"go.uber.org/zap"

	"discord-marketing/pipeline/config"
	"discord-marketing/pipeline/llm"
	"discord-marketing/pipeline/prompt"
	"discord-marketing/pipeline/store"
	"discord-marketing/pipeline/usage"
)

// Context bundles the collaborators a run needs. Built once at
// cmd/pipeline startup and passed by reference into scrape.Drive,
// stage.Run, and friends.
type Context struct {
	Config  *config.Config
	Store   *store.Store
	LLM     *llm.Client
	Prompts *prompt.Builder
	Usage   *usage.Tracker
	Log     *zap.SugaredLogger
}

// Close releases any owned resources (currently just the store).
func (c *Context) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
