package main

import (
	"fmt"
	"sync"

	"discord-marketing/pipeline/config"
	"discord-marketing/pipeline/llm"
	"discord-marketing/pipeline/logging"
	"discord-marketing/pipeline/prompt"
	"discord-marketing/pipeline/runctx"
	"discord-marketing/pipeline/store"
	"discord-marketing/pipeline/usage"
)

// commandContext lazily builds the shared collaborators once per
// process invocation, so every subcommand shares one config load,
// one store handle, and one logger.
type commandContext struct {
	configFlag *string

	once sync.Once
	rc   *runctx.Context
	err  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensure() (*runctx.Context, error) {
	c.once.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = *c.configFlag
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.err = fmt.Errorf("load config: %w", err)
			return
		}

		log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		if err != nil {
			c.err = fmt.Errorf("build logger: %w", err)
			return
		}

		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			c.err = fmt.Errorf("open store: %w", err)
			return
		}

		client := llm.New(llm.Config{
			APIKey: cfg.AI.APIKey, BaseURL: cfg.AI.BaseURL, Model: cfg.AI.Model,
			RetryAttempts: cfg.AI.RetryAttempts, RetryDelayMs: cfg.AI.RetryDelayMs,
			BackoffMultiplier: cfg.Scraper.BackoffMultiplier,
		})

		c.rc = &runctx.Context{
			Config:  cfg,
			Store:   st,
			LLM:     client,
			Prompts: prompt.New("prompt/templates"),
			Usage:   usage.New(),
			Log:     log,
		}
	})
	return c.rc, c.err
}

func (c *commandContext) close() {
	if c.rc != nil {
		_ = c.rc.Close()
	}
}
