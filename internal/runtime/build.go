package runtime

import (
	"offer-crew/internal/common/config"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/llm"
	"offer-crew/internal/tools"
)

// NewToolbox registers the search and scrape tools configured in cfg.
func NewToolbox(cfg *config.Config, log logger.Logger) *tools.Toolbox {
	return tools.NewToolbox(
		tools.NewWebSearch(tools.WebSearchConfig{
			BaseURL:      cfg.Search.BaseURL,
			UserAgent:    cfg.Search.UserAgent,
			Timeout:      config.GetDuration(cfg.Search.Timeout),
			MaxResults:   cfg.Search.MaxResults,
			MaxBodyBytes: cfg.Search.MaxBodyBytes,
		}, log),
		tools.NewWebScraper(tools.WebScraperConfig{
			UserAgent:          cfg.Scraper.UserAgent,
			Timeout:            config.GetDuration(cfg.Scraper.Timeout),
			MaxParagraphs:      cfg.Scraper.MaxParagraphs,
			MinParagraphLength: cfg.Scraper.MinParagraphLength,
			MaxBodyBytes:       cfg.Scraper.MaxBodyBytes,
		}, log),
	)
}

// NewAgentRuntimeFromConfig wires the LLM client and toolbox into an AgentRuntime.
func NewAgentRuntimeFromConfig(cfg *config.Config, log logger.Logger) *AgentRuntime {
	client := llm.NewClient(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		Deployment:  cfg.LLM.ModelName,
		APIKey:      cfg.LLM.APIKey,
		APIVersion:  cfg.LLM.APIVersion,
		Timeout:     config.GetDuration(cfg.LLM.Timeout),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, log)

	return NewAgentRuntime(client, NewToolbox(cfg, log), AgentConfig{
		MaxIterations: cfg.Agents.MaxIterations,
		TaskTimeout:   config.GetDuration(cfg.Agents.TaskTimeout),
		JSONMode:      cfg.LLM.JSONMode,
	}, log)
}
