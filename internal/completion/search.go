package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	searchToolName       = "web_search"
	defaultSearchResults = 5
	searchTimeout        = 30 * time.Second
	searchSummaryPrompt  = "You summarize web search results. Answer the query using only the results provided, citing sources by URL where useful. Be concise."
)

// searchProvider lazily constructs the DuckDuckGo text search tool. The tool
// needs no API key, but construction can still fail, so the error is cached
// alongside the instance.
type searchProvider struct {
	maxResults int

	once sync.Once
	inst tool.InvokableTool
	info *schema.ToolInfo
	err  error
}

func newSearchProvider(maxResults int) *searchProvider {
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}
	return &searchProvider{maxResults: maxResults}
}

func (p *searchProvider) tool(ctx context.Context) (tool.InvokableTool, *schema.ToolInfo, error) {
	p.once.Do(func() {
		p.inst, p.err = duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   searchToolName,
			ToolDesc:   "Search the web for current information. Input is a search query string.",
			MaxResults: p.maxResults,
			Timeout:    searchTimeout,
		})
		if p.err != nil {
			p.err = fmt.Errorf("create search tool: %w", p.err)
			return
		}
		p.info, p.err = p.inst.Info(ctx)
		if p.err != nil {
			p.err = fmt.Errorf("search tool info: %w", p.err)
		}
	})
	return p.inst, p.info, p.err
}

// Search runs a web search for the query and summarizes the results through
// the completion service. When the search itself fails, it degrades to a
// knowledge-only answer so callers always get usable text back.
func (c *Client) Search(ctx context.Context, query string) string {
	searchTool, _, err := c.search.tool(ctx)
	if err != nil {
		slog.Warn("search: tool unavailable, answering from model knowledge", "error", err)
		return c.knowledgeFallback(ctx, query)
	}

	args, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return c.knowledgeFallback(ctx, query)
	}

	raw, err := searchTool.InvokableRun(ctx, string(args))
	if err != nil || raw == "" {
		slog.Warn("search: query failed, answering from model knowledge", "query", query, "error", err)
		return c.knowledgeFallback(ctx, query)
	}

	prompt := fmt.Sprintf("Query: %s\n\nSearch results:\n%s", query, raw)
	return c.Chat(ctx, prompt, WithSystemPrompt(searchSummaryPrompt))
}

func (c *Client) knowledgeFallback(ctx context.Context, query string) string {
	prompt := fmt.Sprintf("Web search is unavailable. Answer from your own knowledge and say so if the answer may be out of date.\n\nQuery: %s", query)
	return c.Chat(ctx, prompt)
}
