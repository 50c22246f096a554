package botserver

import (
	"context"
	"errors"
	"sync"

	"github.com/anatolykoptev/go_zeroview/internal/engine"
	"github.com/anatolykoptev/go_zeroview/internal/engine/bot"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 4

// RegisterTools registers the bot's tools on the given MCP server:
// zeroview_status, zeroview_refill, zeroview_publish, zeroview_search.
// Calls that touch the stores are serialised.
func RegisterTools(server *mcp.Server, b *bot.Bot) {
	r := &runner{bot: b}
	registerStatus(server, r)
	registerRefill(server, r)
	registerPublish(server, r)
	registerSearch(server, r)
}

// runner lets one refill or publish run at a time.
type runner struct {
	mu  sync.Mutex
	bot *bot.Bot
}

func registerStatus(server *mcp.Server, r *runner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zeroview_status",
		Description: "Report how many links are waiting to be published and how many search terms are left in the index.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.StatusInput) (*mcp.CallToolResult, *engine.StatusOutput, error) {
		out, err := r.bot.Status(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerRefill(server *mcp.Server, r *runner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zeroview_refill",
		Description: "Scan n search terms for YouTube videos with zero views and store what is found. Half the terms come from the search-term index, half are random two-word combinations. If the index is empty it is refreshed and nothing is scanned. Set if_below to skip the refill while enough links are stored.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.RefillInput) (*mcp.CallToolResult, *engine.RefillOutput, error) {
		if input.N <= 0 {
			return nil, nil, errors.New("n must be positive")
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		out, err := r.bot.RefillIfLow(ctx, input.N, input.IfBelow)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerPublish(server *mcp.Server, r *runner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zeroview_publish",
		Description: "Pop a random stored link, recheck that it still has zero views and post it. Links that gained views are discarded. With dry_run the post text is returned instead of posted; the link is consumed either way.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.PublishInput) (*mcp.CallToolResult, *engine.PublishOutput, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		out, err := r.bot.PublishNext(ctx, input.DryRun)
		if errors.Is(err, engine.ErrStoreEmpty) {
			return nil, out, nil
		}
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerSearch(server *mcp.Server, r *runner) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zeroview_search",
		Description: "Dry run: scan n random words for zero-view videos and return the results without storing them. Uses YouTube API quota.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.SearchInput) (*mcp.CallToolResult, *engine.SearchOutput, error) {
		if input.N <= 0 {
			return nil, nil, errors.New("n must be positive")
		}
		out, err := r.bot.Search(ctx, input.N)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}
