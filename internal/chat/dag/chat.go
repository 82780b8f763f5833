package dag

import (
	"context"
	"strings"
)

// Classification is the output of the classify node: a coarse guess at the
// query's intent, used only to pick a canned retrieval context.
type Classification struct {
	Intent     string
	Confidence float64
}

// Reply is the DAG's terminal output, matching the façade's /chat response
// shape.
type Reply struct {
	Answer string
	Status string // "ok" or "paused"
}

// BuildChatGraph returns the three-node pipeline — an acyclic task DAG
// whose nodes are intentionally stubs: classify the query, retrieve a
// stand-in context for its intent, then compose a canned answer. None of
// the nodes call a model; the graph takes no API key and never dials out.
func BuildChatGraph() (*Graph, error) {
	return New([]Node{
		{
			Name: "classify",
			Run: func(ctx context.Context, c *Context) (any, error) {
				q := strings.ToLower(c.Query)
				intent := "general"
				switch {
				case strings.Contains(q, "portfolio") || strings.Contains(q, "balance"):
					intent = "portfolio"
				case strings.Contains(q, "price") || strings.Contains(q, "candle"):
					intent = "market_data"
				case strings.Contains(q, "order") || strings.Contains(q, "trade"):
					intent = "orders"
				}
				return Classification{Intent: intent, Confidence: 0.5}, nil
			},
		},
		{
			Name:    "retrieve_context",
			Depends: []string{"classify"},
			Run: func(ctx context.Context, c *Context) (any, error) {
				class, _ := c.Results["classify"].(Classification)
				switch class.Intent {
				case "portfolio":
					return "strategy portfolio weights are available at GET /strategy/portfolio", nil
				case "market_data":
					return "candle and order book snapshots are available at GET /broker/candles and /broker/order_book", nil
				case "orders":
					return "open orders and trade history are available at GET /broker/open_orders and /broker/trade_history", nil
				default:
					return "no specific retrieval context for this query", nil
				}
			},
		},
		{
			Name:    "answer",
			Depends: []string{"classify", "retrieve_context"},
			Run: func(ctx context.Context, c *Context) (any, error) {
				retrieved, _ := c.Results["retrieve_context"].(string)
				answer := "I can help with broker and strategy queries. " + retrieved
				return Reply{Answer: answer, Status: "ok"}, nil
			},
		},
	})
}

// RunChat runs the chat graph for one query and extracts the terminal
// Reply. Intentionally has no model dependency — see BuildChatGraph.
func RunChat(ctx context.Context, g *Graph, sessionID, query string) (Reply, error) {
	c := &Context{SessionID: sessionID, Query: query}
	if err := g.Run(ctx, c); err != nil {
		return Reply{}, err
	}
	reply, _ := c.Results["answer"].(Reply)
	return reply, nil
}
