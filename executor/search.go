package executor

import (
	"context"
	"fmt"

	"github.com/chatwright/chatwright/model"
)

// SearchItem is one ranked hit from the catalog-search collaborator.
type SearchItem struct {
	Id    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// Searcher is the narrow contract to the external search index.
type Searcher interface {
	Search(ctx context.Context, query string, filters map[string]any, limit int) ([]SearchItem, error)
}

// searchCatalogExecutor queries the product index and offers the top
// hits as quick replies. Results are written under the configured key
// so a later state can resolve the user's selection.
type searchCatalogExecutor struct {
	searcher Searcher
}

func NewSearchCatalogExecutor(searcher Searcher) *searchCatalogExecutor {
	return &searchCatalogExecutor{searcher: searcher}
}

func (e *searchCatalogExecutor) Name() string { return "search-catalog" }

type searchConfig struct {
	Query   string         `mapstructure:"query"`
	Filters map[string]any `mapstructure:"filters"`
	Limit   int            `mapstructure:"limit"`
	Key     string         `mapstructure:"key"`
}

func (e *searchCatalogExecutor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	conf, err := DecodeConfig[searchConfig](inv.Params)
	if err != nil {
		return Result{}, err
	}
	if conf.Limit <= 0 {
		conf.Limit = 5
	}
	items, err := e.searcher.Search(ctx, conf.Query, conf.Filters, conf.Limit)
	if err != nil {
		return Result{Event: model.EVENT_ERROR}, err
	}
	if len(items) == 0 {
		return Result{Event: "empty"}, nil
	}
	replies := make([]model.QuickReply, 0, len(items))
	itemMaps := make([]any, 0, len(items))
	for _, item := range items {
		replies = append(replies, model.QuickReply{
			Label: fmt.Sprintf("%s (%.2f)", item.Title, item.Price),
			Value: item.Id,
		})
		itemMaps = append(itemMaps, map[string]any{
			"id":    item.Id,
			"title": item.Title,
			"price": item.Price,
		})
	}
	res := Result{
		Fragments: model.OutboundPayload{model.OptionsFragment("Here is what I found:", replies)},
	}
	if conf.Key != "" {
		res.Writes = map[string]any{conf.Key: itemMaps}
	}
	return res, nil
}
