// Package orders implements the lookups and actions behind the POS routes.
package orders

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/scan"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

var (
	ErrNotFound = &utils.CustomError{Code: http.StatusNotFound, Message: "order not found"}
	ErrConflict = &utils.CustomError{Code: http.StatusConflict, Message: "order is not in a state that allows this action"}
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// GraphQL is the upstream executor; *shopify.Client implements it.
type GraphQL interface {
	Execute(ctx context.Context, creds shopify.Credentials, query string, variables map[string]interface{}, out interface{}) error
}

type Service struct {
	gql    GraphQL
	parser *scan.Parser
	logger *utils.Logger
}

func NewService(gql GraphQL, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Service{gql: gql, parser: scan.NewParser(), logger: logger}
}

// ListOptions are the order list filters.
type ListOptions struct {
	First   int
	After   string
	Query   string
	Reverse bool
}

func (s *Service) ShopInfo(ctx context.Context, creds shopify.Credentials) (*models.Shop, error) {
	var data shopify.ShopInfoData
	if err := s.gql.Execute(ctx, creds, shopify.ShopInfoQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("shop info: %w", err)
	}
	return toShop(data.Shop), nil
}

func (s *Service) List(ctx context.Context, creds shopify.Credentials, opts ListOptions) (*models.OrderPage, error) {
	vars := map[string]interface{}{
		"first":   clampPage(opts.First),
		"reverse": opts.Reverse,
	}
	if opts.After != "" {
		vars["after"] = opts.After
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		vars["query"] = q
	}

	var data shopify.OrderListData
	if err := s.gql.Execute(ctx, creds, shopify.OrderListQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return &models.OrderPage{
		Orders:      toSummaries(data.Orders.Nodes),
		HasNextPage: data.Orders.PageInfo.HasNextPage,
		EndCursor:   data.Orders.PageInfo.EndCursor,
	}, nil
}

// Get loads one order by global id.
func (s *Service) Get(ctx context.Context, creds shopify.Credentials, id string) (*models.Order, error) {
	o, err := s.fetch(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	return toOrder(o), nil
}

// Search runs a relevance search. Terms the scan parser recognises become
// exact name/id filters; anything else is passed through as free text.
func (s *Service) Search(ctx context.Context, creds shopify.Credentials, term string, first int) ([]models.OrderSummary, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, utils.New(http.StatusBadRequest, "search term is required")
	}

	query := term
	if ident, err := s.parser.Parse(term); err == nil {
		query = filterFor(ident)
	}

	nodes, err := s.search(ctx, creds, query, clampPage(first))
	if err != nil {
		return nil, err
	}
	return toSummaries(nodes), nil
}

// Lookup resolves a scanned identifier to the full order.
func (s *Service) Lookup(ctx context.Context, creds shopify.Credentials, ident scan.Identifier) (*models.Order, error) {
	if ident.Kind == scan.KindID {
		return s.Get(ctx, creds, ident.Value)
	}

	nodes, err := s.search(ctx, creds, filterFor(ident), 5)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if strings.EqualFold(n.Name, ident.Value) {
			return s.Get(ctx, creds, n.ID)
		}
	}
	return nil, fmt.Errorf("%s: %w", ident.Value, ErrNotFound)
}

// ResolveID turns any scan format into a global id without a round trip
// when possible.
func (s *Service) ResolveID(ctx context.Context, creds shopify.Credentials, raw string) (string, error) {
	ident, err := s.parser.Parse(raw)
	if err != nil {
		return "", utils.Wrap(http.StatusBadRequest, "unrecognized order identifier", err)
	}
	if ident.Kind == scan.KindID {
		return ident.Value, nil
	}
	o, err := s.Lookup(ctx, creds, ident)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

// Parser exposes the identifier parser used by the service.
func (s *Service) Parser() *scan.Parser { return s.parser }

func (s *Service) search(ctx context.Context, creds shopify.Credentials, query string, first int) ([]shopify.OrderNode, error) {
	var data shopify.OrderListData
	vars := map[string]interface{}{"first": first, "query": query}
	if err := s.gql.Execute(ctx, creds, shopify.OrderSearchQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	return data.Orders.Nodes, nil
}

func (s *Service) fetch(ctx context.Context, creds shopify.Credentials, id string) (*shopify.Order, error) {
	if scan.NumericID(id) == "" {
		return nil, utils.New(http.StatusBadRequest, "order id must be a gid://shopify/Order/ id")
	}
	var data shopify.OrderByIDData
	if err := s.gql.Execute(ctx, creds, shopify.OrderByIDQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if data.Order == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return data.Order, nil
}

func filterFor(ident scan.Identifier) string {
	if ident.Kind == scan.KindID {
		return shopify.SearchTerm("id", scan.NumericID(ident.Value))
	}
	return shopify.SearchTerm("name", ident.Value)
}

func clampPage(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}
