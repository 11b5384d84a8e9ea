package avanza

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentType selects the market data family of an orderbook.
type InstrumentType string

const (
	InstrumentStock              InstrumentType = "stock"
	InstrumentFund               InstrumentType = "fund"
	InstrumentBond               InstrumentType = "bond"
	InstrumentOption             InstrumentType = "option"
	InstrumentFutureForward      InstrumentType = "future_forward"
	InstrumentCertificate        InstrumentType = "certificate"
	InstrumentWarrant            InstrumentType = "warrant"
	InstrumentExchangeTradedFund InstrumentType = "exchange_traded_fund"
	InstrumentIndex              InstrumentType = "index"
)

// TransactionType selects which ledger entries GetTransactions returns.
type TransactionType string

const (
	TransactionsOptions         TransactionType = "options"
	TransactionsForex           TransactionType = "forex"
	TransactionsDepositWithdraw TransactionType = "deposit-withdraw"
	TransactionsBuySell         TransactionType = "buy-sell"
	TransactionsDividend        TransactionType = "dividend"
	TransactionsInterest        TransactionType = "interest"
	TransactionsForeignTax      TransactionType = "foreign-tax"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

var errMissingArgument = errors.New("missing argument")

func pathEscape(s string) string { return url.PathEscape(s) }

func required(op string, args ...string) error {
	for _, a := range args {
		if strings.TrimSpace(a) == "" {
			return &APIError{Op: op, Err: errMissingArgument}
		}
	}
	return nil
}

// GetPositions returns every position across all accounts.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	report, err := c.GetPositionsReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.Positions(), nil
}

// GetPositionsReport returns the positions grouped by instrument type,
// including the totals.
func (c *Client) GetPositionsReport(ctx context.Context) (*PositionsReport, error) {
	return fetch(ctx, c, "get positions", NewRequest(http.MethodGet, PositionsPath), DecodePositions)
}

// GetOverview returns a summary of all accounts.
func (c *Client) GetOverview(ctx context.Context) (*Overview, error) {
	return fetch(ctx, c, "get overview", NewRequest(http.MethodGet, OverviewPath), DecodeOverview)
}

// GetAccountOverview returns the detailed view of one account.
func (c *Client) GetAccountOverview(ctx context.Context, accountID string) (*AccountOverview, error) {
	const op = "get account overview"
	if err := required(op, accountID); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodGet, fmt.Sprintf(AccountOverviewPath, pathEscape(accountID)))
	return fetch(ctx, c, op, req, DecodeAccountOverview)
}

// GetDealsAndOrders returns open orders and recent deals.
func (c *Client) GetDealsAndOrders(ctx context.Context) (*DealsAndOrders, error) {
	return fetch(ctx, c, "get deals and orders", NewRequest(http.MethodGet, DealsAndOrdersPath), DecodeDealsAndOrders)
}

// TransactionsQuery narrows GetTransactions. Zero values are omitted.
type TransactionsQuery struct {
	From         time.Time
	To           time.Time
	OrderbookIDs []string
}

// GetTransactions returns ledger entries of the given type.
func (c *Client) GetTransactions(ctx context.Context, typ TransactionType, q TransactionsQuery) (*Transactions, error) {
	const op = "get transactions"
	if err := required(op, string(typ)); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodGet, fmt.Sprintf(TransactionsPath, pathEscape(string(typ))))
	req.Query = url.Values{}
	if !q.From.IsZero() {
		req.Query.Set("from", q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		req.Query.Set("to", q.To.Format("2006-01-02"))
	}
	if len(q.OrderbookIDs) > 0 {
		req.Query.Set("orderbookId", strings.Join(q.OrderbookIDs, ","))
	}
	return fetch(ctx, c, op, req, DecodeTransactions)
}

// GetWatchlists returns the customer's watchlists.
func (c *Client) GetWatchlists(ctx context.Context) ([]Watchlist, error) {
	return fetch(ctx, c, "get watchlists", NewRequest(http.MethodGet, WatchlistsPath), DecodeWatchlists)
}

// AddToWatchlist adds an orderbook to a watchlist.
func (c *Client) AddToWatchlist(ctx context.Context, watchlistID, orderbookID string) error {
	const op = "add to watchlist"
	if err := required(op, watchlistID, orderbookID); err != nil {
		return err
	}
	req := NewRequest(http.MethodPut, fmt.Sprintf(AddToWatchlistPath, pathEscape(watchlistID), pathEscape(orderbookID)))
	_, err := c.do(ctx, op, req)
	return err
}

// GetInstrument returns market data for one orderbook.
func (c *Client) GetInstrument(ctx context.Context, typ InstrumentType, orderbookID string) (*Instrument, error) {
	const op = "get instrument"
	if err := required(op, string(typ), orderbookID); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodGet, fmt.Sprintf(InstrumentPath, pathEscape(string(typ)), pathEscape(orderbookID)))
	return fetch(ctx, c, op, req, DecodeInstrument)
}

// GetOrderbook returns the order depth and trading view of an orderbook.
func (c *Client) GetOrderbook(ctx context.Context, typ InstrumentType, orderbookID string) (*Orderbook, error) {
	const op = "get orderbook"
	if err := required(op, string(typ), orderbookID); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodGet, fmt.Sprintf(OrderbookPath, pathEscape(string(typ))))
	req.Query = url.Values{"orderbookId": {orderbookID}}
	return fetch(ctx, c, op, req, DecodeOrderbook)
}

// GetOrderbooks looks up several orderbooks in one request.
func (c *Client) GetOrderbooks(ctx context.Context, orderbookIDs ...string) ([]OrderbookSummary, error) {
	const op = "get orderbooks"
	if len(orderbookIDs) == 0 {
		return nil, &APIError{Op: op, Err: errMissingArgument}
	}
	if err := required(op, orderbookIDs...); err != nil {
		return nil, err
	}
	ids := make([]string, len(orderbookIDs))
	for i, id := range orderbookIDs {
		ids[i] = pathEscape(id)
	}
	req := NewRequest(http.MethodGet, fmt.Sprintf(OrderbookListPath, strings.Join(ids, ",")))
	return fetch(ctx, c, op, req, DecodeOrderbooks)
}

// GetInspirationLists returns the platform's curated lists.
func (c *Client) GetInspirationLists(ctx context.Context) ([]InspirationList, error) {
	return fetch(ctx, c, "get inspiration lists", NewRequest(http.MethodGet, InspirationListsPath), DecodeInspirationLists)
}

// OrderRequest describes an order to place or an edit to an existing one.
// The client only checks that the identifying fields are present; price and
// volume rules are enforced by the server.
type OrderRequest struct {
	AccountID   string
	OrderbookID string
	Side        OrderSide
	Price       decimal.Decimal
	Volume      decimal.Decimal
	ValidUntil  time.Time
}

func (o OrderRequest) body() map[string]any {
	b := map[string]any{
		"accountId":   o.AccountID,
		"orderbookId": o.OrderbookID,
		"orderType":   string(o.Side),
		"price":       json.Number(o.Price.String()),
		"volume":      json.Number(o.Volume.String()),
	}
	if !o.ValidUntil.IsZero() {
		b["validUntil"] = o.ValidUntil.Format("2006-01-02")
	}
	return b
}

func (o OrderRequest) validate(op string) error {
	if err := required(op, o.AccountID, o.OrderbookID); err != nil {
		return err
	}
	if o.Side != Buy && o.Side != Sell {
		return &APIError{Op: op, Err: fmt.Errorf("side must be %q or %q", Buy, Sell)}
	}
	return nil
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, o OrderRequest) (*OrderResult, error) {
	const op = "place order"
	if err := o.validate(op); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodPost, OrderPath)
	req.Body = o.body()
	return fetch(ctx, c, op, req, DecodeOrderResult)
}

// EditOrder replaces the price, volume or validity of an open order.
func (c *Client) EditOrder(ctx context.Context, typ InstrumentType, orderID string, o OrderRequest) (*OrderResult, error) {
	const op = "edit order"
	if err := required(op, string(typ), orderID); err != nil {
		return nil, err
	}
	if err := o.validate(op); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodPut, fmt.Sprintf(EditOrderPath, pathEscape(string(typ)), pathEscape(orderID)))
	body := o.body()
	body["orderId"] = orderID
	req.Body = body
	return fetch(ctx, c, op, req, DecodeOrderResult)
}

// DeleteOrder cancels an open order.
func (c *Client) DeleteOrder(ctx context.Context, accountID, orderID string) (*OrderResult, error) {
	const op = "delete order"
	if err := required(op, accountID, orderID); err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodDelete, OrderPath)
	req.Query = url.Values{"accountId": {accountID}, "orderId": {orderID}}
	return fetch(ctx, c, op, req, DecodeOrderResult)
}
