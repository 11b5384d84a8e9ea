package avanza

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loggedIn returns a fake server with the given fixtures and an
// authenticated client for it.
func loggedIn(t *testing.T, fixtures map[string]string) (*fakeAvanza, *Client) {
	t.Helper()
	f := newFakeAvanza(t)
	f.set(func(f *fakeAvanza) {
		for path, body := range fixtures {
			f.fixtures[path] = body
		}
	})
	c := f.client()
	f.login(c)
	return f, c
}

func TestGetPositionsReport(t *testing.T) {
	_, c := loggedIn(t, nil)

	r, err := c.GetPositionsReport(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.InstrumentPositions, 2)
	assert.Equal(t, "40000", r.TotalProfit.String())
}

func TestGetOverview(t *testing.T) {
	_, c := loggedIn(t, map[string]string{
		OverviewPath: `{"accounts":[{"accountId":"1","name":"ISK"}],"totalBalance":10}`,
	})

	ov, err := c.GetOverview(context.Background())
	require.NoError(t, err)
	require.Len(t, ov.Accounts, 1)
	assert.Equal(t, "1", ov.Accounts[0].AccountID)
}

func TestGetAccountOverview(t *testing.T) {
	f, c := loggedIn(t, map[string]string{
		"/_mobile/account/1234567/overview": `{"accountId":"1234567","ownCapital":100}`,
	})

	a, err := c.GetAccountOverview(context.Background(), "1234567")
	require.NoError(t, err)
	assert.Equal(t, "100", a.OwnCapital.String())
	assert.Equal(t, 1, f.callCount("/_mobile/account/1234567/overview"))

	_, err = c.GetAccountOverview(context.Background(), "")
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestGetDealsAndOrders(t *testing.T) {
	_, c := loggedIn(t, map[string]string{DealsAndOrdersPath: dealsAndOrdersFixture})

	d, err := c.GetDealsAndOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.Orders, 1)
	assert.Len(t, d.Deals, 1)
}

func TestGetTransactions_Query(t *testing.T) {
	var got url.Values
	f := newFakeAvanza(t)
	f.set(func(f *fakeAvanza) {
		f.fixtures["/_mobile/account/transactions/dividend"] = `{"transactions":[]}`
	})
	// Capture the query through a wrapping transport.
	c := NewClient(WithTransport(transportFunc(func(ctx context.Context, r *Request) (*Response, error) {
		if r.Path == "/_mobile/account/transactions/dividend" {
			got = r.Query
		}
		return NewHTTPTransport(f.srv.URL).Send(ctx, r)
	})))
	f.login(c)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	tx, err := c.GetTransactions(context.Background(), TransactionsDividend, TransactionsQuery{
		From:         from,
		To:           to,
		OrderbookIDs: []string{"5269", "325406"},
	})
	require.NoError(t, err)
	assert.Empty(t, tx.Transactions)

	assert.Equal(t, "2024-01-01", got.Get("from"))
	assert.Equal(t, "2024-03-31", got.Get("to"))
	assert.Equal(t, "5269,325406", got.Get("orderbookId"))

	_, err = c.GetTransactions(context.Background(), "", TransactionsQuery{})
	assert.ErrorIs(t, err, errMissingArgument)
}

type transportFunc func(ctx context.Context, r *Request) (*Response, error)

func (f transportFunc) Send(ctx context.Context, r *Request) (*Response, error) { return f(ctx, r) }

func TestGetWatchlists(t *testing.T) {
	_, c := loggedIn(t, map[string]string{
		WatchlistsPath: `[{"id":"w1","name":"Mine","orderbooks":["5269"]}]`,
	})

	w, err := c.GetWatchlists(context.Background())
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.Equal(t, "Mine", w[0].Name)
}

func TestAddToWatchlist(t *testing.T) {
	path := "/_api/usercontent/watchlist/w1/orderbooks/5269"
	f, c := loggedIn(t, map[string]string{path: ``})

	require.NoError(t, c.AddToWatchlist(context.Background(), "w1", "5269"))
	assert.Equal(t, 1, f.callCount(path))

	err := c.AddToWatchlist(context.Background(), "w1", "")
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestGetInstrument(t *testing.T) {
	_, c := loggedIn(t, map[string]string{
		"/_mobile/market/stock/5269": `{"id":"5269","name":"Volvo B","lastPrice":250}`,
	})

	in, err := c.GetInstrument(context.Background(), InstrumentStock, "5269")
	require.NoError(t, err)
	assert.Equal(t, "Volvo B", in.Name)

	_, err = c.GetInstrument(context.Background(), "", "5269")
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestGetOrderbook(t *testing.T) {
	_, c := loggedIn(t, map[string]string{
		"/_mobile/order/stock": `{"orderbook":{"id":"5269"},"orderDepthLevels":[]}`,
	})

	ob, err := c.GetOrderbook(context.Background(), InstrumentStock, "5269")
	require.NoError(t, err)
	assert.Equal(t, "5269", ob.OrderbookID)
}

func TestGetOrderbooks(t *testing.T) {
	_, c := loggedIn(t, map[string]string{
		"/_mobile/market/orderbooklist/5269,325406": `[{"id":"5269","name":"Volvo B"},{"id":"325406","name":"Fund"}]`,
	})

	obs, err := c.GetOrderbooks(context.Background(), "5269", "325406")
	require.NoError(t, err)
	assert.Len(t, obs, 2)

	_, err = c.GetOrderbooks(context.Background())
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestGetInspirationLists(t *testing.T) {
	_, c := loggedIn(t, map[string]string{
		InspirationListsPath: `[{"id":"1","name":"Populära"}]`,
	})

	lists, err := c.GetInspirationLists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Populära", lists[0].Name)
}

func TestPlaceOrder(t *testing.T) {
	f, c := loggedIn(t, map[string]string{
		OrderPath: `{"orderRequestStatus":"SUCCESS","orderId":"o1"}`,
	})

	res, err := c.PlaceOrder(context.Background(), OrderRequest{
		AccountID:   "1234567",
		OrderbookID: "5269",
		Side:        Buy,
		Price:       decimal.RequireFromString("250.10"),
		Volume:      decimal.NewFromInt(10),
		ValidUntil:  time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", res.Status)
	assert.Equal(t, "o1", *res.OrderID)

	body := f.body(OrderPath)
	assert.Equal(t, "1234567", body["accountId"])
	assert.Equal(t, "5269", body["orderbookId"])
	assert.Equal(t, "BUY", body["orderType"])
	assert.Equal(t, 250.1, body["price"])
	assert.Equal(t, float64(10), body["volume"])
	assert.Equal(t, "2024-03-08", body["validUntil"])
}

func TestPlaceOrder_Validation(t *testing.T) {
	f, c := loggedIn(t, nil)

	_, err := c.PlaceOrder(context.Background(), OrderRequest{OrderbookID: "5269", Side: Buy})
	assert.ErrorIs(t, err, errMissingArgument)

	_, err = c.PlaceOrder(context.Background(), OrderRequest{AccountID: "1", OrderbookID: "5269", Side: "HOLD"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "place order", apiErr.Op)

	assert.Zero(t, f.callCount(OrderPath))
}

func TestEditOrder(t *testing.T) {
	path := "/_api/order/stock/o1"
	f, c := loggedIn(t, map[string]string{path: `{"orderRequestStatus":"SUCCESS","orderId":"o1"}`})

	_, err := c.EditOrder(context.Background(), InstrumentStock, "o1", OrderRequest{
		AccountID: "1", OrderbookID: "5269", Side: Sell, Price: decimal.NewFromInt(1), Volume: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", f.body(path)["orderId"])
	assert.Equal(t, "SELL", f.body(path)["orderType"])

	_, err = c.EditOrder(context.Background(), InstrumentStock, "", OrderRequest{})
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestDeleteOrder(t *testing.T) {
	var mu sync.Mutex
	var query url.Values
	srv := newFakeAvanza(t)
	srv.set(func(f *fakeAvanza) { f.fixtures[OrderPath] = `{"orderRequestStatus":"SUCCESS"}` })
	c := NewClient(WithTransport(transportFunc(func(ctx context.Context, r *Request) (*Response, error) {
		if r.Method == http.MethodDelete {
			mu.Lock()
			query = r.Query
			mu.Unlock()
		}
		return NewHTTPTransport(srv.srv.URL).Send(ctx, r)
	})))
	srv.login(c)

	res, err := c.DeleteOrder(context.Background(), "1234567", "o1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", res.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "1234567", query.Get("accountId"))
	assert.Equal(t, "o1", query.Get("orderId"))

	_, err = c.DeleteOrder(context.Background(), "", "o1")
	assert.ErrorIs(t, err, errMissingArgument)
}

func TestOperations_RequireSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()

	ops := map[string]func() error{
		"overview":    func() error { _, err := c.GetOverview(ctx); return err },
		"deals":       func() error { _, err := c.GetDealsAndOrders(ctx); return err },
		"watchlists":  func() error { _, err := c.GetWatchlists(ctx); return err },
		"inspiration": func() error { _, err := c.GetInspirationLists(ctx); return err },
		"instrument":  func() error { _, err := c.GetInstrument(ctx, InstrumentFund, "1"); return err },
		"orderbooks":  func() error { _, err := c.GetOrderbooks(ctx, "1"); return err },
		"delete":      func() error { _, err := c.DeleteOrder(ctx, "1", "2"); return err },
	}
	for name, op := range ops {
		assert.ErrorIs(t, op(), ErrNotAuthenticated, name)
	}
}
