package avanza

import (
	"time"

	"github.com/shopspring/decimal"
)

// Optional fields are pointers: nil means the server did not send the field
// (or sent null).

// Position is one holding in an account.
type Position struct {
	AccountID            string
	AccountName          *string
	AccountType          *string
	OrderbookID          string
	Name                 *string
	InstrumentType       string
	Volume               decimal.Decimal
	AverageAcquiredPrice decimal.Decimal
	AcquiredValue        *decimal.Decimal
	Value                decimal.Decimal
	Currency             string
	LastPrice            *decimal.Decimal
	LastPriceUpdated     *time.Time
	Change               *decimal.Decimal
	ChangePercent        *decimal.Decimal
	Profit               *decimal.Decimal
	ProfitPercent        *decimal.Decimal
	Depositable          *bool
	Tradable             *bool
	FlagCode             *string
}

// InstrumentPositions groups positions by instrument type.
type InstrumentPositions struct {
	InstrumentType      string
	Positions           []Position
	TodaysProfitPercent *decimal.Decimal
	TotalProfitPercent  *decimal.Decimal
	TotalProfitValue    *decimal.Decimal
	TotalValue          *decimal.Decimal
}

// PositionsReport is the full positions payload including totals.
type PositionsReport struct {
	InstrumentPositions []InstrumentPositions
	TotalProfit         *decimal.Decimal
	TotalProfitPercent  *decimal.Decimal
	TotalBalance        *decimal.Decimal
	TotalOwnCapital     *decimal.Decimal
	TotalBuyingPower    *decimal.Decimal
}

// Positions flattens every group into a single list.
func (r *PositionsReport) Positions() []Position {
	out := make([]Position, 0)
	for _, g := range r.InstrumentPositions {
		out = append(out, g.Positions...)
	}
	return out
}

// DecodePositions decodes the positions payload.
func DecodePositions(body []byte) (*PositionsReport, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	r := &PositionsReport{
		TotalProfit:        o.OptDecimal("totalProfit"),
		TotalProfitPercent: o.OptDecimal("totalProfitPercent"),
		TotalBalance:       o.OptDecimal("totalBalance"),
		TotalOwnCapital:    o.OptDecimal("totalOwnCapital"),
		TotalBuyingPower:   o.OptDecimal("totalBuyingPower"),
	}
	for _, g := range o.Objects("instrumentPositions", true) {
		group := InstrumentPositions{
			InstrumentType:      g.String("instrumentType"),
			TodaysProfitPercent: g.OptDecimal("todaysProfitPercent"),
			TotalProfitPercent:  g.OptDecimal("totalProfitPercent"),
			TotalProfitValue:    g.OptDecimal("totalProfitValue"),
			TotalValue:          g.OptDecimal("totalValue"),
		}
		for _, p := range g.Objects("positions", true) {
			pos := decodePosition(p)
			pos.InstrumentType = group.InstrumentType
			group.Positions = append(group.Positions, pos)
		}
		r.InstrumentPositions = append(r.InstrumentPositions, group)
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

func decodePosition(p *object) Position {
	return Position{
		AccountID:            p.ID("accountId"),
		AccountName:          p.OptString("accountName"),
		AccountType:          p.OptString("accountType"),
		OrderbookID:          p.ID("orderbookId"),
		Name:                 p.OptString("name"),
		Volume:               p.Decimal("volume"),
		AverageAcquiredPrice: p.Decimal("averageAcquiredPrice"),
		AcquiredValue:        p.OptDecimal("acquiredValue"),
		Value:                p.Decimal("value"),
		Currency:             p.String("currency"),
		LastPrice:            p.OptDecimal("lastPrice"),
		LastPriceUpdated:     p.OptTime("lastPriceUpdated"),
		Change:               p.OptDecimal("change"),
		ChangePercent:        p.OptDecimal("changePercent"),
		Profit:               p.OptDecimal("profit"),
		ProfitPercent:        p.OptDecimal("profitPercent"),
		Depositable:          p.OptBool("depositable"),
		Tradable:             p.OptBool("tradable"),
		FlagCode:             p.OptString("flagCode"),
	}
}

// AccountSummary is one account as listed in the overview.
type AccountSummary struct {
	AccountID          string
	Name               *string
	AccountType        *string
	TotalBalance       *decimal.Decimal
	OwnCapital         *decimal.Decimal
	BuyingPower        *decimal.Decimal
	Performance        *decimal.Decimal
	PerformancePercent *decimal.Decimal
	Depositable        *bool
	Active             *bool
}

// Overview summarises every account of the customer.
type Overview struct {
	Accounts                []AccountSummary
	TotalBalance            *decimal.Decimal
	TotalBuyingPower        *decimal.Decimal
	TotalOwnCapital         *decimal.Decimal
	TotalPerformance        *decimal.Decimal
	TotalPerformancePercent *decimal.Decimal
}

// DecodeOverview decodes the account overview list.
func DecodeOverview(body []byte) (*Overview, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	ov := &Overview{
		TotalBalance:            o.OptDecimal("totalBalance"),
		TotalBuyingPower:        o.OptDecimal("totalBuyingPower"),
		TotalOwnCapital:         o.OptDecimal("totalOwnCapital"),
		TotalPerformance:        o.OptDecimal("totalPerformance"),
		TotalPerformancePercent: o.OptDecimal("totalPerformancePercent"),
	}
	for _, a := range o.Objects("accounts", false) {
		ov.Accounts = append(ov.Accounts, AccountSummary{
			AccountID:          a.ID("accountId"),
			Name:               a.OptString("name"),
			AccountType:        a.OptString("accountType"),
			TotalBalance:       a.OptDecimal("totalBalance"),
			OwnCapital:         a.OptDecimal("ownCapital"),
			BuyingPower:        a.OptDecimal("buyingPower"),
			Performance:        a.OptDecimal("performance"),
			PerformancePercent: a.OptDecimal("performancePercent"),
			Depositable:        a.OptBool("depositable"),
			Active:             a.OptBool("active"),
		})
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return ov, nil
}

// AccountOverview is the detailed view of a single account.
type AccountOverview struct {
	AccountID              string
	AccountType            *string
	CourtageClass          *string
	TotalBalance           *decimal.Decimal
	OwnCapital             *decimal.Decimal
	BuyingPower            *decimal.Decimal
	AvailableForWithdrawal *decimal.Decimal
	TotalProfit            *decimal.Decimal
	TotalProfitPercent     *decimal.Decimal
	Performance            *decimal.Decimal
	PerformancePercent     *decimal.Decimal
	Interest               *decimal.Decimal
}

// DecodeAccountOverview decodes a single account overview.
func DecodeAccountOverview(body []byte) (*AccountOverview, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	a := &AccountOverview{
		AccountID:              o.ID("accountId"),
		AccountType:            o.OptString("accountType"),
		CourtageClass:          o.OptString("courtageClass"),
		TotalBalance:           o.OptDecimal("totalBalance"),
		OwnCapital:             o.OptDecimal("ownCapital"),
		BuyingPower:            o.OptDecimal("buyingPower"),
		AvailableForWithdrawal: o.OptDecimal("availableSuminAccountCurrency"),
		TotalProfit:            o.OptDecimal("totalProfit"),
		TotalProfitPercent:     o.OptDecimal("totalProfitPercent"),
		Performance:            o.OptDecimal("performance"),
		PerformancePercent:     o.OptDecimal("performancePercent"),
		Interest:               o.OptDecimal("interestRate"),
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// Order is an open order.
type Order struct {
	OrderID           string
	AccountID         string
	OrderbookID       string
	Side              string
	Price             *decimal.Decimal
	Volume            *decimal.Decimal
	Sum               *decimal.Decimal
	Status            *string
	StatusDescription *string
	InstrumentName    *string
	ValidUntil        *time.Time
	OrderDateTime     *time.Time
	Modifiable        *bool
	Deletable         *bool
}

// Deal is an executed trade.
type Deal struct {
	DealID      string
	OrderID     *string
	AccountID   *string
	OrderbookID string
	Side        *string
	Price       *decimal.Decimal
	Volume      *decimal.Decimal
	Sum         *decimal.Decimal
	DealTime    *time.Time
}

// DealsAndOrders lists the customer's open orders and recent deals.
type DealsAndOrders struct {
	Orders         []Order
	Deals          []Deal
	ReservedAmount *decimal.Decimal
}

// DecodeDealsAndOrders decodes the deals and orders payload.
func DecodeDealsAndOrders(body []byte) (*DealsAndOrders, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	d := &DealsAndOrders{ReservedAmount: o.OptDecimal("reservedAmount")}
	for _, v := range o.Objects("orders", false) {
		order := Order{
			OrderID:           v.ID("orderId"),
			Side:              v.String("type"),
			Price:             v.OptDecimal("price"),
			Volume:            v.OptDecimal("volume"),
			Sum:               v.OptDecimal("sum"),
			Status:            v.OptString("status"),
			StatusDescription: v.OptString("statusDescription"),
			ValidUntil:        v.OptTime("validDate"),
			OrderDateTime:     v.OptTime("orderDateTime"),
			Modifiable:        v.OptBool("modifyAllowed"),
			Deletable:         v.OptBool("deletable"),
		}
		if acc := v.Object("account", true); acc != nil {
			order.AccountID = acc.ID("id")
		}
		if ob := v.Object("orderbook", true); ob != nil {
			order.OrderbookID = ob.ID("id")
			order.InstrumentName = ob.OptString("name")
		}
		d.Orders = append(d.Orders, order)
	}
	for _, v := range o.Objects("deals", false) {
		deal := Deal{
			DealID:   v.ID("dealId"),
			OrderID:  v.OptID("orderId"),
			Side:     v.OptString("type"),
			Price:    v.OptDecimal("price"),
			Volume:   v.OptDecimal("volume"),
			Sum:      v.OptDecimal("sum"),
			DealTime: v.OptTime("dealTime"),
		}
		if acc := v.Object("account", false); acc != nil {
			deal.AccountID = acc.OptID("id")
		}
		if ob := v.Object("orderbook", true); ob != nil {
			deal.OrderbookID = ob.ID("id")
		}
		d.Deals = append(d.Deals, deal)
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Transaction is one entry in the account ledger.
type Transaction struct {
	ID               string
	TransactionType  string
	AccountID        *string
	OrderbookID      *string
	Description      *string
	Amount           *decimal.Decimal
	Price            *decimal.Decimal
	Volume           *decimal.Decimal
	Currency         *string
	VerificationDate *time.Time
}

// Transactions is a page of ledger entries.
type Transactions struct {
	Transactions []Transaction
	Total        *int64
}

// DecodeTransactions decodes the transactions payload.
func DecodeTransactions(body []byte) (*Transactions, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	t := &Transactions{Total: o.OptInt("totalNumberOfTransactions")}
	for _, v := range o.Objects("transactions", true) {
		tx := Transaction{
			ID:               v.ID("id"),
			TransactionType:  v.String("transactionType"),
			Description:      v.OptString("description"),
			Amount:           v.OptDecimal("amount"),
			Price:            v.OptDecimal("price"),
			Volume:           v.OptDecimal("volume"),
			Currency:         v.OptString("currency"),
			VerificationDate: v.OptTime("verificationDate"),
		}
		if acc := v.Object("account", false); acc != nil {
			tx.AccountID = acc.OptID("id")
		}
		if ob := v.Object("orderbook", false); ob != nil {
			tx.OrderbookID = ob.OptID("id")
		}
		t.Transactions = append(t.Transactions, tx)
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Watchlist is a named list of orderbooks.
type Watchlist struct {
	ID           string
	Name         string
	Editable     *bool
	OrderbookIDs []string
}

// DecodeWatchlists decodes the watchlist array.
func DecodeWatchlists(body []byte) ([]Watchlist, error) {
	items, err := parseArray(body)
	if err != nil {
		return nil, err
	}
	out := make([]Watchlist, 0, len(items))
	for _, v := range items {
		out = append(out, Watchlist{
			ID:           v.ID("id"),
			Name:         v.String("name"),
			Editable:     v.OptBool("editable"),
			OrderbookIDs: v.Strings("orderbooks"),
		})
	}
	if len(items) > 0 {
		if err := items[0].Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Instrument is the market data view of a single orderbook.
type Instrument struct {
	ID               string
	Name             string
	Currency         *string
	ISIN             *string
	TickerSymbol     *string
	FlagCode         *string
	LastPrice        *decimal.Decimal
	Change           *decimal.Decimal
	ChangePercent    *decimal.Decimal
	HighestPrice     *decimal.Decimal
	LowestPrice      *decimal.Decimal
	LastPriceUpdated *time.Time
	Tradable         *bool
}

// DecodeInstrument decodes an instrument payload.
func DecodeInstrument(body []byte) (*Instrument, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	in := &Instrument{
		ID:               o.ID("id"),
		Name:             o.String("name"),
		Currency:         o.OptString("currency"),
		ISIN:             o.OptString("isin"),
		TickerSymbol:     o.OptString("tickerSymbol"),
		FlagCode:         o.OptString("flagCode"),
		LastPrice:        o.OptDecimal("lastPrice"),
		Change:           o.OptDecimal("change"),
		ChangePercent:    o.OptDecimal("changePercent"),
		HighestPrice:     o.OptDecimal("highestPrice"),
		LowestPrice:      o.OptDecimal("lowestPrice"),
		LastPriceUpdated: o.OptTime("lastPriceUpdated"),
		Tradable:         o.OptBool("tradable"),
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return in, nil
}

// Quote is one side of an order depth level.
type Quote struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// OrderDepthLevel pairs the best buy and sell quote at one depth.
type OrderDepthLevel struct {
	Buy  *Quote
	Sell *Quote
}

// Orderbook is the trading view of an instrument.
type Orderbook struct {
	OrderbookID   string
	Name          *string
	Currency      *string
	LastPrice     *decimal.Decimal
	Change        *decimal.Decimal
	ChangePercent *decimal.Decimal
	Tradable      *bool
	Levels        []OrderDepthLevel
}

// DecodeOrderbook decodes the order page payload.
func DecodeOrderbook(body []byte) (*Orderbook, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	ob := &Orderbook{}
	if v := o.Object("orderbook", true); v != nil {
		ob.OrderbookID = v.ID("id")
		ob.Name = v.OptString("name")
		ob.Currency = v.OptString("currency")
		ob.LastPrice = v.OptDecimal("lastPrice")
		ob.Change = v.OptDecimal("change")
		ob.ChangePercent = v.OptDecimal("changePercent")
		ob.Tradable = v.OptBool("tradable")
	}
	for _, lvl := range o.Objects("orderDepthLevels", false) {
		ob.Levels = append(ob.Levels, OrderDepthLevel{
			Buy:  decodeQuote(lvl.Object("buy", false)),
			Sell: decodeQuote(lvl.Object("sell", false)),
		})
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return ob, nil
}

func decodeQuote(v *object) *Quote {
	if v == nil {
		return nil
	}
	return &Quote{Price: v.Decimal("price"), Volume: v.Decimal("volume")}
}

// OrderbookSummary is one entry of an orderbook list lookup.
type OrderbookSummary struct {
	ID             string
	Name           string
	InstrumentType *string
	Currency       *string
	LastPrice      *decimal.Decimal
	ChangePercent  *decimal.Decimal
	Tradable       *bool
}

// DecodeOrderbooks decodes the orderbook list array.
func DecodeOrderbooks(body []byte) ([]OrderbookSummary, error) {
	items, err := parseArray(body)
	if err != nil {
		return nil, err
	}
	out := make([]OrderbookSummary, 0, len(items))
	for _, v := range items {
		out = append(out, OrderbookSummary{
			ID:             v.ID("id"),
			Name:           v.String("name"),
			InstrumentType: v.OptString("instrumentType"),
			Currency:       v.OptString("currency"),
			LastPrice:      v.OptDecimal("lastPrice"),
			ChangePercent:  v.OptDecimal("changePercent"),
			Tradable:       v.OptBool("tradable"),
		})
	}
	if len(items) > 0 {
		if err := items[0].Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InspirationList is a curated list published by the platform.
type InspirationList struct {
	ID           string
	Name         string
	Description  *string
	OrderbookIDs []string
}

// DecodeInspirationLists decodes the inspiration list array.
func DecodeInspirationLists(body []byte) ([]InspirationList, error) {
	items, err := parseArray(body)
	if err != nil {
		return nil, err
	}
	out := make([]InspirationList, 0, len(items))
	for _, v := range items {
		out = append(out, InspirationList{
			ID:           v.ID("id"),
			Name:         v.String("name"),
			Description:  v.OptString("information"),
			OrderbookIDs: v.Strings("orderbooks"),
		})
	}
	if len(items) > 0 {
		if err := items[0].Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OrderResult is the server's answer to a place, edit or delete request.
type OrderResult struct {
	Status  string
	OrderID *string
	Message *string
}

// DecodeOrderResult decodes an order request answer.
func DecodeOrderResult(body []byte) (*OrderResult, error) {
	o, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	r := &OrderResult{
		Status:  o.String("orderRequestStatus"),
		OrderID: o.OptID("orderId"),
		Message: o.OptString("message"),
	}
	if err := o.Err(); err != nil {
		return nil, err
	}
	return r, nil
}
