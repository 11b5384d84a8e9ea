package avanza

const (
	DefaultBaseURL   = "https://www.avanza.se"
	DefaultUserAgent = "Avanza API client"

	UserCredentialsPath = "/_api/authentication/sessions/usercredentials"
	TOTPPath            = "/_api/authentication/sessions/totp"

	PositionsPath        = "/_mobile/account/positions"
	OverviewPath         = "/_mobile/account/overview"
	AccountOverviewPath  = "/_mobile/account/%s/overview"
	DealsAndOrdersPath   = "/_mobile/account/dealsandorders"
	TransactionsPath     = "/_mobile/account/transactions/%s"
	WatchlistsPath       = "/_mobile/usercontent/watchlist"
	AddToWatchlistPath   = "/_api/usercontent/watchlist/%s/orderbooks/%s"
	InstrumentPath       = "/_mobile/market/%s/%s"
	OrderbookPath        = "/_mobile/order/%s"
	OrderbookListPath    = "/_mobile/market/orderbooklist/%s"
	InspirationListsPath = "/_mobile/marketing/inspirationlist/"
	OrderPath            = "/_api/order"
	EditOrderPath        = "/_api/order/%s/%s"
)

// Session headers and cookies observed on the web client.
const (
	headerSecurityToken         = "X-SecurityToken"
	headerAuthenticationSession = "X-AuthenticationSession"
	cookieTransaction           = "AZAMFATRANSACTION"
)
