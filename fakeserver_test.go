package avanza

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testUser   = "alice"
	testPass   = "correct"
	testSecret = "JBSWY3DPEHPK3PXP"
)

const positionsFixture = `{
	"instrumentPositions": [
		{
			"instrumentType": "STOCK",
			"positions": [
				{
					"accountId": "1234567",
					"accountName": "ISK",
					"accountType": "Investeringssparkonto",
					"acquiredValue": 10450.5,
					"averageAcquiredPrice": 104.505,
					"change": 1.2,
					"changePercent": 0.98,
					"currency": "SEK",
					"depositable": false,
					"flagCode": "SE",
					"lastPrice": 123.4,
					"lastPriceUpdated": "2024-03-01T16:29:59.000+0100",
					"name": "Volvo B",
					"orderbookId": "5269",
					"profit": 1889.5,
					"profitPercent": 18.08,
					"tradable": true,
					"value": 12340,
					"volume": 100,
					"someNewField": {"nested": true}
				}
			],
			"todaysProfitPercent": 0.98,
			"totalProfitPercent": 18.08,
			"totalProfitValue": 1889.5,
			"totalValue": 12340
		},
		{
			"instrumentType": "FUND",
			"positions": [
				{
					"accountId": 1234567,
					"averageAcquiredPrice": 250.1,
					"currency": "SEK",
					"orderbookId": 325406,
					"value": 5012.75,
					"volume": 20.0431
				}
			]
		}
	],
	"totalOwnCapital": 100000,
	"totalProfit": 40000,
	"totalBuyingPower": 4000,
	"totalBalance": 4000,
	"totalProfitPercent": 10
}`

// fakeAvanza imitates the login handshake and the authenticated endpoints.
type fakeAvanza struct {
	t   *testing.T
	srv *httptest.Server

	mu              sync.Mutex
	method          string
	transactionID   string
	sessionID       string
	securityToken   string
	expireSessions  bool
	expireChallenge bool
	failures        map[string][]int
	calls           map[string]int
	bodies          map[string]map[string]any
	fixtures        map[string]string
}

func newFakeAvanza(t *testing.T) *fakeAvanza {
	t.Helper()
	f := &fakeAvanza{
		t:        t,
		method:   MethodTOTP,
		failures: make(map[string][]int),
		calls:    make(map[string]int),
		bodies:   make(map[string]map[string]any),
		fixtures: map[string]string{PositionsPath: positionsFixture},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+UserCredentialsPath, f.handleCredentials)
	mux.HandleFunc("POST "+TOTPPath, f.handleTOTP)
	mux.HandleFunc("/", f.handleAPI)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// client returns a client pointed at the fake server.
func (f *fakeAvanza) client(opts ...Option) *Client {
	return NewClient(append([]Option{WithBaseURL(f.srv.URL)}, opts...)...)
}

// login authenticates c with the correct credentials and code.
func (f *fakeAvanza) login(c *Client) {
	f.t.Helper()
	err := c.Authenticate(context.Background(), Credentials{Username: testUser, Password: testPass}, NewTOTPProvider(testSecret))
	require.NoError(f.t, err)
}

func (f *fakeAvanza) set(fn func(f *fakeAvanza)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAvanza) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAvanza) body(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeAvanza) record(r *http.Request) {
	f.calls[r.URL.Path]++
	if r.Body == nil || r.ContentLength == 0 {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		f.bodies[r.URL.Path] = body
	}
}

func (f *fakeAvanza) handleCredentials(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)

	body := f.bodies[r.URL.Path]
	if body["username"] != testUser || body["password"] != testPass {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.transactionID = uuid.NewString()
	writeJSON(w, map[string]any{
		"twoFactorLogin": map[string]any{"transactionId": f.transactionID, "method": f.method},
	})
}

func (f *fakeAvanza) handleTOTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)

	tx, err := r.Cookie(cookieTransaction)
	if err != nil || tx.Value != f.transactionID {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.expireChallenge {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Transaction expired"}`))
		return
	}
	code, _ := f.bodies[r.URL.Path]["totpCode"].(string)
	if !totp.Validate(code, testSecret) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid code"}`))
		return
	}

	f.sessionID = uuid.NewString()
	f.securityToken = uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: "csid", Value: f.sessionID})
	w.Header().Set(headerSecurityToken, f.securityToken)
	writeJSON(w, map[string]any{
		"authenticationSession": f.sessionID,
		"pushSubscriptionId":    uuid.NewString(),
		"customerId":            "123232",
		"registrationComplete":  true,
	})
}

func (f *fakeAvanza) handleAPI(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)

	if f.sessionID == "" ||
		r.Header.Get(headerAuthenticationSession) != f.sessionID ||
		r.Header.Get(headerSecurityToken) != f.securityToken ||
		f.expireSessions {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if queue := f.failures[r.URL.Path]; len(queue) > 0 {
		f.failures[r.URL.Path] = queue[1:]
		w.WriteHeader(queue[0])
		return
	}
	fixture, ok := f.fixtures[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(fixture))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
