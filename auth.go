package avanza

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// submitCredentials performs the first handshake step and returns the
// pending second factor challenge.
func (m *SessionManager) submitCredentials(ctx context.Context, creds Credentials) (Challenge, error) {
	req := NewRequest(http.MethodPost, UserCredentialsPath)
	req.Body = map[string]any{
		"username":           creds.Username,
		"password":           creds.Password,
		"maxInactiveMinutes": m.maxInactiveMinutes,
	}

	m.log.Debug().Str("username", creds.Username).Msg("submitting credentials")
	resp, err := m.transport.Send(ctx, req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && (te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden) {
			return Challenge{}, &AuthError{Kind: ErrInvalidCredentials}
		}
		return Challenge{}, &AuthError{Err: err}
	}

	o, err := parseObject(resp.Body)
	if err != nil {
		return Challenge{}, malformed(req, err)
	}
	var method, transactionID string
	if tf := o.Object("twoFactorLogin", true); tf != nil {
		method = tf.String("method")
		transactionID = tf.ID("transactionId")
	}
	if err := o.Err(); err != nil {
		return Challenge{}, malformed(req, err)
	}

	if method != MethodTOTP {
		return Challenge{}, &AuthError{
			Kind: ErrUnsupportedSecondFactor,
			Err:  fmt.Errorf("server requested %q", method),
		}
	}
	return Challenge{Method: method, TransactionID: transactionID, IssuedAt: m.now()}, nil
}

// submitSecondFactor answers the challenge and builds the session from the
// security token header and the session body.
func (m *SessionManager) submitSecondFactor(ctx context.Context, ch Challenge, code string) (*session, error) {
	req := NewRequest(http.MethodPost, TOTPPath)
	req.Body = map[string]any{
		"method":   ch.Method,
		"totpCode": code,
	}
	req.Cookies = []*http.Cookie{{Name: cookieTransaction, Value: ch.TransactionID}}

	m.log.Debug().Str("method", ch.Method).Msg("submitting second factor")
	resp, err := m.transport.Send(ctx, req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode != 0 {
			if kind := classifySecondFactorFailure(te); kind != nil {
				return nil, &AuthError{Kind: kind}
			}
		}
		return nil, &AuthError{Err: err}
	}

	token := resp.Header.Get(headerSecurityToken)
	if token == "" {
		return nil, malformed(req, &DecodeError{Field: headerSecurityToken, Err: errMissingField})
	}

	o, err := parseObject(resp.Body)
	if err != nil {
		return nil, malformed(req, err)
	}
	s := &session{
		authenticationSession: o.String("authenticationSession"),
		securityToken:         token,
		cookies:               resp.Cookies,
		createdAt:             m.now(),
	}
	if id := o.OptID("customerId"); id != nil {
		s.customerID = *id
	}
	if id := o.OptString("pushSubscriptionId"); id != nil {
		s.pushSubscriptionID = *id
	}
	if done := o.OptBool("registrationComplete"); done != nil {
		s.registrationComplete = *done
	}
	if err := o.Err(); err != nil {
		return nil, malformed(req, err)
	}
	return s, nil
}

// classifySecondFactorFailure maps a rejected second factor response to an
// authentication kind, or nil when the status is not a verdict on the code.
func classifySecondFactorFailure(te *TransportError) error {
	switch te.StatusCode {
	case http.StatusRequestTimeout, http.StatusGone:
		return ErrSecondFactorExpired
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		body := strings.ToLower(string(te.Body))
		if strings.Contains(body, "expired") || strings.Contains(body, "timeout") || strings.Contains(body, "timed out") {
			return ErrSecondFactorExpired
		}
		return ErrSecondFactorRejected
	}
	return nil
}

// malformed reports an unparseable handshake response as a transport failure.
func malformed(req *Request, err error) error {
	return &AuthError{Err: &TransportError{Method: req.Method, Path: req.Path, Err: err}}
}
