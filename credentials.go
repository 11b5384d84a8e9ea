package avanza

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pquerna/otp/totp"
)

// MethodTOTP is the only second factor method the client can answer.
const MethodTOTP = "TOTP"

// Credentials holds the username and password for the first login step.
type Credentials struct {
	Username string
	Password string
}

// Validate reports ErrMissingCredentials unless both fields are set.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// String never prints the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: <redacted>}", c.Username)
}

// GoString keeps %#v from leaking the password too.
func (c Credentials) GoString() string { return c.String() }

// Challenge is the pending second factor request returned by the server after
// the credentials were accepted.
type Challenge struct {
	Method        string
	TransactionID string
	IssuedAt      time.Time
}

// SecondFactorProvider supplies the code for a pending challenge. It may block
// (for example while a user types a code) and must honour ctx.
type SecondFactorProvider interface {
	SecondFactor(ctx context.Context, ch Challenge) (string, error)
}

// SecondFactorFunc adapts a function to SecondFactorProvider.
type SecondFactorFunc func(ctx context.Context, ch Challenge) (string, error)

func (f SecondFactorFunc) SecondFactor(ctx context.Context, ch Challenge) (string, error) {
	return f(ctx, ch)
}

// StaticCode answers every challenge with the same code.
type StaticCode string

func (s StaticCode) SecondFactor(context.Context, Challenge) (string, error) {
	return string(s), nil
}

// TOTPProvider derives the code from a shared TOTP secret, the same secret an
// authenticator app is enrolled with.
type TOTPProvider struct {
	secret string
	now    func() time.Time
}

// NewTOTPProvider returns a provider for the base32 encoded secret.
func NewTOTPProvider(secret string) *TOTPProvider {
	return &TOTPProvider{
		secret: strings.ToUpper(strings.ReplaceAll(secret, " ", "")),
		now:    time.Now,
	}
}

func (p *TOTPProvider) SecondFactor(ctx context.Context, ch Challenge) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ch.Method != MethodTOTP {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSecondFactor, ch.Method)
	}
	code, err := totp.GenerateCode(p.secret, p.now())
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	return code, nil
}

// validateCode checks the shape of a second factor code before it is sent.
func validateCode(code string) error {
	if len(code) < 4 || len(code) > 12 {
		return fmt.Errorf("second factor code must be 4-12 characters, got %d", len(code))
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsDigit(r) || unicode.IsLetter(r)) {
			return fmt.Errorf("second factor code must be alphanumeric")
		}
	}
	return nil
}
