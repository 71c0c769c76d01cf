package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Login exchanges instructor credentials for an Identity.
func (cl *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	var raw []byte
	err := cl.do(ctx, call{
		endpoint:  "accounts.login",
		method:    http.MethodPost,
		path:      "/Accounts/login-instractour",
		body:      map[string]string{"email": email, "password": password},
		anonymous: true,
	}, &raw)
	if err != nil {
		if e, ok := AsError(err); ok && e.Kind == KindServer {
			e.Message = loginMessage(e.Status, e.Message)
		}
		return Identity{}, err
	}

	ident, err := ResolveIdentity(raw, email)
	if err != nil {
		if errors.Is(err, ErrNoIdentity) {
			cl.Log.Warn("login response carried no instructor id")
			return ident, err
		}
		return ident, &Error{Kind: KindUnexpected, Op: "accounts.login", Message: MsgUnexpected, Err: err}
	}
	return ident, nil
}

func loginMessage(status int, msg string) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid email or password. Please check your credentials."
	case http.StatusNotFound:
		return "Login endpoint not found. Please contact support."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	}
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("Login failed with status %d", status)
}
