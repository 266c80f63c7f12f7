package backend

import (
	"strings"

	"github.com/golang-jwt/jwt"
)

// AuthContext carries the end user's session token. An empty token is an anonymous
// caller, not an error; the backend decides what anonymous callers may do.
type AuthContext struct {
	Token string
}

func Anonymous() AuthContext {
	return AuthContext{}
}

// FromHeader builds an AuthContext from an Authorization header value.
func FromHeader(header string) AuthContext {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return AuthContext{Token: strings.TrimSpace(header[7:])}
	}
	return AuthContext{}
}

func (a AuthContext) IsAnonymous() bool {
	return a.Token == ""
}

// Subject reads the user id from the token without verifying it. The backend owns
// verification; the subject is only used for logs and rate-limit keys.
func (a AuthContext) Subject() string {
	if a.Token == "" {
		return ""
	}
	token, _, err := new(jwt.Parser).ParseUnverified(a.Token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	for _, key := range []string{"sub", "id", "_id", "userId"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
