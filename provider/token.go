package provider

import (
	"encoding/json"
	"time"
)

// Placeholders printed and marshaled in place of a secret value.
const (
	RedactedClientSecret = "[REDACTED: client secret]"
	RedactedIdToken      = "[REDACTED: id_token]"
	RedactedAccessToken  = "[REDACTED: access_token]"
	RedactedRefreshToken = "[REDACTED: refresh_token]"
)

// ClientSecret, IdToken, AccessToken and RefreshToken hold their value as a
// plain string; conversions with string are how the value is read. Printing
// or marshaling one yields its placeholder, so a Config or Token can be logged
// as is.
type (
	ClientSecret string
	IdToken      string
	AccessToken  string
	RefreshToken string
)

func (ClientSecret) String() string               { return RedactedClientSecret }
func (ClientSecret) MarshalJSON() ([]byte, error) { return placeholder(RedactedClientSecret) }

func (IdToken) String() string               { return RedactedIdToken }
func (IdToken) MarshalJSON() ([]byte, error) { return placeholder(RedactedIdToken) }

func (AccessToken) String() string               { return RedactedAccessToken }
func (AccessToken) MarshalJSON() ([]byte, error) { return placeholder(RedactedAccessToken) }

func (RefreshToken) String() string               { return RedactedRefreshToken }
func (RefreshToken) MarshalJSON() ([]byte, error) { return placeholder(RedactedRefreshToken) }

func placeholder(v string) ([]byte, error) { return json.Marshal(v) }

// Token is the set of tokens issued by the provider for one session. Printing
// or marshaling a Token never reveals a token.
type Token struct {
	IdToken      IdToken
	AccessToken  AccessToken
	RefreshToken RefreshToken

	// Expiry is the access token's expiry as reported by the token endpoint.
	// It is zero when the provider did not say.
	Expiry time.Time
}
