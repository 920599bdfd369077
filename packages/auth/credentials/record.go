package credentials

// DefaultTokenType is used when a record does not name its token type.
const DefaultTokenType = "Bearer"

// Record holds the credentials for one origin.
type Record struct {
	ID                string `json:"id,omitempty"`
	AuthenticationURL string `json:"authenticationUrl,omitempty"`
	AuthenticateURL   string `json:"authenticateUrl,omitempty"`
	RefreshURL        string `json:"refreshUrl,omitempty"`
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	TokenType         string `json:"tokenType,omitempty"`
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Type returns the token type, defaulting to Bearer.
func (r *Record) Type() string {
	if r.TokenType == "" {
		return DefaultTokenType
	}
	return r.TokenType
}

// AuthorizationHeader formats the value of the Authorization header.
func (r *Record) AuthorizationHeader() string {
	return r.Type() + " " + r.AccessToken
}

// CanRefresh reports whether the record has both a refresh URL and a refresh token.
func (r *Record) CanRefresh() bool {
	return r.RefreshURL != "" && r.RefreshToken != ""
}
