package auth

// DevAuthRequest — запрос dev-авторизации.
type DevAuthRequest struct {
	UserName string `json:"userName"`
}

// DevAuthResponse — ответ с dev-токеном.
type DevAuthResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
	UserName    string `json:"userName"`
}
