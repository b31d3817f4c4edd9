package core

type (
	// User identifies an authenticated account. Subject is the stable
	// identifier issued by the auth provider (e.g. "github:1234").
	User struct {
		Subject   string `json:"subject"`
		Login     string `json:"login"`
		Email     string `json:"email,omitempty"`
		AvatarURL string `json:"avatarUrl"`
		Name      string `json:"name"`
	}
)
