package oauth

const (
	ProviderGoogle = "google"
	ProviderTikTok = "tiktok"
)

// Token is the TikTok access token response.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
	Scope        string
	OpenID       string
}

// ProviderIdentity is what a provider vouched for within one flow.
// Fields other than SubjectID may be empty.
type ProviderIdentity struct {
	Provider      string
	SubjectID     string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
}

// LocalUser is the durable identity-platform record. UID is
// "<provider>:<subject>".
type LocalUser struct {
	UID           string
	Provider      string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	Disabled      bool
}

// UID builds the namespaced local user id.
func UID(provider, subjectID string) string {
	return provider + ":" + subjectID
}
