package aitypes

// CredentialSource records where a secret was found.
type CredentialSource string

// Credential sources in lookup order.
const (
	SourceNone            CredentialSource = "none"
	SourceEnvironment     CredentialSource = "env"
	SourceDotEnv          CredentialSource = "dotenv"
	SourceSecretStore     CredentialSource = "secret-store"
	SourceSecretStoreName CredentialSource = "secret-store-name"
)

// CredentialState distinguishes a missing key from one that exists but is blank.
type CredentialState int

// Credential lookup outcomes.
const (
	CredentialNotFound CredentialState = iota
	CredentialEmpty
	CredentialFound
)

// String returns a readable name for the state.
func (s CredentialState) String() string {
	switch s {
	case CredentialFound:
		return "found"
	case CredentialEmpty:
		return "empty"
	default:
		return "not-found"
	}
}

// Credential is the result of resolving a secret for (provider, config index).
type Credential struct {
	Provider    string
	ConfigIndex int
	Secret      string
	Source      CredentialSource
	// SourceKey names the variable or store entry the secret came from
	SourceKey string
	State     CredentialState
}

// Usable reports whether the credential can authenticate a request.
func (c Credential) Usable() bool {
	return c.State == CredentialFound && c.Secret != ""
}
