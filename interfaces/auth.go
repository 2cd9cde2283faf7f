package interfaces

// LitAbility names an action a session may perform on a resource.
type LitAbility string

const (
	AbilityAccessControlConditionDecryption LitAbility = "access-control-condition-decryption"
	AbilityAccessControlConditionSigning    LitAbility = "access-control-condition-signing"
	AbilityPKPSigning                       LitAbility = "pkp-signing"
	AbilityPaymentDelegation                LitAbility = "lit-payment-delegation"
	AbilityLitActionExecution               LitAbility = "lit-action-execution"
	// AbilityResolvedAuthContext is only used by nodes to resolve an auth context and
	// is never signed into a session document.
	AbilityResolvedAuthContext LitAbility = "lit-resolved-auth-context"
)

// LitResource identifies a resource by prefix and key, e.g. "lit-pkp" and a token id.
type LitResource struct {
	Resource       string `json:"resource"`
	ResourcePrefix string `json:"resourcePrefix"`
}

// ResourceAbilityRequest grants one ability over one resource.
type ResourceAbilityRequest struct {
	Resource LitResource `json:"resource"`
	Ability  LitAbility  `json:"ability"`
}

// AuthSig is a signature over a message together with the signing method.
type AuthSig struct {
	Sig           string `json:"sig"`
	DerivedVia    string `json:"derivedVia"`
	SignedMessage string `json:"signedMessage"`
	Address       string `json:"address"`
	Algo          string `json:"algo,omitempty"`
}

// SessionSigs maps a node URL to the session signature issued for it.
type SessionSigs map[string]AuthSig

// SessionKeyPair is an ed25519 session key pair, hex encoded. SecretKey is either
// the 32-byte seed or the 64-byte seed‖public key form.
type SessionKeyPair struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
}

// AuthConfig describes what a session is allowed to do and for how long.
type AuthConfig struct {
	Resources          []ResourceAbilityRequest `json:"resources"`
	CapabilityAuthSigs []AuthSig                `json:"capabilityAuthSigs,omitempty"`
	Expiration         string                   `json:"expiration"`
	Statement          string                   `json:"statement,omitempty"`
	Domain             string                   `json:"domain,omitempty"`
}

// AuthContext is everything needed to issue session signatures: the session key,
// its grants and the delegation proof binding the key to the user.
type AuthContext struct {
	SessionKeyPair    SessionKeyPair `json:"sessionKeyPair"`
	AuthConfig        AuthConfig     `json:"authConfig"`
	DelegationAuthSig AuthSig        `json:"delegationAuthSig"`
}

// AuthMethod is an authentication credential presented to sign-session-key.
type AuthMethod struct {
	AuthMethodType uint32 `json:"authMethodType"`
	AccessToken    string `json:"accessToken"`
}
