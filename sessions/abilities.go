package sessions

import (
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// Resource prefixes of the recap namespaces.
const (
	PrefixAccessControlCondition = "lit-accesscontrolcondition"
	PrefixPKP                    = "lit-pkp"
	PrefixPaymentDelegation      = "lit-paymentdelegation"
	PrefixLitAction              = "lit-litaction"
	PrefixResolvedAuthContext    = "lit-resolvedauthcontext"
)

var resourcePrefixes = map[interfaces.LitAbility]string{
	interfaces.AbilityAccessControlConditionDecryption: PrefixAccessControlCondition,
	interfaces.AbilityAccessControlConditionSigning:    PrefixAccessControlCondition,
	interfaces.AbilityPKPSigning:                       PrefixPKP,
	interfaces.AbilityPaymentDelegation:                PrefixPaymentDelegation,
	interfaces.AbilityLitActionExecution:               PrefixLitAction,
	interfaces.AbilityResolvedAuthContext:              PrefixResolvedAuthContext,
}

// ResourcePrefix returns the resource prefix an ability applies to.
func ResourcePrefix(ability interfaces.LitAbility) (string, bool) {
	prefix, ok := resourcePrefixes[ability]
	return prefix, ok
}

// NewResourceAbilityRequest grants ability over resource ("*" for every resource).
func NewResourceAbilityRequest(ability interfaces.LitAbility, resource string) (interfaces.ResourceAbilityRequest, error) {
	prefix, ok := ResourcePrefix(ability)
	if !ok {
		return interfaces.ResourceAbilityRequest{}, interfaces.ConfigError("unknown ability %q", ability)
	}
	if resource == "" {
		resource = "*"
	}
	return interfaces.ResourceAbilityRequest{
		Resource: interfaces.LitResource{Resource: resource, ResourcePrefix: prefix},
		Ability:  ability,
	}, nil
}

// ResourceKey returns "{prefix}://{resource}".
func ResourceKey(r interfaces.LitResource) string {
	return r.ResourcePrefix + "://" + r.Resource
}

// signableRequests drops abilities that only exist for server side resolution.
func signableRequests(requests []interfaces.ResourceAbilityRequest) []interfaces.ResourceAbilityRequest {
	out := make([]interfaces.ResourceAbilityRequest, 0, len(requests))
	for _, r := range requests {
		if r.Ability == interfaces.AbilityResolvedAuthContext {
			continue
		}
		out = append(out, r)
	}
	return out
}
