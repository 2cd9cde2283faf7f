package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/litclient"
)

// buildSiwe renders an EIP-4361 message. Resources are listed as prefix://resource
// lines with their ability.
func buildSiwe(_ context.Context, p litclient.SiweParams) (string, error) {
	if p.Address == "" || p.URI == "" {
		return "", interfaces.ConfigError("siwe message requires an address and a uri")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n%s\n\n", p.Domain, p.Address)
	if p.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", p.Statement)
	}
	fmt.Fprintf(&b, "URI: %s\nVersion: 1\nChain ID: 1\nNonce: %s\nIssued At: %s", p.URI, p.Nonce, time.Now().UTC().Format(time.RFC3339))
	if p.Expiration != "" {
		fmt.Fprintf(&b, "\nExpiration Time: %s", p.Expiration)
	}
	if len(p.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range p.Resources {
			fmt.Fprintf(&b, "\n- %s://%s#%s", r.Resource.ResourcePrefix, r.Resource.Resource, r.Ability)
		}
	}
	return b.String(), nil
}
