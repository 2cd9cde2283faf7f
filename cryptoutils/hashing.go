package cryptoutils

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// Signing schemes supported by pkp signing.
const (
	SchemeEcdsaK256Sha256 = "EcdsaK256Sha256"
	SchemeEcdsaP256Sha256 = "EcdsaP256Sha256"
	SchemeEcdsaP384Sha384 = "EcdsaP384Sha384"

	SchemeSchnorrEd25519Sha512       = "SchnorrEd25519Sha512"
	SchemeSchnorrK256Sha256          = "SchnorrK256Sha256"
	SchemeSchnorrP256Sha256          = "SchnorrP256Sha256"
	SchemeSchnorrP384Sha384          = "SchnorrP384Sha384"
	SchemeSchnorrRistretto25519      = "SchnorrRistretto25519Sha512"
	SchemeSchnorrEd448Shake256       = "SchnorrEd448Shake256"
	SchemeSchnorrRedJubjubBlake2b512 = "SchnorrRedJubjubBlake2b512"
	SchemeSchnorrK256Taproot         = "SchnorrK256Taproot"
	SchemeSchnorrRedDecaf377         = "SchnorrRedDecaf377Blake2b512"
	SchemeSchnorrkelSubstrate        = "SchnorrkelSubstrate"

	SchemeBls12381G1ProofOfPossession = "Bls12381G1ProofOfPossession"
)

// HashForSigning applies the chain and scheme specific pre-hash to a pkp sign payload.
// ECDSA schemes are hashed with Keccak for ethereum and SHA-2 for bitcoin and cosmos;
// every other scheme signs the raw bytes. bypass returns toSign unchanged.
func HashForSigning(scheme, chain string, toSign []byte, bypass bool) ([]byte, error) {
	if bypass {
		return toSign, nil
	}

	switch scheme {
	case SchemeEcdsaK256Sha256, SchemeEcdsaP256Sha256:
		switch chain {
		case "ethereum":
			return crypto.Keccak256(toSign), nil
		case "bitcoin", "cosmos":
			digest := sha256.Sum256(toSign)
			return digest[:], nil
		default:
			return nil, interfaces.ConfigError("chain %q does not support ECDSA signing with Lit yet", chain)
		}
	case SchemeEcdsaP384Sha384:
		switch chain {
		case "ethereum":
			return Keccak384(toSign), nil
		case "bitcoin", "cosmos":
			digest := sha512.Sum384(toSign)
			return digest[:], nil
		default:
			return nil, interfaces.ConfigError("chain %q does not support ECDSA signing with Lit yet", chain)
		}
	default:
		return toSign, nil
	}
}
