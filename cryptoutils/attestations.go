package cryptoutils

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	sevabi "github.com/google/go-sev-guest/abi"
	"github.com/google/go-sev-guest/kds"
	sevpb "github.com/google/go-sev-guest/proto/sevsnp"
	sevverify "github.com/google/go-sev-guest/verify"
	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/verify"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// Attestation types reported by nodes.
const (
	AttestationTypeSevSnp = "AMD_SEV_SNP"
	AttestationTypeTDX    = "INTEL_TDX"
)

// NodeAttestation is the attestation payload of a handshake response. Byte fields are
// either base64 strings or JSON arrays of numbers.
type NodeAttestation struct {
	Type       string                     `json:"type"`
	Nonce      json.RawMessage            `json:"noonce"`
	Data       map[string]json.RawMessage `json:"data"`
	Signatures []json.RawMessage          `json:"signatures"`
	Report     json.RawMessage            `json:"report"`
}

// ParseAttestationBytes decodes a base64 string or a JSON byte array.
func ParseAttestationBytes(raw json.RawMessage, field string) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("invalid %s: null", field)
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 for %s: %w", field, err)
		}
		return decoded, nil
	case '[':
		var values []json.Number
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field, err)
		}
		out := make([]byte, len(values))
		for i, v := range values {
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("invalid byte value for %s[%d]: expected number", field, i)
			}
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("invalid byte value for %s[%d]: %d", field, i, n)
			}
			out[i] = byte(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid %s: expected base64 string or byte array, got %s", field, string(trimmed))
	}
}

func parseNodeAttestation(raw json.RawMessage) (*NodeAttestation, error) {
	var att NodeAttestation
	if err := json.Unmarshal(raw, &att); err != nil {
		return nil, errors.New("invalid attestation: expected object")
	}
	if att.Type == "" {
		return nil, errors.New("invalid attestation: missing type")
	}
	return &att, nil
}

func checkNonce(att *NodeAttestation, challenge []byte) error {
	if len(challenge) != 32 {
		return fmt.Errorf("attestation challenge must be 32 bytes; got %d", len(challenge))
	}
	if att.Nonce == nil {
		return errors.New("invalid attestation: missing noonce")
	}
	nonce, err := ParseAttestationBytes(att.Nonce, "noonce")
	if err != nil {
		return err
	}
	if !bytes.Equal(nonce, challenge) {
		return errors.New("attestation nonce does not match challenge")
	}
	return nil
}

// MultiVerifier dispatches on the attestation type.
type MultiVerifier map[string]interfaces.AttestationVerifier

func (m MultiVerifier) Verify(ctx context.Context, raw json.RawMessage, challenge []byte) error {
	att, err := parseNodeAttestation(raw)
	if err != nil {
		return err
	}
	verifier, ok := m[att.Type]
	if !ok {
		return fmt.Errorf("unsupported attestation type %s", att.Type)
	}
	return verifier.Verify(ctx, raw, challenge)
}

// SevSnpVerifier verifies AMD SEV-SNP attestations: it checks that the node echoed the
// challenge, fetches the VCEK certificate for the report and verifies the report
// signature with it. Validation of the VCEK certificate chain is left to CheckCertificate.
type SevSnpVerifier struct {
	HTTPClient *http.Client

	// KDSBaseURL replaces AMD's key distribution service when set.
	KDSBaseURL string
	Product    string

	// CheckCertificate optionally validates the VCEK certificate chain.
	CheckCertificate func(vcek *x509.Certificate) error

	// CheckReportData optionally binds the report data field to the challenge and
	// the attested data and signatures.
	CheckReportData func(reportData, challenge []byte, data map[string][]byte, signatures [][]byte) error
}

func (v *SevSnpVerifier) Verify(ctx context.Context, raw json.RawMessage, challenge []byte) error {
	att, err := parseNodeAttestation(raw)
	if err != nil {
		return err
	}
	if att.Type != AttestationTypeSevSnp {
		return fmt.Errorf("unsupported attestation type %s", att.Type)
	}
	if err := checkNonce(att, challenge); err != nil {
		return err
	}

	if att.Report == nil {
		return errors.New("invalid attestation: missing report")
	}
	report, err := ParseAttestationBytes(att.Report, "report")
	if err != nil {
		return err
	}

	if att.Data == nil {
		return errors.New("invalid attestation: missing data")
	}
	data := make(map[string][]byte, len(att.Data))
	for k, raw := range att.Data {
		decoded, err := ParseAttestationBytes(raw, "data."+k)
		if err != nil {
			return err
		}
		data[k] = decoded
	}

	signatures := make([][]byte, 0, len(att.Signatures))
	for i, raw := range att.Signatures {
		decoded, err := ParseAttestationBytes(raw, fmt.Sprintf("signatures[%d]", i))
		if err != nil {
			return err
		}
		signatures = append(signatures, decoded)
	}

	parsed, err := sevabi.ReportToProto(report)
	if err != nil {
		return fmt.Errorf("invalid SEV-SNP attestation report: %w", err)
	}

	certURL, err := vcekURL(v.KDSBaseURL, v.product(), parsed)
	if err != nil {
		return err
	}
	vcek, err := v.fetchVCEK(ctx, certURL)
	if err != nil {
		return err
	}
	if v.CheckCertificate != nil {
		if err := v.CheckCertificate(vcek); err != nil {
			return fmt.Errorf("invalid VCEK certificate: %w", err)
		}
	}

	if err := sevverify.SnpProtoReportSignature(parsed, vcek); err != nil {
		return fmt.Errorf("SEV-SNP report signature verification failed: %w", err)
	}

	if v.CheckReportData != nil {
		if err := v.CheckReportData(parsed.GetReportData(), challenge, data, signatures); err != nil {
			return fmt.Errorf("attestation report data mismatch: %w", err)
		}
	}

	return nil
}

func (v *SevSnpVerifier) product() string {
	if v.Product != "" {
		return v.Product
	}
	return "Milan"
}

func (v *SevSnpVerifier) fetchVCEK(ctx context.Context, url string) (*x509.Certificate, error) {
	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching VCEK certificate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading VCEK certificate: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch VCEK certificate (%d) from %s", resp.StatusCode, url)
	}

	der := body
	if block, _ := pem.Decode(body); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("invalid VCEK certificate: %w", err)
	}
	return cert, nil
}

// VCEKURL builds the KDS URL of the VCEK certificate that signed report, rooted at
// baseURL instead of AMD's service when it is set.
func VCEKURL(baseURL, product string, report []byte) (string, error) {
	parsed, err := sevabi.ReportToProto(report)
	if err != nil {
		return "", fmt.Errorf("invalid SEV-SNP attestation report: %w", err)
	}
	return vcekURL(baseURL, product, parsed)
}

func vcekURL(baseURL, product string, report *sevpb.Report) (string, error) {
	certURL := kds.VCEKCertURL(product, report.GetChipId(), kds.TCBVersion(report.GetReportedTcb()))
	if baseURL == "" {
		return certURL, nil
	}

	u, err := url.Parse(certURL)
	if err != nil {
		return "", fmt.Errorf("invalid VCEK URL %s: %w", certURL, err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid KDS base URL %s: %w", baseURL, err)
	}
	u.Scheme, u.Host = base.Scheme, base.Host
	u.Path = strings.TrimSuffix(base.Path, "/") + u.Path
	return u.String(), nil
}

// TDXVerifier verifies Intel TDX quotes with go-tdx-guest. The quote report data must
// start with the handshake challenge.
type TDXVerifier struct {
	Options *verify.Options
}

func (v *TDXVerifier) Verify(_ context.Context, raw json.RawMessage, challenge []byte) error {
	att, err := parseNodeAttestation(raw)
	if err != nil {
		return err
	}
	if att.Type != AttestationTypeTDX {
		return fmt.Errorf("unsupported attestation type %s", att.Type)
	}
	if err := checkNonce(att, challenge); err != nil {
		return err
	}
	if att.Report == nil {
		return errors.New("invalid attestation: missing report")
	}
	quote, err := ParseAttestationBytes(att.Report, "report")
	if err != nil {
		return err
	}

	var reportData [64]byte
	copy(reportData[:], challenge)

	_, err = VerifyTDXQuote(reportData, quote, v.Options)
	return err
}

// VerifyTDXQuote verifies a raw TDX quote and its report data and returns the
// measurement registers keyed by index (MRTD, RTMR0-3, MRCONFIGID, MROWNER, MROWNERCONFIG).
func VerifyTDXQuote(reportData [64]byte, rawQuote []byte, options *verify.Options) (map[int]string, error) {
	protoQuote, err := tdx_abi.QuoteToProto(rawQuote)
	if err != nil {
		return nil, fmt.Errorf("could not parse quote: %w", err)
	}

	v4Quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type: %T", protoQuote)
	}

	if options == nil {
		options = verify.DefaultOptions()
	}
	if err := verify.TdxQuote(protoQuote, options); err != nil {
		return nil, fmt.Errorf("quote verification failed: %w", err)
	}

	if !bytes.Equal(v4Quote.TdQuoteBody.ReportData, reportData[:]) {
		return nil, fmt.Errorf("invalid report data %x, expected %x", v4Quote.TdQuoteBody.ReportData, reportData[:])
	}

	body := v4Quote.TdQuoteBody
	return map[int]string{
		0: hex.EncodeToString(body.MrTd),
		1: hex.EncodeToString(body.Rtmrs[0]),
		2: hex.EncodeToString(body.Rtmrs[1]),
		3: hex.EncodeToString(body.Rtmrs[2]),
		4: hex.EncodeToString(body.Rtmrs[3]),
		5: hex.EncodeToString(body.MrConfigId),
		6: hex.EncodeToString(body.MrOwner),
		7: hex.EncodeToString(body.MrOwnerConfig),
	}, nil
}
