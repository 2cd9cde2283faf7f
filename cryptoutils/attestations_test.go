package cryptoutils

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SEV-SNP report offsets used to build test reports.
const (
	reportVersionOffset     = 0x00
	reportPolicyOffset      = 0x08
	reportSigAlgoOffset     = 0x34
	reportDataOffset        = 0x50
	reportReportedTCB       = 0x180
	reportChipIDOffset      = 0x1A0
	reportSignedLength      = 0x2A0
	reportSignatureR        = 0x2A0
	reportSignatureS        = 0x2E8
	reportSize              = 0x4A0
	reportSignatureAlgoP384 = 1
)

type snpFixture struct {
	report    []byte
	certDER   []byte
	challenge []byte
}

func newSnpFixture(t *testing.T) *snpFixture {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err, "Failed to generate VCEK key")

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "SEV-VCEK"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err, "Failed to create VCEK certificate")

	report := make([]byte, reportSize)
	binary.LittleEndian.PutUint32(report[reportVersionOffset:], 2)
	binary.LittleEndian.PutUint64(report[reportPolicyOffset:], 1<<17)
	binary.LittleEndian.PutUint32(report[reportSigAlgoOffset:], reportSignatureAlgoP384)
	for i := 0; i < 64; i++ {
		report[reportChipIDOffset+i] = byte(i)
	}
	copy(report[reportReportedTCB:], []byte{3, 0, 0, 0, 0, 0, 8, 115})

	digest := sha512.Sum384(report[:reportSignedLength])
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(t, err)
	putLittleEndian(report[reportSignatureR:reportSignatureR+72], r)
	putLittleEndian(report[reportSignatureS:reportSignatureS+72], s)

	challenge := make([]byte, 32)
	_, err = rand.Read(challenge)
	require.NoError(t, err)

	return &snpFixture{report: report, certDER: certDER, challenge: challenge}
}

func putLittleEndian(dst []byte, v *big.Int) {
	be := v.Bytes()
	for i := range be {
		dst[i] = be[len(be)-1-i]
	}
}

func (f *snpFixture) attestation(t *testing.T, nonce []byte) json.RawMessage {
	t.Helper()
	nonceArr := make([]int, len(nonce))
	for i, b := range nonce {
		nonceArr[i] = int(b)
	}
	raw, err := json.Marshal(map[string]any{
		"type":       AttestationTypeSevSnp,
		"noonce":     nonceArr,
		"data":       map[string]string{"INSTANCE_ID": base64.StdEncoding.EncodeToString([]byte("node-1"))},
		"signatures": []string{base64.StdEncoding.EncodeToString([]byte("sig"))},
		"report":     base64.StdEncoding.EncodeToString(f.report),
	})
	require.NoError(t, err)
	return raw
}

func TestSevSnpVerifier_Verify(t *testing.T) {
	fixture := newSnpFixture(t)

	var requestedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.String()
		w.Write(fixture.certDER)
	}))
	defer srv.Close()

	var boundData map[string][]byte
	verifier := &SevSnpVerifier{
		KDSBaseURL: srv.URL,
		CheckReportData: func(reportData, challenge []byte, data map[string][]byte, signatures [][]byte) error {
			boundData = data
			assert.Len(t, reportData, 64)
			assert.Len(t, signatures, 1)
			return nil
		},
	}

	err := verifier.Verify(context.Background(), fixture.attestation(t, fixture.challenge), fixture.challenge)
	require.NoError(t, err, "Valid attestation should verify")
	assert.Equal(t, []byte("node-1"), boundData["INSTANCE_ID"], "attested data should be decoded")
	assert.True(t, strings.HasPrefix(requestedPath, "/vcek/v1/Milan/000102"), "VCEK path should contain the chip id, got %s", requestedPath)
	assertSPLs(t, requestedPath)
}

func assertSPLs(t *testing.T, rawURL string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	for name, expected := range map[string]int{"blSPL": 3, "teeSPL": 0, "snpSPL": 8, "ucodeSPL": 115} {
		got, err := strconv.Atoi(u.Query().Get(name))
		require.NoError(t, err, name)
		assert.Equal(t, expected, got, name)
	}
}

func TestVCEKURL(t *testing.T) {
	fixture := newSnpFixture(t)

	amd, err := VCEKURL("", "Milan", fixture.report)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(amd, "https://kdsintf.amd.com/vcek/v1/Milan/000102"), amd)
	assertSPLs(t, amd)

	local, err := VCEKURL("http://127.0.0.1:8080/kds", "Genoa", fixture.report)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(local, "http://127.0.0.1:8080/kds/vcek/v1/Genoa/000102"), local)

	_, err = VCEKURL("", "Milan", fixture.report[:100])
	assert.ErrorContains(t, err, "invalid SEV-SNP attestation report")
}

func TestSevSnpVerifier_Rejects(t *testing.T) {
	fixture := newSnpFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture.certDER)
	}))
	defer srv.Close()

	verifier := &SevSnpVerifier{KDSBaseURL: srv.URL}
	ctx := context.Background()

	otherChallenge := make([]byte, 32)
	err := verifier.Verify(ctx, fixture.attestation(t, otherChallenge), fixture.challenge)
	assert.ErrorContains(t, err, "attestation nonce does not match challenge")

	tampered := *fixture
	tampered.report = append([]byte(nil), fixture.report...)
	tampered.report[reportDataOffset] ^= 0xff
	err = verifier.Verify(ctx, tampered.attestation(t, fixture.challenge), fixture.challenge)
	assert.ErrorContains(t, err, "signature verification failed")

	err = verifier.Verify(ctx, json.RawMessage(`{"type":"AMD_SEV_SNP","noonce":"`+base64.StdEncoding.EncodeToString(fixture.challenge)+`"}`), fixture.challenge)
	assert.ErrorContains(t, err, "missing report")

	err = verifier.Verify(ctx, json.RawMessage(`{"type":"OTHER"}`), fixture.challenge)
	assert.ErrorContains(t, err, "unsupported attestation type OTHER")

	err = verifier.Verify(ctx, json.RawMessage(`[1,2]`), fixture.challenge)
	assert.ErrorContains(t, err, "expected object")

	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	failing := &SevSnpVerifier{KDSBaseURL: notFound.URL}
	err = failing.Verify(ctx, fixture.attestation(t, fixture.challenge), fixture.challenge)
	assert.ErrorContains(t, err, "failed to fetch VCEK certificate (404)")
}

func TestMultiVerifier(t *testing.T) {
	called := ""
	multi := MultiVerifier{
		AttestationTypeTDX: verifierFunc(func() { called = AttestationTypeTDX }),
	}

	err := multi.Verify(context.Background(), json.RawMessage(`{"type":"INTEL_TDX"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, AttestationTypeTDX, called)

	err = multi.Verify(context.Background(), json.RawMessage(`{"type":"AMD_SEV_SNP"}`), nil)
	assert.ErrorContains(t, err, "unsupported attestation type AMD_SEV_SNP")
}

type verifierFunc func()

func (f verifierFunc) Verify(context.Context, json.RawMessage, []byte) error {
	f()
	return nil
}

func TestParseAttestationBytes(t *testing.T) {
	out, err := ParseAttestationBytes(json.RawMessage(`[1,2,255]`), "x")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 255}, out)

	out, err = ParseAttestationBytes(json.RawMessage(`"AQID"`), "x")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)

	_, err = ParseAttestationBytes(json.RawMessage(`[256]`), "x")
	assert.ErrorContains(t, err, "invalid byte value for x[0]: 256")

	_, err = ParseAttestationBytes(json.RawMessage(`null`), "x")
	assert.ErrorContains(t, err, "invalid x: null")

	_, err = ParseAttestationBytes(json.RawMessage(`12`), "x")
	assert.ErrorContains(t, err, "expected base64 string or byte array")
}
