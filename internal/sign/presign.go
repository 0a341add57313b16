// Package sign implements the AWS Signature Version 4 query-parameter
// presigning routine used to mint time-limited download URLs for objects in
// an account-scoped S3-compatible bucket. A presigned URL authorizes a single
// unsigned-payload GET against the storage endpoint directly, so the object
// bytes never pass through this process.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultExpirySeconds is used when no usable expiry override is
	// configured.
	DefaultExpirySeconds = 300

	// MaxExpirySeconds is the hard ceiling for presigned URLs (seven days).
	MaxExpirySeconds = 604800

	algorithm       = "AWS4-HMAC-SHA256"
	unsignedPayload = "UNSIGNED-PAYLOAD"
	signingRegion   = "auto"
	signingService  = "s3"
	requestSuffix   = "aws4_request"

	amzDateFormat = "20060102T150405Z"
)

// Credentials is the key pair used to derive request signatures. The secret
// key must never be logged or echoed.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// BucketIdentity names a single bucket within an account on an S3-compatible
// storage provider.
type BucketIdentity struct {
	Account string
	Bucket  string
	Domain  string
}

// Host returns the virtual-host-style request host for the bucket:
// <bucket>.<account>.<domain>.
func (b BucketIdentity) Host() string {
	return b.Bucket + "." + b.Account + "." + b.Domain
}

// ParseExpiry interprets a raw expiry override in seconds. A missing or
// non-numeric value falls back to DefaultExpirySeconds; numeric values are
// clamped to [1, MaxExpirySeconds].
func ParseExpiry(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultExpirySeconds
	}
	return clampExpiry(n)
}

func clampExpiry(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxExpirySeconds {
		return MaxExpirySeconds
	}
	return n
}

// DispositionFilename returns the filename embedded in the
// response-content-disposition parameter: the final "/"-delimited segment of
// the key, or "file" when the key has no final segment. Double quotes are
// stripped rather than escaped, since the header value is not otherwise
// escaped.
func DispositionFilename(key string) string {
	name := key
	if idx := strings.LastIndex(key, "/"); idx != -1 {
		name = key[idx+1:]
	}
	if name == "" {
		name = "file"
	}
	return strings.ReplaceAll(name, `"`, "")
}

// awsURLEncode percent-encodes s per RFC 3986: every byte outside
// A-Za-z0-9-_.~ is encoded with uppercase hex, including ! ' ( ) * which
// generic encoders leave alone. When encodeSlash is false, "/" passes
// through, which is what canonical URIs need.
func awsURLEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		if c == '/' && !encodeSlash {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%")
		b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return b.String()
}

// canonicalURI splits the key on "/", percent-encodes each segment
// independently, and rejoins them under a leading "/".
func canonicalURI(key string) string {
	segments := strings.Split(key, "/")
	encoded := make([]string, len(segments))
	for i, seg := range segments {
		encoded[i] = awsURLEncode(seg, true)
	}
	return "/" + strings.Join(encoded, "/")
}

// canonicalQueryString encodes each key and value independently, sorts pairs
// lexicographically by encoded key with ties broken by encoded value, and
// joins them as k=v pairs with "&".
func canonicalQueryString(params [][2]string) string {
	encoded := make([][2]string, len(params))
	for i, kv := range params {
		encoded[i] = [2]string{awsURLEncode(kv[0], true), awsURLEncode(kv[1], true)}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i][0] != encoded[j][0] {
			return encoded[i][0] < encoded[j][0]
		}
		return encoded[i][1] < encoded[j][1]
	})

	parts := make([]string, len(encoded))
	for i, kv := range encoded {
		parts[i] = kv[0] + "=" + kv[1]
	}
	return strings.Join(parts, "&")
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// canonicalRequest serializes the request exactly as the storage provider
// will re-derive it: method, canonical URI, canonical query string, the
// single signed host header, the signed-header list, and the unsigned-payload
// sentinel, joined by newlines.
func canonicalRequest(host, uri, query string) string {
	return strings.Join([]string{
		http.MethodGet,
		uri,
		query,
		"host:" + host + "\n",
		"host",
		unsignedPayload,
	}, "\n")
}

// Presign produces a fully qualified presigned GET URL for key, valid for
// expirySeconds starting at now. It is a pure computation over hash
// primitives: no network I/O, deterministic for fixed inputs. The expiry is
// clamped to [1, MaxExpirySeconds]. An error is returned only when a
// credential or identity field is blank; callers treat any error as a
// trigger to fall back to direct streaming, never as a user-visible failure.
func Presign(ident BucketIdentity, creds Credentials, key string, expirySeconds int, now time.Time) (string, error) {
	if ident.Account == "" || ident.Bucket == "" || ident.Domain == "" {
		return "", errors.New("presign: incomplete bucket identity")
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return "", errors.New("presign: incomplete credentials")
	}

	expiry := clampExpiry(expirySeconds)
	amzDate := now.UTC().Format(amzDateFormat)
	dateStamp := amzDate[:8]
	scope := strings.Join([]string{dateStamp, signingRegion, signingService, requestSuffix}, "/")
	host := ident.Host()

	params := [][2]string{
		{"X-Amz-Algorithm", algorithm},
		{"X-Amz-Content-Sha256", unsignedPayload},
		{"X-Amz-Credential", creds.AccessKeyID + "/" + scope},
		{"X-Amz-Date", amzDate},
		{"X-Amz-Expires", strconv.Itoa(expiry)},
		{"X-Amz-SignedHeaders", "host"},
		{"response-content-disposition", `attachment; filename="` + DispositionFilename(key) + `"`},
		{"x-id", "GetObject"},
	}

	query := canonicalQueryString(params)
	uri := canonicalURI(key)

	crHash := sha256.Sum256([]byte(canonicalRequest(host, uri, query)))
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hex.EncodeToString(crHash[:]),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+creds.SecretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, signingRegion)
	kService := hmacSHA256(kRegion, signingService)
	kSigning := hmacSHA256(kService, requestSuffix)
	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	return "https://" + host + uri + "?" + query + "&X-Amz-Signature=" + signature, nil
}
