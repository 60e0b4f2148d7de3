package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	urlutil "github.com/r3co87/iris/url"
)

// fingerprintPayload is the canonical projection of a request used for
// cache keying. Field order is fixed by the struct; header order is
// erased by the digest.
type fingerprintPayload struct {
	NormalizedURL   string `json:"normalized_url"`
	ExtractText     bool   `json:"extract_text"`
	ExtractMetadata bool   `json:"extract_metadata"`
	ExtractLinks    bool   `json:"extract_links"`
	Screenshot      bool   `json:"screenshot"`
	WaitStrategy    string `json:"wait_strategy"`
	WaitForSelector string `json:"wait_for_selector"`
	WaitAfterLoadMS int    `json:"wait_after_load_ms"`
	HeaderDigest    string `json:"header_digest"`
}

// Fingerprint computes the SHA-256 cache key for a request: canonical
// JSON over the normalized URL, extraction flags, wait parameters, and
// a digest of the custom headers. Deterministic and order-independent
// across mapping fields.
func Fingerprint(req *Request) (string, error) {
	normalized, err := urlutil.Normalize(req.URL)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	payload := fingerprintPayload{
		NormalizedURL:   normalized,
		ExtractText:     req.ExtractText,
		ExtractMetadata: req.ExtractMetadata,
		ExtractLinks:    req.ExtractLinks,
		Screenshot:      req.Screenshot,
		WaitStrategy:    req.WaitStrategy,
		WaitForSelector: req.WaitForSelector,
		HeaderDigest:    headerDigest(req.Headers),
	}
	if req.WaitAfterLoadMS != nil {
		payload.WaitAfterLoadMS = *req.WaitAfterLoadMS
	} else {
		payload.WaitAfterLoadMS = -1
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// headerDigest hashes custom headers into a stable hex string. Keys are
// lowercased and sorted so header order never affects the fingerprint.
func headerDigest(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}

	lines := make([]string, 0, len(headers))
	for key, value := range headers {
		lines = append(lines, strings.ToLower(key)+":"+value)
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
