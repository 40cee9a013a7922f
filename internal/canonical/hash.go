package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without ambiguity.
const (
	DomainRegistry = "recheck/registry/v1"
	DomainSchema   = "recheck/schema/v1"
)

// Hash computes SHA-256 with domain separation.
// Format: SHA256(domain || 0x00 || data). The null separator prevents
// domain/data boundary ambiguity.
func Hash(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashTable canonicalizes rows and hashes them under the given domain.
func HashTable(domain string, rows []Row) (string, error) {
	data, err := MarshalTable(rows)
	if err != nil {
		return "", err
	}
	return Hash(domain, data), nil
}
