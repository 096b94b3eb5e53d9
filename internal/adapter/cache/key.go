package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// Key derives "<vendor>:<op>:<h>" where h is the first eight hex digits of
// the MD5 of the JSON-encoded args. encoding/json sorts map keys, so equal
// argument sets always hash the same.
func Key(vendor, op string, args map[string]any) string {
	return vendor + ":" + op + ":" + Digest(args)[:8]
}

// Digest is the full MD5 hex of v's JSON encoding.
func Digest(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("null")
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
