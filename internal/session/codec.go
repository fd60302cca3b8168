package session

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"strings"
)

// Version of the encoded state format. Bump when the State schema changes;
// Decode rejects unknown versions by falling back to the default state.
const Version = 1

const versionPrefix = "v1."

// Encode serializes a state into a URL-safe token: a version tag followed
// by base64url-encoded JSON.
func Encode(s State) string {
	s.Version = Version
	if !validPage(s.Page) {
		s.Page = PageHome
	}
	data, err := json.Marshal(s)
	if err != nil {
		// State contains only plain values; this cannot happen in practice.
		log.Printf("Error encoding session state: %v", err)
		return versionPrefix + base64.RawURLEncoding.EncodeToString([]byte("{}"))
	}
	return versionPrefix + base64.RawURLEncoding.EncodeToString(data)
}

// Decode is fail-soft: a missing prefix, truncated base64, bad JSON, an
// unknown version or an unknown page all yield the default home state. A
// damaged URL must never crash the page.
func Decode(encoded string) State {
	rest, ok := strings.CutPrefix(encoded, versionPrefix)
	if !ok {
		return Default()
	}

	data, err := base64.RawURLEncoding.DecodeString(rest)
	if err != nil {
		return Default()
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return Default()
	}
	if s.Version != Version || !validPage(s.Page) {
		return Default()
	}
	return s
}
