package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DecodePayload returns the claims carried in the middle segment of a compact
// JWT. The signature is not verified. It returns false for anything that is
// not three dot separated segments with a base64url encoded JSON object in
// the middle.
func DecodePayload(token string) (map[string]interface{}, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	payload := parts[1]
	if payload == "" {
		return nil, false
	}

	// base64url to standard alphabet, padded to a multiple of 4
	payload = strings.NewReplacer("-", "+", "_", "/").Replace(payload)
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false
	}
	claims, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return claims, true
}

// Expiry returns the numeric "exp" claim of token in seconds since the epoch.
func Expiry(token string) (float64, bool) {
	claims, ok := DecodePayload(token)
	if !ok {
		return 0, false
	}
	exp, ok := claims["exp"].(float64)
	return exp, ok
}

// Subject returns the "sub" claim of token, if it has one.
func Subject(token string) (string, bool) {
	claims, ok := DecodePayload(token)
	if !ok {
		return "", false
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}
