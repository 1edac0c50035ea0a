// Package bybit implements the exchange.Adapter contract for Bybit's V5
// unified API, signing REST requests with HMAC-SHA256 over a
// timestamp+key+recv-window+param preimage and streaming market/user data
// over the public/private websocket endpoints.
package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign returns the hex-encoded HMAC-SHA256 signature of the V5 preimage:
// timestamp, API key, recv window, and the request's encoded parameter
// string concatenated in that order, as Bybit's docs specify.
func sign(timestamp, apiKey, recvWindow, paramStr, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + apiKey + recvWindow + paramStr))
	return hex.EncodeToString(mac.Sum(nil))
}
