// Package binance implements the exchange.Adapter contract for Binance,
// signing REST requests with HMAC-SHA256 over the query string and
// streaming market/user data over a websocket connection.
package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// sign returns the hex-encoded HMAC-SHA256 signature of the URL-encoded
// query string, as Binance's REST API requires for authenticated endpoints.
func sign(query url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}
