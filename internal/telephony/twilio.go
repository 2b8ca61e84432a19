package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"propdial/pkg/logger"
)

const headerTwilioSignature = "X-Twilio-Signature"

// TwilioSignature computes the X-Twilio-Signature value for a request to
// fullURL carrying the given POST parameters.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignature rejects webhook requests that were not signed with
// authToken. publicBaseURL is the externally visible origin Twilio called,
// since the service usually runs behind a proxy.
//
// An empty authToken disables verification (local development).
func VerifyTwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		fullURL := base + c.Request.URL.RequestURI()
		want := TwilioSignature(authToken, fullURL, c.Request.PostForm)
		got := c.GetHeader(headerTwilioSignature)
		if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
			logger.FromGin(c).Warn("twilio signature mismatch", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
