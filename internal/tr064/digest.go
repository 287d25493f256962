package tr064

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// digestAuthorization answers an HTTP digest challenge (RFC 7616, MD5) the
// way the FRITZ!Box expects it on its SOAP endpoints.
func digestAuthorization(user, password, method, uri, challenge string) (string, error) {
	params, err := parseChallenge(challenge)
	if err != nil {
		return "", err
	}

	realm := params["realm"]
	nonce := params["nonce"]
	if nonce == "" {
		return "", fmt.Errorf("digest challenge without nonce: %q", challenge)
	}

	cnonce, err := newCnonce()
	if err != nil {
		return "", err
	}

	const nc = "00000001"

	ha1 := md5hex(user + ":" + realm + ":" + password)
	ha2 := md5hex(method + ":" + uri)

	var response string
	qop := ""
	for _, q := range strings.Split(params["qop"], ",") {
		if strings.TrimSpace(q) == "auth" {
			qop = "auth"
		}
	}
	if qop == "auth" {
		response = md5hex(strings.Join([]string{ha1, nonce, nc, cnonce, qop, ha2}, ":"))
	} else {
		response = md5hex(ha1 + ":" + nonce + ":" + ha2)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username=%q, realm=%q, nonce=%q, uri=%q, response=%q, algorithm=MD5`,
		user, realm, nonce, uri, response)
	if qop != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce=%q`, qop, nc, cnonce)
	}
	if opaque := params["opaque"]; opaque != "" {
		fmt.Fprintf(&b, `, opaque=%q`, opaque)
	}

	return b.String(), nil
}

// parseChallenge splits a WWW-Authenticate digest challenge into its
// parameters. Quoted values may contain commas (qop="auth,auth-int").
func parseChallenge(challenge string) (map[string]string, error) {
	const prefix = "Digest "
	if !strings.HasPrefix(challenge, prefix) {
		return nil, fmt.Errorf("not a digest challenge: %q", challenge)
	}

	params := make(map[string]string)
	rest := challenge[len(prefix):]

	for len(rest) > 0 {
		rest = strings.TrimLeft(rest, " ,")

		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in digest challenge: %q", challenge)
			}
			value = rest[1 : 1+end]
			rest = rest[end+2:]
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}
			value = strings.TrimSpace(rest[:end])
			rest = rest[end:]
		}

		params[key] = value
	}

	return params, nil
}

func newCnonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate cnonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
