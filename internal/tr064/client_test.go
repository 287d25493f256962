package tr064

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDescription = `<?xml version="1.0"?>
<root xmlns="urn:dslforum-org:device-1-0">
<device>
<modelName>FRITZ!Box 7490</modelName>
<serviceList>
<service>
<serviceType>urn:dslforum-org:service:DeviceInfo:1</serviceType>
<controlURL>/upnp/control/deviceinfo</controlURL>
</service>
</serviceList>
<deviceList>
<device>
<serviceList>
<service>
<serviceType>urn:dslforum-org:service:WANIPConnection:1</serviceType>
<controlURL>/upnp/control/wanipconnection1</controlURL>
</service>
<service>
<serviceType>urn:dslforum-org:service:WANCommonInterfaceConfig:1</serviceType>
<controlURL>/upnp/control/wancommonifconfig1</controlURL>
</service>
</serviceList>
</device>
</deviceList>
</device>
</root>`

const statusInfoResponse = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<u:GetStatusInfoResponse xmlns:u="urn:dslforum-org:service:WANIPConnection:1">
<NewConnectionStatus>Connected</NewConnectionStatus>
<NewUptime>35307</NewUptime>
<NewUpstreamNoiseMargin>6.5</NewUpstreamNoiseMargin>
</u:GetStatusInfoResponse>
</s:Body>
</s:Envelope>`

const invalidActionFault = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<s:Fault>
<faultcode>s:Client</faultcode>
<faultstring>UPnPError</faultstring>
<detail>
<UPnPError xmlns="urn:dslforum-org:control-1-0">
<errorCode>401</errorCode>
<errorDescription>Invalid Action</errorDescription>
</UPnPError>
</detail>
</s:Fault>
</s:Body>
</s:Envelope>`

func connectTo(t *testing.T, srv *httptest.Server, user, password string) *Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c, err := Connect(u.Hostname(), port, user, password)
	require.NoError(t, err)

	return c
}

func newRouter(t *testing.T, control http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/tr64desc.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, testDescription)
	})
	mux.HandleFunc("/upnp/control/", control)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestConnectParsesDescription(t *testing.T) {
	srv := newRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unexpected call", http.StatusInternalServerError)
	})

	c := connectTo(t, srv, "", "")
	defer c.Close()

	assert.Equal(t, "FRITZ!Box 7490", c.ModelName())
	assert.Contains(t, c.services, "DeviceInfo")
	assert.Contains(t, c.services, "WANIPConnection", "services of nested devices are indexed")
	assert.Contains(t, c.services, "WANCommonInterfaceConfig")
}

func TestConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	srv.Close()

	_, err = Connect(u.Hostname(), port, "", "")
	require.Error(t, err)
}

func TestCall(t *testing.T) {
	srv := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upnp/control/wanipconnection1", r.URL.Path)
		assert.Equal(t, `"urn:dslforum-org:service:WANIPConnection:1#GetStatusInfo"`, r.Header.Get("SOAPAction"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `<u:GetStatusInfo xmlns:u="urn:dslforum-org:service:WANIPConnection:1"/>`)
		assert.True(t, strings.HasSuffix(string(body), "</s:Envelope>"),
			"request body must end with the envelope close tag, got %q", string(body))

		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, statusInfoResponse)
	})

	c := connectTo(t, srv, "", "")
	defer c.Close()

	result, err := c.Call("WANIPConnection", "GetStatusInfo")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"NewConnectionStatus":    "Connected",
		"NewUptime":              int64(35307),
		"NewUpstreamNoiseMargin": 6.5,
	}, result)
}

func TestCallUnknownService(t *testing.T) {
	srv := newRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unexpected call", http.StatusInternalServerError)
	})

	c := connectTo(t, srv, "", "")
	defer c.Close()

	_, err := c.Call("LANEthernetInterfaceConfig", "GetStatistics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not advertised")
}

func TestCallFault(t *testing.T) {
	srv := newRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, invalidActionFault)
	})

	c := connectTo(t, srv, "", "")
	defer c.Close()

	_, err := c.Call("WANIPConnection", "GetBogusInfo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPnP error 401")
	assert.Contains(t, err.Error(), "Invalid Action")
}

func TestCallAnswersDigestChallenge(t *testing.T) {
	const (
		user     = "admin"
		password = "gurkensalat"
		realm    = "F!Box SOAP-Auth"
		nonce    = "0123456789ABCDEF"
	)

	challenged := false

	srv := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			challenged = true
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Digest realm=%q, nonce=%q, qop="auth"`, realm, nonce))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		// Recompute the digest server-side to validate the client's answer.
		params, err := parseChallenge(auth)
		require.NoError(t, err)
		assert.Equal(t, user, params["username"])
		assert.Equal(t, nonce, params["nonce"])
		assert.Equal(t, r.URL.Path, params["uri"])

		ha1 := md5hex(user + ":" + realm + ":" + password)
		ha2 := md5hex("POST:" + params["uri"])
		expected := md5hex(strings.Join([]string{ha1, nonce, params["nc"], params["cnonce"], "auth", ha2}, ":"))
		require.Equal(t, expected, params["response"])

		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, statusInfoResponse)
	})

	c := connectTo(t, srv, user, password)
	defer c.Close()

	result, err := c.Call("WANIPConnection", "GetStatusInfo")
	require.NoError(t, err)
	assert.True(t, challenged)
	assert.Equal(t, int64(35307), result["NewUptime"])
}

func TestParseChallenge(t *testing.T) {
	params, err := parseChallenge(`Digest realm="F!Box SOAP-Auth", nonce="AB12", qop="auth,auth-int", algorithm=MD5`)
	require.NoError(t, err)

	assert.Equal(t, "F!Box SOAP-Auth", params["realm"])
	assert.Equal(t, "AB12", params["nonce"])
	assert.Equal(t, "auth,auth-int", params["qop"], "quoted commas stay inside the value")
	assert.Equal(t, "MD5", params["algorithm"])

	_, err = parseChallenge(`Basic realm="x"`)
	require.Error(t, err)
}

func TestShortServiceName(t *testing.T) {
	assert.Equal(t, "WANIPConnection", shortServiceName("urn:dslforum-org:service:WANIPConnection:1"))
	assert.Equal(t, "WANCommonInterfaceConfig", shortServiceName("urn:schemas-upnp-org:service:WANCommonInterfaceConfig:1"))
	assert.Empty(t, shortServiceName("urn:dslforum-org:device:LANDevice:1"))
}
