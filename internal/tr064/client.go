package tr064

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	descriptionPath = "/tr64desc.xml"
	callTimeout     = 10 * time.Second
)

const envelopeFormat = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body><u:%s xmlns:u="%s"/></s:Body>
</s:Envelope>`

// service is one entry of the device description's service list.
type service struct {
	Type       string `xml:"serviceType"`
	ControlURL string `xml:"controlURL"`
}

type deviceDescription struct {
	ModelName string              `xml:"modelName"`
	Services  []service           `xml:"serviceList>service"`
	Devices   []deviceDescription `xml:"deviceList>device"`
}

type rootDescription struct {
	Device deviceDescription `xml:"device"`
}

// Client talks to one router. It is not safe for concurrent use; the poll
// loop that owns it runs serially.
type Client struct {
	endpoint string
	user     string
	password string
	http     *http.Client

	model    string
	services map[string]service
}

// Connect fetches the device description from the router and indexes the
// advertised services. It fails on an unreachable device or a description
// that carries no services.
func Connect(address string, port int, user, password string) (*Client, error) {
	c := &Client{
		endpoint: "http://" + net.JoinHostPort(address, strconv.Itoa(port)),
		user:     user,
		password: password,
		http:     &http.Client{Timeout: callTimeout},
		services: make(map[string]service),
	}

	resp, err := c.http.Get(c.endpoint + descriptionPath)
	if err != nil {
		return nil, fmt.Errorf("fetch device description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch device description: unexpected status %s", resp.Status)
	}

	var root rootDescription
	if err := xml.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse device description: %w", err)
	}

	c.model = root.Device.ModelName
	c.indexServices(root.Device)

	if len(c.services) == 0 {
		return nil, fmt.Errorf("device at %s advertises no TR-064 services", c.endpoint)
	}

	return c, nil
}

func (c *Client) indexServices(dev deviceDescription) {
	for _, s := range dev.Services {
		if name := shortServiceName(s.Type); name != "" {
			c.services[name] = s
		}
	}
	for _, sub := range dev.Devices {
		c.indexServices(sub)
	}
}

// shortServiceName reduces "urn:dslforum-org:service:WANIPConnection:1" to
// "WANIPConnection".
func shortServiceName(serviceType string) string {
	parts := strings.Split(serviceType, ":")
	if len(parts) < 5 || parts[2] != "service" {
		return ""
	}
	return parts[3]
}

// ModelName reports the model name from the device description, e.g.
// "FRITZ!Box 7490".
func (c *Client) ModelName() string { return c.model }

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Call issues one SOAP action and returns the response arguments by name.
// Argument values that parse as integers come back as int64, other decimals
// as float64, everything else as string. Unknown services, SOAP faults and
// transport errors all fail the call.
func (c *Client) Call(serviceName, action string) (map[string]any, error) {
	svc, ok := c.services[serviceName]
	if !ok {
		return nil, fmt.Errorf("service %q not advertised by device", serviceName)
	}

	body := fmt.Sprintf(envelopeFormat, action, svc.Type)

	resp, err := c.post(svc, action, body)
	if err != nil {
		return nil, fmt.Errorf("%s#%s: %w", serviceName, action, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s#%s: read response: %w", serviceName, action, err)
	}

	if resp.StatusCode != http.StatusOK {
		if code, desc, ok := parseFault(payload); ok {
			return nil, fmt.Errorf("%s#%s: UPnP error %d: %s", serviceName, action, code, desc)
		}
		return nil, fmt.Errorf("%s#%s: unexpected status %s", serviceName, action, resp.Status)
	}

	return parseResponseArguments(payload, action)
}

// post sends the SOAP request, answering a digest challenge once when the
// router demands authentication.
func (c *Client) post(svc service, action, body string) (*http.Response, error) {
	req, err := c.newRequest(svc, action, body, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || c.user == "" {
		return resp, nil
	}

	challenge := resp.Header.Get("WWW-Authenticate")
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	auth, err := digestAuthorization(c.user, c.password, http.MethodPost, svc.ControlURL, challenge)
	if err != nil {
		return nil, err
	}

	req, err = c.newRequest(svc, action, body, auth)
	if err != nil {
		return nil, err
	}

	return c.http.Do(req)
}

func (c *Client) newRequest(svc service, action, body, auth string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, c.endpoint+svc.ControlURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", svc.Type+"#"+action))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	return req, nil
}

// parseResponseArguments extracts the direct children of the
// <u:{action}Response> element as a name to value map.
func parseResponseArguments(payload []byte, action string) (map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	result := make(map[string]any)

	inResponse := false
	field := ""
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == action+"Response":
				inResponse = true
			case inResponse && field == "":
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case field != "" && t.Name.Local == field:
				result[field] = parseValue(text.String())
				field = ""
			case t.Name.Local == action+"Response":
				inResponse = false
			}
		}
	}

	return result, nil
}

// parseValue keeps TR-064's text arguments typed: integers stay integers.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// parseFault pulls the UPnP error code and description out of a SOAP fault
// body, if there is one.
func parseFault(payload []byte) (code int, desc string, ok bool) {
	dec := xml.NewDecoder(bytes.NewReader(payload))

	field := ""
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "errorCode" || t.Name.Local == "errorDescription" {
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch field {
			case "errorCode":
				code, _ = strconv.Atoi(strings.TrimSpace(text.String()))
				ok = true
			case "errorDescription":
				desc = strings.TrimSpace(text.String())
			}
			field = ""
		}
	}

	return code, desc, ok
}
