// Package connect reads connection settings and resolves them, directly or through discovery.
package connect

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
)

// ConnectionParams describes where a service listens or can be reached.
type ConnectionParams struct {
	Protocol     string `json:"protocol,omitempty"`
	Host         string `json:"host,omitempty"`
	Port         int    `json:"port,omitempty"`
	URI          string `json:"uri,omitempty"`
	DiscoveryKey string `json:"discovery_key,omitempty"`
}

// CredentialParams holds TLS file locations.
type CredentialParams struct {
	SSLKeyFile string `json:"ssl_key_file,omitempty"`
	SSLCrtFile string `json:"ssl_crt_file,omitempty"`
	SSLCAFile  string `json:"ssl_ca_file,omitempty"`
}

// ConnectionFromSection reads protocol, host, port, uri and discovery_key from a section.
func ConnectionFromSection(p config.Params) ConnectionParams {
	return ConnectionParams{
		Protocol:     p.GetString("protocol"),
		Host:         p.GetString("host"),
		Port:         p.GetIntWithDefault("port", 0),
		URI:          p.GetString("uri"),
		DiscoveryKey: p.GetString("discovery_key"),
	}
}

// ConnectionsFromConfig reads "connection.*" and "connections.<n>.*" sections.
// A top-level discovery_key applies to a single connection without one.
func ConnectionsFromConfig(p config.Params) []ConnectionParams {
	var out []ConnectionParams
	if section := p.Section("connection"); len(section) > 0 {
		out = append(out, ConnectionFromSection(section))
	}
	multi := p.Section("connections")
	for i := 0; ; i++ {
		section := multi.Section(strconv.Itoa(i))
		if len(section) == 0 {
			break
		}
		out = append(out, ConnectionFromSection(section))
	}
	if key := p.GetString("discovery_key"); key != "" {
		if len(out) == 0 {
			out = append(out, ConnectionParams{DiscoveryKey: key})
		} else if out[0].DiscoveryKey == "" {
			out[0].DiscoveryKey = key
		}
	}
	return out
}

// CredentialFromConfig reads the "credential" section.
func CredentialFromConfig(p config.Params) CredentialParams {
	section := p.Section("credential")
	return CredentialParams{
		SSLKeyFile: section.GetString("ssl_key_file"),
		SSLCrtFile: section.GetString("ssl_crt_file"),
		SSLCAFile:  section.GetString("ssl_ca_file"),
	}
}

// ParseURI reads a connection from "protocol://host:port".
func ParseURI(uri string) (ConnectionParams, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return ConnectionParams{}, apperr.NewConfigError("", "BAD_URI", fmt.Sprintf("Connection uri %q is invalid", uri)).
			WithDetails("uri", uri)
	}
	c := ConnectionParams{Protocol: u.Scheme, Host: u.Hostname(), URI: uri}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return ConnectionParams{}, apperr.NewConfigError("", "BAD_URI", fmt.Sprintf("Connection uri %q has an invalid port", uri)).
				WithDetails("uri", uri)
		}
		c.Port = n
	}
	return c, nil
}

// UseDiscovery reports whether the connection must be looked up by discovery key.
func (c ConnectionParams) UseDiscovery() bool {
	return c.DiscoveryKey != "" && c.Host == "" && c.URI == ""
}

// Target returns "host:port".
func (c ConnectionParams) Target() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URIString returns the explicit uri or one built from protocol, host and port.
func (c ConnectionParams) URIString() string {
	if c.URI != "" {
		return c.URI
	}
	protocol := c.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return protocol + "://" + c.Target()
}

// IsTLS reports whether the protocol requires TLS.
func (c ConnectionParams) IsTLS() bool {
	return strings.EqualFold(c.Protocol, "https")
}

// IsSet reports whether any TLS file is configured.
func (c CredentialParams) IsSet() bool {
	return c.SSLKeyFile != "" || c.SSLCrtFile != "" || c.SSLCAFile != ""
}
