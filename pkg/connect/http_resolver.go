package connect

import (
	"context"
	"fmt"
	"strings"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/refer"
)

// HTTPResolver resolves and validates an http or https connection with its credentials.
type HTTPResolver struct {
	connections *Resolver
	credential  CredentialParams
}

// NewHTTPResolver creates an empty resolver.
func NewHTTPResolver() *HTTPResolver {
	return &HTTPResolver{connections: NewResolver()}
}

// Configure reads the connection and credential sections.
func (r *HTTPResolver) Configure(params config.Params) error {
	r.credential = CredentialFromConfig(params)
	return r.connections.Configure(params)
}

// SetReferences passes references to the connection resolver.
func (r *HTTPResolver) SetReferences(refs refer.Referencer) error {
	return r.connections.SetReferences(refs)
}

// Register publishes the connection in discovery.
func (r *HTTPResolver) Register(ctx context.Context, traceID string) error {
	return r.connections.Register(ctx, traceID)
}

// RegisterConnection publishes an address chosen at bind time, such as an ephemeral port.
func (r *HTTPResolver) RegisterConnection(ctx context.Context, traceID string, conn ConnectionParams) error {
	return r.connections.RegisterConnection(ctx, traceID, conn)
}

// Resolve returns a validated connection and its credentials.
func (r *HTTPResolver) Resolve(ctx context.Context, traceID string) (ConnectionParams, CredentialParams, error) {
	conn, err := r.connections.Resolve(ctx, traceID)
	if err != nil {
		return ConnectionParams{}, CredentialParams{}, err
	}
	if conn == nil {
		return ConnectionParams{}, CredentialParams{}, apperr.NewConfigError(traceID, "NO_CONNECTION", "Connection is not configured")
	}
	resolved, err := validateHTTP(traceID, *conn, r.credential)
	if err != nil {
		return ConnectionParams{}, CredentialParams{}, err
	}
	return resolved, r.credential, nil
}

func validateHTTP(traceID string, conn ConnectionParams, cred CredentialParams) (ConnectionParams, error) {
	if conn.URI != "" {
		parsed, err := ParseURI(conn.URI)
		if err != nil {
			return ConnectionParams{}, err
		}
		parsed.DiscoveryKey = conn.DiscoveryKey
		conn = parsed
	}
	if conn.Protocol == "" {
		conn.Protocol = "http"
	}
	protocol := strings.ToLower(conn.Protocol)
	if protocol != "http" && protocol != "https" {
		return ConnectionParams{}, apperr.NewConfigError(traceID, "WRONG_PROTOCOL",
			fmt.Sprintf("Protocol %s is not supported", conn.Protocol)).
			WithDetails("protocol", conn.Protocol)
	}
	if conn.Host == "" {
		return ConnectionParams{}, apperr.NewConfigError(traceID, "NO_HOST", "Connection host is not set")
	}
	if conn.Port < 0 || conn.Port > 65535 {
		return ConnectionParams{}, apperr.NewConfigError(traceID, "NO_PORT", "Connection port is out of range").
			WithDetails("port", conn.Port)
	}
	if protocol == "https" {
		if cred.SSLKeyFile == "" {
			return ConnectionParams{}, apperr.NewConfigError(traceID, "NO_SSL_KEY_FILE", "SSL key file is not configured in credentials")
		}
		if cred.SSLCrtFile == "" {
			return ConnectionParams{}, apperr.NewConfigError(traceID, "NO_SSL_CRT_FILE", "SSL crt file is not configured in credentials")
		}
	}
	conn.Protocol = protocol
	return conn, nil
}
