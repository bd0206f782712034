package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/connect"
	"github.com/morezero/components/pkg/dispatcher"
	"github.com/morezero/components/pkg/refer"
)

const clientLogPrefix = "rpc:client"

// CommandableClient calls a remote commandable service.
//
// Configuration: connection.* (directly or through discovery_key),
// credential.ssl_ca_file, options.connect_timeout, options.timeout and
// options.max_message_size.
type CommandableClient struct {
	service        string
	resolver       *connect.HTTPResolver
	connectTimeout time.Duration
	timeout        time.Duration
	maxMessageSize int

	conn *grpc.ClientConn
}

// NewCommandableClient creates a client for the methods of service.
func NewCommandableClient(service string) *CommandableClient {
	return &CommandableClient{
		service:        service,
		resolver:       connect.NewHTTPResolver(),
		connectTimeout: 10 * time.Second,
		timeout:        30 * time.Second,
		maxMessageSize: defaultMaxMessageSize,
	}
}

// Configure reads the connection and the call options.
func (c *CommandableClient) Configure(params config.Params) error {
	c.connectTimeout = params.GetDurationWithDefault("options.connect_timeout", c.connectTimeout)
	c.timeout = params.GetDurationWithDefault("options.timeout", c.timeout)
	c.maxMessageSize = params.GetIntWithDefault("options.max_message_size", c.maxMessageSize)
	return c.resolver.Configure(params)
}

// SetReferences passes references to the resolver for discovery lookups.
func (c *CommandableClient) SetReferences(refs refer.Referencer) error {
	return c.resolver.SetReferences(refs)
}

// IsOpen reports whether a client connection is held.
func (c *CommandableClient) IsOpen() bool {
	return c.conn != nil
}

// Open resolves the connection and creates the gRPC channel.
func (c *CommandableClient) Open(ctx context.Context, traceID string) error {
	if c.conn != nil {
		return nil
	}
	conn, cred, err := c.resolver.Resolve(ctx, traceID)
	if err != nil {
		return err
	}

	transport := insecure.NewCredentials()
	if conn.IsTLS() {
		transport = credentials.NewTLS(nil)
		if cred.SSLCAFile != "" {
			transport, err = credentials.NewClientTLSFromFile(cred.SSLCAFile, "")
			if err != nil {
				return apperr.NewConfigError(traceID, "BAD_CREDENTIALS", "TLS CA file cannot be loaded").
					WithDetails("uri", conn.URIString()).
					WithCause(err)
			}
		}
	}

	cc, err := grpc.NewClient(conn.Target(),
		grpc.WithTransportCredentials(transport),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(CodecName),
			grpc.MaxCallRecvMsgSize(c.maxMessageSize),
			grpc.MaxCallSendMsgSize(c.maxMessageSize),
		),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: c.connectTimeout,
		}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                defaultKeepaliveTime,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(
			ClientRequestIDInterceptor(),
			ClientLoggingInterceptor(),
		),
	)
	if err != nil {
		return apperr.NewConnectionError(traceID, "CANNOT_CONNECT", "Connecting to gRPC service failed").
			WithDetails("uri", conn.URIString()).
			WithCause(err)
	}
	cc.Connect()
	c.conn = cc
	slog.Debug(fmt.Sprintf("%s - connected to %s trace_id=%s", clientLogPrefix, conn.Target(), traceID))
	return nil
}

// Close releases the client connection.
func (c *CommandableClient) Close(_ context.Context, _ string) error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("%s - failed to close connection: %w", clientLogPrefix, err)
	}
	return nil
}

// CallCommand invokes "<service>.<name>" and returns the raw JSON result, or
// nil when the result is empty. Application errors come back as *apperr.Error.
func (c *CommandableClient) CallCommand(ctx context.Context, name, traceID string, args any) ([]byte, error) {
	if c.conn == nil {
		return nil, apperr.NewInvocationError(traceID, "NOT_OPENED", "Client is not opened").
			WithDetails("service", c.service)
	}
	method := name
	if c.service != "" {
		method = c.service + "." + name
	}

	var argsJSON []byte
	if args != nil {
		var err error
		if argsJSON, err = json.Marshal(args); err != nil {
			return nil, apperr.NewBadRequestError(traceID, "BAD_ARGS", "Arguments cannot be encoded").
				WithDetails("method", method).
				WithCause(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := dispatcher.NewInvokeRequest(method, traceID, argsJSON)
	resp := new(dispatcher.InvokeResponse)
	if err := c.conn.Invoke(ctx, InvokeMethod, req, resp); err != nil {
		return nil, apperr.NewConnectionError(traceID, "CALL_FAILED", fmt.Sprintf("Calling %s failed", method)).
			WithDetails("method", method).
			WithCause(err)
	}
	if resp.Error != nil {
		return nil, resp.Error.ToError()
	}
	return resp.Result(), nil
}

// Call invokes a command and decodes its result into T. An empty result gives
// the zero T.
func Call[T any](ctx context.Context, c *CommandableClient, name, traceID string, args any) (T, error) {
	var out T
	data, err := c.CallCommand(ctx, name, traceID, args)
	if err != nil || data == nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, apperr.NewInvocationError(traceID, "BAD_RESULT", fmt.Sprintf("Result of %s cannot be decoded", name)).
			WithCause(err)
	}
	return out, nil
}
