// Package grpcauth carries bearer authentication over gRPC metadata.
package grpcauth

import (
	"context"

	"github.com/goliatone/go-errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	auth "github.com/goliatone/go-task-auth"
)

// MetadataKey is the incoming metadata key holding "Bearer <token>"
const MetadataKey = "authorization"

type Mode int

const (
	ModeRequired Mode = iota
	ModeSuperuser
	ModeOptional
	ModePublic
)

func (m Mode) String() string {
	switch m {
	case ModeRequired:
		return auth.ModeRequired
	case ModeSuperuser:
		return auth.ModeSuperuser
	case ModeOptional:
		return auth.ModeOptional
	case ModePublic:
		return "public"
	default:
		return "unknown"
	}
}

type Interceptor struct {
	auth        auth.Authenticator
	modes       map[string]Mode
	defaultMode Mode
	logger      auth.Logger
}

type Option func(*Interceptor)

// WithMethodMode sets the mode for a full method name,
// e.g. "/tasks.v1.TaskService/CreateTask"
func WithMethodMode(fullMethod string, mode Mode) Option {
	return func(i *Interceptor) {
		i.modes[fullMethod] = mode
	}
}

// WithDefaultMode applies to methods without an explicit mode, ModeRequired
// unless set
func WithDefaultMode(mode Mode) Option {
	return func(i *Interceptor) {
		i.defaultMode = mode
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(i *Interceptor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func New(authenticator auth.Authenticator, opts ...Option) *Interceptor {
	i := &Interceptor{
		auth:        authenticator,
		modes:       make(map[string]Mode),
		defaultMode: ModeRequired,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := i.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (i *Interceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := i.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// ModeFor returns the mode applied to fullMethod
func (i *Interceptor) ModeFor(fullMethod string) Mode {
	if m, ok := i.modes[fullMethod]; ok {
		return m
	}
	return i.defaultMode
}

func (i *Interceptor) authorize(ctx context.Context, fullMethod string) (context.Context, error) {
	mode := i.ModeFor(fullMethod)
	if mode == ModePublic {
		return ctx, nil
	}

	credential := CredentialFromMetadata(ctx)

	var (
		identity *auth.Identity
		err      error
	)
	switch mode {
	case ModeSuperuser:
		identity, err = i.auth.RequireSuperuser(ctx, credential)
	case ModeOptional:
		identity, err = i.auth.OptionalUser(ctx, credential)
	default:
		identity, err = i.auth.RequireUser(ctx, credential)
	}

	if err != nil {
		if i.logger != nil && auth.IsStoreUnavailable(err) {
			i.logger.Error("grpc authentication failed", "method", fullMethod, "error", err)
		}
		return ctx, ToStatus(err)
	}

	if identity != nil {
		ctx = auth.WithIdentity(ctx, identity)
	}
	return ctx, nil
}

// CredentialFromMetadata returns the bearer credential of the incoming
// request, empty when absent
func CredentialFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(MetadataKey) {
		if credential := auth.ParseBearer(v); credential != "" {
			return credential
		}
	}
	return ""
}

// ToStatus maps an authenticator error to a gRPC status error
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case auth.IsStoreUnavailable(err):
		return status.Error(codes.Unavailable, "service unavailable")
	case auth.IsForbidden(err):
		return status.Error(codes.PermissionDenied, message(err))
	case auth.IsUnauthenticated(err):
		return status.Error(codes.Unauthenticated, message(err))
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func message(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
