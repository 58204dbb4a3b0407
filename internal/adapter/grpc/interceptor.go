package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/fundfolio-backend/internal/logger"
)

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the authorization token from request metadata.
// If the token is missing or invalid, it returns status.Unauthenticated.
func AuthInterceptor(validToken string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		if authHeaders[0] != validToken {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor puts a per-call logger on the context and logs the outcome of every call.
// Server-side failures are logged at error level, client mistakes at info.
func LoggingInterceptor(base *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		callLogger := base.With("method", info.FullMethod)

		resp, err := handler(logger.WithContext(ctx, callLogger), req)

		code := status.Code(err)
		fields := []interface{}{"code", code.String(), "duration", time.Since(start)}
		switch code {
		case codes.Internal, codes.Unknown, codes.DataLoss:
			callLogger.Errorw("rpc failed", append(fields, "error", err)...)
		default:
			callLogger.Infow("rpc finished", fields...)
		}
		return resp, err
	}
}
