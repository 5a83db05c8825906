package logger

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

// UnaryServerInterceptor logs every unary call except health probes.
func UnaryServerInterceptor(logger interfaces.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isHealthProbe(info.FullMethod) {
			return handler(ctx, req)
		}

		start := time.Now()
		reqLogger := logger.WithFields(
			interfaces.String("request_id", requestID(ctx)),
			interfaces.String("method", info.FullMethod))
		ctx = WithContext(ctx, reqLogger)

		resp, err := handler(ctx, req)
		logCall(reqLogger, "gRPC request", info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// StreamServerInterceptor logs every streaming call except health watches.
func StreamServerInterceptor(logger interfaces.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if isHealthProbe(info.FullMethod) {
			return handler(srv, ss)
		}

		start := time.Now()
		reqLogger := logger.WithFields(interfaces.String("request_id", requestID(ss.Context())))
		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithContext(ss.Context(), reqLogger),
		}

		err := handler(srv, wrapped)
		logCall(reqLogger, "gRPC stream", info.FullMethod, time.Since(start), err)
		return err
	}
}

// UnaryRecoveryInterceptor turns a handler panic into an Internal status.
func UnaryRecoveryInterceptor(logger interfaces.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recovered(logger, info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor turns a stream handler panic into an Internal status.
func StreamRecoveryInterceptor(logger interfaces.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recovered(logger, info.FullMethod, r)
			}
		}()
		return handler(srv, ss)
	}
}

func recovered(logger interfaces.Logger, method string, r interface{}) error {
	logger.Error("Panic recovered",
		interfaces.String("method", method),
		interfaces.Any("panic", r),
		interfaces.String("stack", string(debug.Stack())))
	return status.Errorf(codes.Internal, "internal server error")
}

func logCall(logger interfaces.Logger, kind, method string, elapsed time.Duration, err error) {
	code := codes.OK
	if err != nil {
		code = status.Code(err)
	}

	fields := []interfaces.Field{
		interfaces.String("method", method),
		interfaces.Int64("duration_ms", elapsed.Milliseconds()),
		interfaces.String("status", code.String()),
	}
	if err != nil {
		fields = append(fields, interfaces.Error(err))
		logger.Error(kind+" failed", fields...)
		return
	}
	logger.Debug(kind+" completed", fields...)
}

// requestID returns the caller's x-request-id, or a fresh one.
func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("x-request-id"); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.NewString()
}

func isHealthProbe(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
