package grpc

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"parkrep/core/internal/config"
	"parkrep/core/internal/logging"
)

// SharedSecretMetadataKey carries the shared secret on every call.
const SharedSecretMetadataKey = "x-parkrep-shared-secret"

// ServerOptions builds the transport and authentication options the configuration
// asks for: mTLS when certificate paths are set and a shared secret check when a
// secret is set. Both may be active at once.
func ServerOptions(cfg *config.Config, logger *logging.Logger) ([]grpc.ServerOption, error) {
	if cfg == nil {
		return nil, fmt.Errorf("grpc config required")
	}
	if logger == nil {
		logger = logging.L()
	}
	var opts []grpc.ServerOption

	if cfg.GRPCServerCertPath != "" {
		creds, err := loadMTLSCredentials(cfg.GRPCServerCertPath, cfg.GRPCServerKeyPath, cfg.GRPCClientCAPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
		logger.Info("gRPC mTLS enabled")
	}
	if secret := strings.TrimSpace(cfg.GRPCSharedSecret); secret != "" {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(newSharedSecretUnaryInterceptor(secret)),
			grpc.ChainStreamInterceptor(newSharedSecretStreamInterceptor(secret)),
		)
		logger.Info("gRPC shared-secret authentication enabled")
	}
	if len(opts) == 0 {
		logger.Warn("gRPC replay service is unauthenticated")
	}
	return opts, nil
}

func checkSharedSecret(ctx context.Context, secret string) error {
	if secret == "" {
		return status.Error(codes.Unauthenticated, "shared secret not configured")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	candidate := extractSharedSecret(md)
	if candidate == "" {
		return status.Error(codes.Unauthenticated, "missing shared secret")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid shared secret")
	}
	return nil
}

func newSharedSecretUnaryInterceptor(secret string) grpc.UnaryServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := checkSharedSecret(ctx, normalized); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func newSharedSecretStreamInterceptor(secret string) grpc.StreamServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := checkSharedSecret(ss.Context(), normalized); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func extractSharedSecret(md metadata.MD) string {
	for _, value := range md.Get(SharedSecretMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}

func loadMTLSCredentials(certPath, keyPath, caPath string) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load server keypair: %w", err)
	}
	caBytes, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("failed to parse client ca bundle")
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}
