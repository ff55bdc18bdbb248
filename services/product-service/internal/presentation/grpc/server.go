package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/bibbank/bib/pkg/auth"
	"github.com/bibbank/bib/pkg/tlsutil"
)

const healthServiceName = "product-service"

// MethodRoles lists the roles allowed to call each ProductService method.
var MethodRoles = auth.MethodRoles{
	MethodOpenAccount:       {auth.RoleAdmin, auth.RoleOperator},
	MethodGetAccount:        {auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor},
	MethodSubmitPostings:    {auth.RoleAdmin, auth.RoleOperator},
	MethodRunScheduledEvent: {auth.RoleAdmin, auth.RoleScheduler},
	MethodCloseAccount:      {auth.RoleAdmin, auth.RoleOperator},
	MethodListSchedules:     {auth.RoleAdmin, auth.RoleOperator, auth.RoleAuditor},
}

// ServerConfig controls listening, TLS and reflection.
type ServerConfig struct {
	TLSCertFile     string
	TLSKeyFile      string
	TLSClientCAFile string
	Port            int
	Reflection      bool
}

// Server wraps a gRPC server for the product service.
type Server struct {
	server  *grpc.Server
	health  *health.Server
	handler *ProductHandler
	logger  *slog.Logger
	port    int
}

func NewServer(handler *ProductHandler, cfg ServerConfig, logger *slog.Logger, jwtService *auth.JWTService, opts ...grpc.ServerOption) (*Server, error) {
	// Health checks bypass authentication.
	authInterceptor := auth.UnaryAuthInterceptor(jwtService, MethodRoles, []string{
		"/grpc.health.v1.Health/Check",
		"/grpc.health.v1.Health/Watch",
	})
	opts = append(opts,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(authInterceptor),
	)

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := tlsutil.ServerTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled", "cert", cfg.TLSCertFile, "mutual", cfg.TLSClientCAFile != "")
	} else {
		logger.Info("gRPC TLS not configured, running without TLS")
	}

	srv := grpc.NewServer(opts...)

	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	RegisterProductServiceServer(srv, handler)

	if cfg.Reflection {
		reflection.Register(srv)
	}

	return &Server{
		server:  srv,
		health:  healthSrv,
		handler: handler,
		port:    cfg.Port,
		logger:  logger,
	}, nil
}

// Start serves on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("gRPC server starting", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop() {
	s.logger.Info("shutting down gRPC server")
	s.health.Shutdown()
	s.server.GracefulStop()
}
