package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/fundfolio-backend/internal/adapter/grpc"
	"github.com/simaogato/fundfolio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/fundfolio-backend/internal/config"
	"github.com/simaogato/fundfolio-backend/internal/logger"
	"github.com/simaogato/fundfolio-backend/internal/usecase/disposal"
	"github.com/simaogato/fundfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/fundfolio-backend/internal/usecase/snapshot"
)

func main() {
	log := logger.New(os.Getenv("FUNDFOLIO_ENV"))
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log.Desugar())

	// 1. Setup Database
	// Add 2-second delay to ensure Postgres is up (Simple retry)
	time.Sleep(2 * time.Second)

	db, err := postgres.NewDB(cfg.DBConnStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 2. Initialize Repositories (Postgres)
	transactionRepo := postgres.NewTransactionRepository(db)
	priceRepo := postgres.NewPriceRepository(db)
	snapshotRepo := postgres.NewSnapshotRepository(db)
	subjectRepo := postgres.NewSubjectRepository(db)
	holdingRepo := postgres.NewHoldingRepository(db)
	lotRepo := postgres.NewLotRepository(db)

	// 3. Initialize Services (Use Cases)
	snapshotService := snapshot.NewService(transactionRepo, priceRepo, snapshotRepo, subjectRepo, cfg.Snapshot, log)
	portfolioService := portfolio.NewPortfolioService(transactionRepo, priceRepo, subjectRepo, holdingRepo, log)
	portfolioService.FallbackDays = cfg.Snapshot.FallbackDays
	disposalService := disposal.NewDisposalService(lotRepo, log)

	// 4. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(log),
			grpcadapter.AuthInterceptor(cfg.APIToken),
		),
	)

	grpcadapter.NewServer(snapshotService, portfolioService, disposalService).Register(grpcServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.GRPCAddr, err)
	}

	// Start server in a goroutine
	go func() {
		log.Infow("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(grpcServer, log)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(grpcServer *grpclib.Server, log *zap.SugaredLogger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Infow("Shutting down gracefully", "signal", sig.String())

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
}
