package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/logger"
	"github.com/simaogato/fundfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/fundfolio-backend/internal/usecase/snapshot"
	"github.com/simaogato/fundfolio-backend/internal/usecase/xirr"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "fundfolio.v1.PortfolioService"

// SnapshotService is the snapshot behaviour the server needs
type SnapshotService interface {
	Rebuild(ctx context.Context, subjectID uuid.UUID, scope domain.Scope) ([]domain.Snapshot, error)
	History(ctx context.Context, subjectID uuid.UUID, scope domain.Scope) (*snapshot.History, error)
}

// PortfolioService is the dashboard behaviour the server needs
type PortfolioService interface {
	PersonalSummary(ctx context.Context, userID uuid.UUID, asOf time.Time) (*portfolio.Summary, error)
	FamilySummary(ctx context.Context, familyID uuid.UUID, asOf time.Time) (*portfolio.Summary, error)
}

// DisposalService is the lot book behaviour the server needs
type DisposalService interface {
	ProcessSell(ctx context.Context, tx domain.Transaction) (*domain.Disposal, error)
}

// Server implements the PortfolioService gRPC server.
// Requests and responses are google.protobuf.Struct messages.
type Server struct {
	SnapshotService  SnapshotService
	PortfolioService PortfolioService
	DisposalService  DisposalService
}

// NewServer creates a new gRPC server instance
func NewServer(snapshots SnapshotService, portfolios PortfolioService, disposals DisposalService) *Server {
	return &Server{
		SnapshotService:  snapshots,
		PortfolioService: portfolios,
		DisposalService:  disposals,
	}
}

// Register attaches the server to a grpc.Server
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&serviceDesc, s)
}

// RebuildSnapshots handles the RebuildSnapshots RPC
func (s *Server) RebuildSnapshots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	subjectID, scope, err := parseSubject(req)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.SnapshotService.Rebuild(ctx, subjectID, scope)
	if err != nil {
		return nil, mapError(err)
	}
	logger.FromContext(ctx).Infow("snapshots rebuilt on request",
		"subject_id", subjectID, "scope", scope, "snapshots", len(snapshots))

	return newStruct(map[string]interface{}{
		"subject_id": subjectID.String(),
		"scope":      string(scope),
		"snapshots":  len(snapshots),
	})
}

// ListSnapshots handles the ListSnapshots RPC
func (s *Server) ListSnapshots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	subjectID, scope, err := parseSubject(req)
	if err != nil {
		return nil, err
	}

	history, err := s.SnapshotService.History(ctx, subjectID, scope)
	if err != nil {
		return nil, mapError(err)
	}

	items := make([]interface{}, 0, len(history.Snapshots))
	for _, snap := range history.Snapshots {
		items = append(items, snapshotToMap(snap))
	}

	resp := map[string]interface{}{
		"subject_id": subjectID.String(),
		"scope":      string(scope),
		"snapshots":  items,
		"summary":    nil,
	}
	if sum := history.Summary; sum != nil {
		resp["summary"] = map[string]interface{}{
			"points":        sum.Points,
			"first":         snapshotToMap(sum.First),
			"last":          snapshotToMap(sum.Last),
			"peak":          snapshotToMap(sum.Peak),
			"trough":        snapshotToMap(sum.Trough),
			"max_drawdown":  sum.MaxDrawdown,
			"mean_change":   sum.MeanChange,
			"stddev_change": sum.StdDevChange,
		}
	}
	return newStruct(resp)
}

// GetPortfolioSummary handles the GetPortfolioSummary RPC
func (s *Server) GetPortfolioSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	subjectID, scope, err := parseSubject(req)
	if err != nil {
		return nil, err
	}

	var asOf time.Time
	if raw := stringField(req, "as_of"); raw != "" {
		asOf, err = domain.ParseDate(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid as_of: %v", err)
		}
	}

	var summary *portfolio.Summary
	if scope == domain.ScopeFamily {
		summary, err = s.PortfolioService.FamilySummary(ctx, subjectID, asOf)
	} else {
		summary, err = s.PortfolioService.PersonalSummary(ctx, subjectID, asOf)
	}
	if err != nil {
		return nil, mapError(err)
	}

	holdings := make([]interface{}, 0, len(summary.Holdings))
	for _, h := range summary.Holdings {
		row := map[string]interface{}{
			"holding_id":        h.HoldingID.String(),
			"name":              h.Name,
			"category":          h.Category,
			"quantity":          h.Quantity.String(),
			"cost_basis":        h.CostBasis.String(),
			"priced":            h.Priced,
			"current_value":     h.CurrentValue.String(),
			"absolute_gain":     h.AbsoluteGain.String(),
			"realized_gain":     h.RealizedGain.String(),
			"xirr":              rateValue(h.XIRR),
			"xirr_status":       h.XIRR.Status.String(),
			"average_days_held": h.AverageDaysHeld,
			"portfolio_share":   h.PortfolioShare.String(),
			"open_lots":         h.OpenLots,
		}
		if h.Priced {
			row["price"] = h.Price.String()
			row["price_date"] = h.PriceDate.Format(time.DateOnly)
		}
		if h.Error != "" {
			row["error"] = h.Error
		}
		holdings = append(holdings, row)
	}

	return newStruct(map[string]interface{}{
		"subject_id":        summary.SubjectID.String(),
		"scope":             string(summary.Scope),
		"as_of":             summary.AsOf.Format(time.DateOnly),
		"holdings":          holdings,
		"total_cost":        summary.TotalCost.String(),
		"total_value":       summary.TotalValue.String(),
		"total_gain":        summary.TotalGain.String(),
		"realized_gain":     summary.RealizedGain.String(),
		"xirr":              rateValue(summary.XIRR),
		"xirr_status":       summary.XIRR.Status.String(),
		"average_days_held": summary.AverageDaysHeld,
	})
}

// ProcessSell handles the ProcessSell RPC
func (s *Server) ProcessSell(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()["transaction"].GetStructValue()
	if fields == nil {
		return nil, status.Error(codes.InvalidArgument, "transaction is required")
	}

	tx, err := parseSell(fields)
	if err != nil {
		return nil, err
	}

	disposal, err := s.DisposalService.ProcessSell(ctx, tx)
	if err != nil {
		return nil, mapError(err)
	}

	consumptions := make([]interface{}, 0, len(disposal.Consumptions))
	for _, c := range disposal.Consumptions {
		consumptions = append(consumptions, map[string]interface{}{
			"lot_id":     c.LotID.String(),
			"quantity":   c.Quantity.String(),
			"cost_basis": c.CostBasis.String(),
		})
	}

	return newStruct(map[string]interface{}{
		"disposal_id":        disposal.ID.String(),
		"quantity":           disposal.Quantity.String(),
		"proceeds":           disposal.Proceeds.String(),
		"cost_basis_removed": disposal.CostBasisRemoved.String(),
		"realized_gain":      disposal.RealizedGain.String(),
		"consumptions":       consumptions,
	})
}

func parseSubject(req *structpb.Struct) (uuid.UUID, domain.Scope, error) {
	subjectID, err := uuid.Parse(stringField(req, "subject_id"))
	if err != nil {
		return uuid.Nil, "", status.Errorf(codes.InvalidArgument, "invalid subject_id format: %v", err)
	}

	scope, err := domain.ParseScope(strings.ToUpper(stringField(req, "scope")))
	if err != nil {
		return uuid.Nil, "", status.Errorf(codes.InvalidArgument, "%v", err)
	}
	return subjectID, scope, nil
}

func parseSell(fields *structpb.Struct) (domain.Transaction, error) {
	id, err := uuid.Parse(stringField(fields, "id"))
	if err != nil {
		return domain.Transaction{}, status.Errorf(codes.InvalidArgument, "invalid transaction id format: %v", err)
	}
	userID, err := uuid.Parse(stringField(fields, "user_id"))
	if err != nil {
		return domain.Transaction{}, status.Errorf(codes.InvalidArgument, "invalid user_id format: %v", err)
	}
	holdingID, err := uuid.Parse(stringField(fields, "holding_id"))
	if err != nil {
		return domain.Transaction{}, status.Errorf(codes.InvalidArgument, "invalid holding_id format: %v", err)
	}
	date, err := domain.ParseDate(stringField(fields, "date"))
	if err != nil {
		return domain.Transaction{}, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	quantity, err := decimal.NewFromString(stringField(fields, "quantity"))
	if err != nil {
		return domain.Transaction{}, status.Errorf(codes.InvalidArgument, "invalid quantity format: %v", err)
	}
	amount, err := decimal.NewFromString(stringField(fields, "gross_amount"))
	if err != nil {
		return domain.Transaction{}, status.Errorf(codes.InvalidArgument, "invalid gross_amount format: %v", err)
	}

	return domain.Transaction{
		ID:          id,
		UserID:      userID,
		HoldingID:   holdingID,
		Date:        date,
		Kind:        domain.TransactionKindSell,
		Quantity:    quantity.Abs(),
		GrossAmount: amount.Abs(),
	}, nil
}

func stringField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func snapshotToMap(snap domain.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"id":               snap.ID.String(),
		"as_of_date":       snap.AsOfDate.Format(time.DateOnly),
		"aggregate_value":  snap.AggregateValue.String(),
		"holdings_valued":  snap.HoldingsValued,
		"holdings_skipped": snap.HoldingsSkipped,
		"incomplete":       snap.Incomplete(),
	}
}

// rateValue leaves indeterminate rates as null rather than 0
func rateValue(r xirr.Result) interface{} {
	if !r.Determinate() {
		return nil
	}
	return r.Rate
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s", err)
	case errors.Is(err, domain.ErrInsufficientLots):
		return status.Errorf(codes.FailedPrecondition, "%s", err)
	case errors.Is(err, domain.ErrDisposalAlreadyApplied):
		return status.Errorf(codes.AlreadyExists, "%s", err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", err)
	}

	errorMsg := err.Error()

	// Map common validation errors to InvalidArgument
	if strings.Contains(errorMsg, "must be") ||
		strings.Contains(errorMsg, "is required") ||
		strings.Contains(errorMsg, "invalid") {
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
