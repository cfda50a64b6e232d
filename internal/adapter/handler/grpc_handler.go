package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/comings/prepaid-api/internal/auth"
	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
	"github.com/comings/prepaid-api/internal/logging"
)

// CodecName is the gRPC content subtype of the ledger service. Clients
// select it with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

const ledgerServiceName = "prepaid.v1.Ledger"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ChargeRequest struct {
	CustomerID     string `json:"customer_id"`
	ActualPayment  int64  `json:"actual_payment"`
	ServiceAmount  int64  `json:"service_amount"`
	PaymentMethod  string `json:"payment_method"`
	Note           string `json:"note,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type DeductRequest struct {
	CustomerID     string `json:"customer_id"`
	Amount         int64  `json:"amount"`
	Note           string `json:"note,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type LedgerReply struct {
	TransactionID string `json:"transaction_id"`
	CustomerID    string `json:"customer_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"new_balance"`
	CreatedAt     string `json:"created_at"`
}

type BalanceRequest struct {
	CustomerID string `json:"customer_id"`
}

type BalanceReply struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Balance    int64  `json:"balance"`
}

type LedgerServer interface {
	Charge(context.Context, *ChargeRequest) (*LedgerReply, error)
	Deduct(context.Context, *DeductRequest) (*LedgerReply, error)
	GetBalance(context.Context, *BalanceRequest) (*BalanceReply, error)
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Charge", Handler: unaryHandler("Charge", func(s LedgerServer, ctx context.Context, in *ChargeRequest) (any, error) {
			return s.Charge(ctx, in)
		})},
		{MethodName: "Deduct", Handler: unaryHandler("Deduct", func(s LedgerServer, ctx context.Context, in *DeductRequest) (any, error) {
			return s.Deduct(ctx, in)
		})},
		{MethodName: "GetBalance", Handler: unaryHandler("GetBalance", func(s LedgerServer, ctx context.Context, in *BalanceRequest) (any, error) {
			return s.GetBalance(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "prepaid/v1/ledger",
}

func unaryHandler[Req any](method string, call func(LedgerServer, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ledgerServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		})
	}
}

// LedgerClient calls prepaid.v1.Ledger with the JSON codec.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out, opts...)
}

func (c *LedgerClient) Charge(ctx context.Context, in *ChargeRequest, opts ...grpc.CallOption) (*LedgerReply, error) {
	out := new(LedgerReply)
	if err := c.invoke(ctx, "Charge", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Deduct(ctx context.Context, in *DeductRequest, opts ...grpc.CallOption) (*LedgerReply, error) {
	out := new(LedgerReply)
	if err := c.invoke(ctx, "Deduct", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) GetBalance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceReply, error) {
	out := new(BalanceReply)
	if err := c.invoke(ctx, "GetBalance", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	ledger *service.LedgerService
	subs   *service.SubscriptionService
	auth   *service.AuthService
	logger *slog.Logger
	errors *errorMapper
}

func NewGRPCHandler(svc Services, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{
		ledger: svc.Ledger,
		subs:   svc.Subscription,
		auth:   svc.Auth,
		logger: logger,
		errors: newErrorMapper(),
	}
}

// AuthInterceptor authenticates the bearer token in the "authorization"
// metadata and logs each call.
func (h *GRPCHandler) AuthInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	start := time.Now()

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			token = auth.ExtractBearerTokenFromHeader(values[0])
		}
	}
	claims, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		h.logger.Warn("grpc call rejected", "method", info.FullMethod, "error", err)
		return nil, h.toStatus(err)
	}

	resp, err := next(withClaims(ctx, claims), req)
	h.logger.Info("grpc call",
		"method", info.FullMethod,
		"shop_id", logging.ShortID(claims.Subject),
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}

func (h *GRPCHandler) Charge(ctx context.Context, req *ChargeRequest) (*LedgerReply, error) {
	shopID := ShopID(ctx)
	if err := h.subs.RequireActive(ctx, shopID); err != nil {
		return nil, h.toStatus(err)
	}
	tx, err := h.ledger.Charge(ctx, service.ChargeInput{
		ShopID:         shopID,
		CustomerID:     req.CustomerID,
		ActualPayment:  req.ActualPayment,
		ServiceAmount:  req.ServiceAmount,
		PaymentMethod:  domain.PaymentMethod(strings.ToUpper(req.PaymentMethod)),
		Note:           strings.TrimSpace(req.Note),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newLedgerReply(tx), nil
}

func (h *GRPCHandler) Deduct(ctx context.Context, req *DeductRequest) (*LedgerReply, error) {
	shopID := ShopID(ctx)
	if err := h.subs.RequireActive(ctx, shopID); err != nil {
		return nil, h.toStatus(err)
	}
	tx, err := h.ledger.Deduct(ctx, service.DeductInput{
		ShopID:         shopID,
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		Note:           strings.TrimSpace(req.Note),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newLedgerReply(tx), nil
}

func (h *GRPCHandler) GetBalance(ctx context.Context, req *BalanceRequest) (*BalanceReply, error) {
	customer, err := h.ledger.Balance(ctx, ShopID(ctx), req.CustomerID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &BalanceReply{CustomerID: customer.ID, Name: customer.Name, Balance: customer.CurrentBalance}, nil
}

func newLedgerReply(tx domain.Transaction) *LedgerReply {
	return &LedgerReply{
		TransactionID: tx.ID,
		CustomerID:    tx.CustomerID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		NewBalance:    tx.BalanceAfter,
		CreatedAt:     seoulTime(tx.CreatedAt),
	}
}

var grpcCodes = map[int]codes.Code{
	http.StatusBadRequest:          codes.FailedPrecondition,
	http.StatusUnauthorized:        codes.Unauthenticated,
	http.StatusForbidden:           codes.PermissionDenied,
	http.StatusNotFound:            codes.NotFound,
	http.StatusConflict:            codes.AlreadyExists,
	http.StatusUnprocessableEntity: codes.InvalidArgument,
	http.StatusNotImplemented:      codes.Unimplemented,
	http.StatusGatewayTimeout:      codes.DeadlineExceeded,
	http.StatusServiceUnavailable:  codes.Canceled,
}

func (h *GRPCHandler) toStatus(err error) error {
	httpStatus, message := h.errors.Map(err)
	code, ok := grpcCodes[httpStatus]
	if !ok {
		h.logger.Error("grpc call failed", "error", err)
		code = codes.Internal
	}
	return status.Error(code, message)
}
