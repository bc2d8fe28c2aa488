package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	// TripServiceName is the fully-qualified name of the TripService.
	TripServiceName = "tripsplit.v1.TripService"
	// SplitServiceName is the fully-qualified name of the SplitService.
	SplitServiceName = "tripsplit.v1.SplitService"
)

// Procedure paths, as routed by the handlers and used by the clients.
const (
	TripServiceCreateTripProcedure           = "/" + TripServiceName + "/CreateTrip"
	TripServiceGetTripProcedure              = "/" + TripServiceName + "/GetTrip"
	TripServiceAddExpenseProcedure           = "/" + TripServiceName + "/AddExpense"
	TripServiceListExpensesProcedure         = "/" + TripServiceName + "/ListExpenses"
	TripServiceDeleteExpenseProcedure        = "/" + TripServiceName + "/DeleteExpense"
	TripServiceGetSettlementProcedure        = "/" + TripServiceName + "/GetSettlement"
	TripServiceSettleTransferProcedure       = "/" + TripServiceName + "/SettleTransfer"
	TripServiceListSettledTransfersProcedure = "/" + TripServiceName + "/ListSettledTransfers"

	SplitServiceComputeBreakdownProcedure = "/" + SplitServiceName + "/ComputeBreakdown"
	SplitServiceComputeSharesProcedure    = "/" + SplitServiceName + "/ComputeShares"
)

// TripServiceHandler is implemented by TripService.
type TripServiceHandler interface {
	CreateTrip(context.Context, *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error)
	GetTrip(context.Context, *connect.Request[GetTripRequest]) (*connect.Response[GetTripResponse], error)
	AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	GetSettlement(context.Context, *connect.Request[GetSettlementRequest]) (*connect.Response[GetSettlementResponse], error)
	SettleTransfer(context.Context, *connect.Request[SettleTransferRequest]) (*connect.Response[SettleTransferResponse], error)
	ListSettledTransfers(context.Context, *connect.Request[ListSettledTransfersRequest]) (*connect.Response[ListSettledTransfersResponse], error)
}

// SplitServiceHandler is implemented by SplitService.
type SplitServiceHandler interface {
	ComputeBreakdown(context.Context, *connect.Request[ComputeBreakdownRequest]) (*connect.Response[ComputeBreakdownResponse], error)
	ComputeShares(context.Context, *connect.Request[ComputeSharesRequest]) (*connect.Response[ComputeSharesResponse], error)
}

// routes serves each procedure path with its handler.
type routes map[string]http.Handler

func (r routes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if h, ok := r[req.URL.Path]; ok {
		h.ServeHTTP(w, req)
		return
	}
	http.NotFound(w, req)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewTripServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewTripServiceHandler(svc TripServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + TripServiceName + "/", routes{
		TripServiceCreateTripProcedure:           connect.NewUnaryHandler(TripServiceCreateTripProcedure, svc.CreateTrip, opts...),
		TripServiceGetTripProcedure:              connect.NewUnaryHandler(TripServiceGetTripProcedure, svc.GetTrip, opts...),
		TripServiceAddExpenseProcedure:           connect.NewUnaryHandler(TripServiceAddExpenseProcedure, svc.AddExpense, opts...),
		TripServiceListExpensesProcedure:         connect.NewUnaryHandler(TripServiceListExpensesProcedure, svc.ListExpenses, opts...),
		TripServiceDeleteExpenseProcedure:        connect.NewUnaryHandler(TripServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		TripServiceGetSettlementProcedure:        connect.NewUnaryHandler(TripServiceGetSettlementProcedure, svc.GetSettlement, opts...),
		TripServiceSettleTransferProcedure:       connect.NewUnaryHandler(TripServiceSettleTransferProcedure, svc.SettleTransfer, opts...),
		TripServiceListSettledTransfersProcedure: connect.NewUnaryHandler(TripServiceListSettledTransfersProcedure, svc.ListSettledTransfers, opts...),
	}
}

// NewSplitServiceHandler builds an HTTP handler for the stateless engines.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + SplitServiceName + "/", routes{
		SplitServiceComputeBreakdownProcedure: connect.NewUnaryHandler(SplitServiceComputeBreakdownProcedure, svc.ComputeBreakdown, opts...),
		SplitServiceComputeSharesProcedure:    connect.NewUnaryHandler(SplitServiceComputeSharesProcedure, svc.ComputeShares, opts...),
	}
}

// TripServiceClient calls a TripService over HTTP.
type TripServiceClient struct {
	createTrip           *connect.Client[CreateTripRequest, CreateTripResponse]
	getTrip              *connect.Client[GetTripRequest, GetTripResponse]
	addExpense           *connect.Client[AddExpenseRequest, AddExpenseResponse]
	listExpenses         *connect.Client[ListExpensesRequest, ListExpensesResponse]
	deleteExpense        *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	getSettlement        *connect.Client[GetSettlementRequest, GetSettlementResponse]
	settleTransfer       *connect.Client[SettleTransferRequest, SettleTransferResponse]
	listSettledTransfers *connect.Client[ListSettledTransfersRequest, ListSettledTransfersResponse]
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewTripServiceClient constructs a client for the TripService at baseURL
// (e.g. http://localhost:8080).
func NewTripServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TripServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &TripServiceClient{
		createTrip:           connect.NewClient[CreateTripRequest, CreateTripResponse](httpClient, baseURL+TripServiceCreateTripProcedure, opts...),
		getTrip:              connect.NewClient[GetTripRequest, GetTripResponse](httpClient, baseURL+TripServiceGetTripProcedure, opts...),
		addExpense:           connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+TripServiceAddExpenseProcedure, opts...),
		listExpenses:         connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+TripServiceListExpensesProcedure, opts...),
		deleteExpense:        connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+TripServiceDeleteExpenseProcedure, opts...),
		getSettlement:        connect.NewClient[GetSettlementRequest, GetSettlementResponse](httpClient, baseURL+TripServiceGetSettlementProcedure, opts...),
		settleTransfer:       connect.NewClient[SettleTransferRequest, SettleTransferResponse](httpClient, baseURL+TripServiceSettleTransferProcedure, opts...),
		listSettledTransfers: connect.NewClient[ListSettledTransfersRequest, ListSettledTransfersResponse](httpClient, baseURL+TripServiceListSettledTransfersProcedure, opts...),
	}
}

func (c *TripServiceClient) CreateTrip(ctx context.Context, req *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error) {
	return c.createTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) GetTrip(ctx context.Context, req *connect.Request[GetTripRequest]) (*connect.Response[GetTripResponse], error) {
	return c.getTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *TripServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *TripServiceClient) GetSettlement(ctx context.Context, req *connect.Request[GetSettlementRequest]) (*connect.Response[GetSettlementResponse], error) {
	return c.getSettlement.CallUnary(ctx, req)
}

func (c *TripServiceClient) SettleTransfer(ctx context.Context, req *connect.Request[SettleTransferRequest]) (*connect.Response[SettleTransferResponse], error) {
	return c.settleTransfer.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListSettledTransfers(ctx context.Context, req *connect.Request[ListSettledTransfersRequest]) (*connect.Response[ListSettledTransfersResponse], error) {
	return c.listSettledTransfers.CallUnary(ctx, req)
}

// SplitServiceClient calls a SplitService over HTTP.
type SplitServiceClient struct {
	computeBreakdown *connect.Client[ComputeBreakdownRequest, ComputeBreakdownResponse]
	computeShares    *connect.Client[ComputeSharesRequest, ComputeSharesResponse]
}

// NewSplitServiceClient constructs a client for the SplitService at baseURL.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &SplitServiceClient{
		computeBreakdown: connect.NewClient[ComputeBreakdownRequest, ComputeBreakdownResponse](httpClient, baseURL+SplitServiceComputeBreakdownProcedure, opts...),
		computeShares:    connect.NewClient[ComputeSharesRequest, ComputeSharesResponse](httpClient, baseURL+SplitServiceComputeSharesProcedure, opts...),
	}
}

func (c *SplitServiceClient) ComputeBreakdown(ctx context.Context, req *connect.Request[ComputeBreakdownRequest]) (*connect.Response[ComputeBreakdownResponse], error) {
	return c.computeBreakdown.CallUnary(ctx, req)
}

func (c *SplitServiceClient) ComputeShares(ctx context.Context, req *connect.Request[ComputeSharesRequest]) (*connect.Response[ComputeSharesResponse], error) {
	return c.computeShares.CallUnary(ctx, req)
}
