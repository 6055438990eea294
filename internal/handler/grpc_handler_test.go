package handler

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/client"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository/memory"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/service"
)

func setupGRPCTest(t *testing.T) (*grpc.ClientConn, *service.Services) {
	t.Helper()
	store := memory.NewStore()
	for _, u := range []*domain.User{
		{ID: "u-func", Name: "Ana Souza", Email: "ana@moncoes.sp.gov.br", Role: domain.RoleFuncionario, Active: true},
		{ID: "u-tec", Name: "Carlos Técnico", Email: "carlos@moncoes.sp.gov.br", Role: domain.RoleTecnico, Active: true},
		{ID: "u-apr", Name: "Elisa Aprovadora", Email: "elisa@moncoes.sp.gov.br", Role: domain.RoleAprovador, Active: true},
		{ID: "u-ger", Name: "Fábio Gestor", Email: "fabio@moncoes.sp.gov.br", Role: domain.RoleGestor, Active: true},
	} {
		store.PutUser(u)
	}
	store.PutSupplier(&domain.Supplier{ID: "s1", Name: "Info Center Ltda", Email: "vendas@infocenter.com.br", Active: true})
	store.PutSupplier(&domain.Supplier{ID: "s2", Name: "Tech Supply ME", Email: "orcamento@techsupply.com.br", Active: true})

	svcs := service.New(service.Options{
		Store:  store,
		Mailer: client.NewLogMailer(zerolog.Nop()),
		Blobs:  client.NewMemoryStorage(),
		Log:    logger.Nop(),
	})
	t.Cleanup(svcs.Wait)

	h := NewGRPCHandler(svcs, logger.Nop())
	srv := grpc.NewServer(grpc.UnaryInterceptor(h.UnaryInterceptor()))
	RegisterServiceOrdersServer(srv, h)
	healthpb.RegisterHealthServer(srv, health.NewServer())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, svcs
}

func invoke(t *testing.T, conn *grpc.ClientConn, userID, method string, in map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	ctx := context.Background()
	if userID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, MetadataUserID, userID)
	}
	out := &structpb.Struct{}
	err = conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out)
	return out, err
}

func TestGRPCQuoteFlow(t *testing.T) {
	conn, svcs := setupGRPCTest(t)
	ctx := context.Background()

	order, err := svcs.Orders.Create(ctx, domain.Actor{ID: "u-func", Role: domain.RoleFuncionario}, &service.CreateServiceOrderRequest{
		Title: "Switch queimado", Description: "Sem rede no almoxarifado", Category: domain.CategoryRede,
	})
	require.NoError(t, err)

	_, err = invoke(t, conn, "", "GetServiceOrder", map[string]any{"id": order.ID})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	got, err := invoke(t, conn, "u-func", "GetServiceOrder", map[string]any{"id": order.ID})
	require.NoError(t, err)
	require.Equal(t, order.Number, got.Fields["number"].GetStringValue())

	_, err = invoke(t, conn, "u-tec", "GetServiceOrder", map[string]any{"id": "missing"})
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(t, conn, "u-func", "TransitionServiceOrder", map[string]any{"orderId": order.ID, "targetStatus": "EM_ANALISE"})
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = invoke(t, conn, "u-tec", "TransitionServiceOrder", map[string]any{"orderId": order.ID, "targetStatus": "FINALIZADA"})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	res, err := invoke(t, conn, "u-tec", "TransitionServiceOrder", map[string]any{"orderId": order.ID, "targetStatus": "EM_ANALISE"})
	require.NoError(t, err)
	require.Equal(t, "EM_ANALISE", res.Fields["newStatus"].GetStringValue())

	_, err = invoke(t, conn, "u-tec", "TransitionServiceOrder", map[string]any{
		"orderId":               order.ID,
		"targetStatus":          "AGUARDANDO_MATERIAL",
		"materialDescription":   "Switch 24 portas",
		"materialJustification": "Equipamento queimado",
	})
	require.NoError(t, err)

	_, err = invoke(t, conn, "u-ger", "SolicitQuotes", map[string]any{
		"orderId":     order.ID,
		"supplierIds": []any{"s1"},
		"items":       []any{map[string]any{"description": "Switch 24 portas", "quantity": 1}},
	})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	quotes, err := invoke(t, conn, "u-ger", "SolicitQuotes", map[string]any{
		"orderId":     order.ID,
		"supplierIds": []any{"s1", "s2"},
		"items":       []any{map[string]any{"description": "Switch 24 portas", "quantity": 1}},
	})
	require.NoError(t, err)
	list := quotes.Fields["items"].GetListValue().GetValues()
	require.Len(t, list, 2)
	quoteID := list[0].GetStructValue().Fields["id"].GetStringValue()

	_, err = invoke(t, conn, "u-apr", "DecideQuote", map[string]any{"quoteId": quoteID, "action": "reject"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	decision, err := invoke(t, conn, "u-apr", "DecideQuote", map[string]any{"quoteId": quoteID, "action": "reject", "reason": "Preço acima do mercado"})
	require.NoError(t, err)
	rejected := decision.Fields["quote"].GetStructValue()
	require.Equal(t, string(domain.QuoteRejeitado), rejected.Fields["status"].GetStringValue())
}

func TestGRPCValidatesRequestFields(t *testing.T) {
	conn, svcs := setupGRPCTest(t)

	order, err := svcs.Orders.Create(context.Background(), domain.Actor{ID: "u-func", Role: domain.RoleFuncionario}, &service.CreateServiceOrderRequest{
		Title: "Impressora sem toner", Description: "Setor de protocolo", Category: domain.CategoryImpressora,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		method string
		in     map[string]any
		field  string
	}{
		{"missing target status", "u-tec", "TransitionServiceOrder", map[string]any{"orderId": order.ID}, "targetStatus"},
		{"single supplier", "u-ger", "SolicitQuotes", map[string]any{
			"orderId":     order.ID,
			"supplierIds": []any{"s1"},
			"items":       []any{map[string]any{"description": "Toner", "quantity": 1}},
		}, "supplierIds"},
		{"item without quantity", "u-ger", "SolicitQuotes", map[string]any{
			"orderId":     order.ID,
			"supplierIds": []any{"s1", "s2"},
			"items":       []any{map[string]any{"description": "Toner"}},
		}, "items[0].quantity"},
		{"unknown action", "u-apr", "DecideQuote", map[string]any{"quoteId": "q1", "action": "hold"}, "action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, conn, tt.userID, tt.method, tt.in)
			st := status.Convert(err)
			require.Equal(t, codes.InvalidArgument, st.Code())
			require.True(t, strings.HasPrefix(st.Message(), tt.field+": "), "message %q", st.Message())
		})
	}

	// Nothing reached the service layer.
	got, err := svcs.Orders.Get(context.Background(), domain.Actor{ID: "u-tec", Role: domain.RoleTecnico}, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAberta, got.Status)
}

func TestGRPCHealthBypassesActor(t *testing.T) {
	conn, _ := setupGRPCTest(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestMapErrorToGRPC(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{errors.InvalidInput("title", "is required"), codes.InvalidArgument},
		{errors.UnauthorizedRole("no"), codes.PermissionDenied},
		{errors.IllegalTransition("no"), codes.FailedPrecondition},
		{errors.NotFound("service order", "x"), codes.NotFound},
		{errors.Conflict("stale"), codes.Aborted},
		{errors.New(errors.ErrCodeUnauthenticated, "who"), codes.Unauthenticated},
		{errors.New(errors.ErrCodeInternal, "db down"), codes.Internal},
		{context.DeadlineExceeded, codes.Internal},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, status.Code(mapErrorToGRPC(tt.err)), "%v", tt.err)
	}
	require.NoError(t, mapErrorToGRPC(nil))
	require.Equal(t, "internal error", status.Convert(mapErrorToGRPC(errors.New(errors.ErrCodeInternal, "db down"))).Message())
}
