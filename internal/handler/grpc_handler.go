package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "portal.v1.ServiceOrders"

// MetadataUserID is the gRPC metadata key carrying the caller's user id.
const MetadataUserID = "x-user-id"

// ServiceOrdersServer is the server API of portal.v1.ServiceOrders. Requests
// and responses are google.protobuf.Struct documents shaped like the HTTP
// JSON bodies.
type ServiceOrdersServer interface {
	GetServiceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransitionServiceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SolicitQuotes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DecideQuote(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// GRPCHandler implements the ServiceOrders gRPC interface
type GRPCHandler struct {
	services *service.Services
	log      *logger.Logger
	validate *validator.Validate
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(services *service.Services, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		services: services,
		log:      log.Component("grpc"),
		validate: newValidator(),
	}
}

// RegisterServiceOrdersServer registers srv on s.
func RegisterServiceOrdersServer(s grpc.ServiceRegistrar, srv ServiceOrdersServer) {
	s.RegisterService(&serviceOrdersDesc, srv)
}

type getServiceOrderMsg struct {
	ID string `json:"id"`
}

type transitionMsg struct {
	OrderID string `json:"orderId"`
	transitionBody
}

type solicitMsg struct {
	OrderID string `json:"orderId"`
	solicitBody
}

type decideMsg struct {
	QuoteID string `json:"quoteId"`
	decisionBody
}

// GetServiceOrder returns one order.
func (h *GRPCHandler) GetServiceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var msg getServiceOrderMsg
	if err := fromStruct(req, &msg); err != nil {
		return nil, mapErrorToGRPC(err)
	}
	order, err := h.services.Orders.Get(ctx, actorFrom(ctx), msg.ID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(order)
}

// TransitionServiceOrder moves an order to targetStatus.
func (h *GRPCHandler) TransitionServiceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var msg transitionMsg
	if err := h.decode(req, &msg, &msg.transitionBody); err != nil {
		return nil, mapErrorToGRPC(err)
	}
	h.log.Debug().
		Str("order_id", msg.OrderID).
		Str("target_status", string(msg.TargetStatus)).
		Msg("gRPC TransitionServiceOrder called")

	res, err := h.services.Orders.Transition(ctx, actorFrom(ctx), msg.request(msg.OrderID))
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(res)
}

// SolicitQuotes requests quotes from two or more suppliers.
func (h *GRPCHandler) SolicitQuotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var msg solicitMsg
	if err := h.decode(req, &msg, &msg.solicitBody); err != nil {
		return nil, mapErrorToGRPC(err)
	}
	quotes, err := h.services.Quotes.Solicit(ctx, actorFrom(ctx), &service.SolicitQuotesRequest{
		OrderID:      msg.OrderID,
		SupplierIDs:  msg.SupplierIDs,
		Items:        items(msg.Items),
		Observations: msg.Observations,
	})
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(listResponse[*domain.Quote]{Items: quotes, Total: len(quotes)})
}

// DecideQuote approves or rejects a quote.
func (h *GRPCHandler) DecideQuote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var msg decideMsg
	if err := h.decode(req, &msg, &msg.decisionBody); err != nil {
		return nil, mapErrorToGRPC(err)
	}
	res, err := h.services.Quotes.Decide(ctx, actorFrom(ctx), &service.DecideQuoteRequest{
		QuoteID:         msg.QuoteID,
		Action:          msg.Action,
		Reason:          msg.Reason,
		Observations:    msg.Observations,
		DeliveryAddress: msg.DeliveryAddress,
	})
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(res)
}

// UnaryInterceptor resolves the x-user-id metadata into the caller's actor and
// logs every ServiceOrders call. Other services (health, reflection) pass through.
func (h *GRPCHandler) UnaryInterceptor() grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		start := time.Now()

		var userID string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(MetadataUserID); len(v) > 0 {
				userID = v[0]
			}
		}
		actor, err := h.services.Directory.ResolveActor(ctx, userID)
		if err != nil {
			return nil, mapErrorToGRPC(err)
		}

		resp, err := handler(withActor(ctx, actor), req)
		ev := h.log.Info()
		if status.Code(err) == codes.Internal {
			ev = h.log.Error().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("user_id", actor.ID).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}

// decode fills dst from in and validates body, the HTTP DTO embedded in dst,
// with the same rules and field names as the HTTP surface.
func (h *GRPCHandler) decode(in *structpb.Struct, dst, body any) error {
	if err := fromStruct(in, dst); err != nil {
		return err
	}
	if err := h.validate.Struct(body); err != nil {
		return validationError(err)
	}
	return nil
}

func fromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid request")
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// mapErrorToGRPC converts service errors to gRPC status errors
func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}

	var e *errors.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, "internal error")
	}

	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}

	switch e.Code {
	case errors.ErrCodeValidation:
		return status.Error(codes.InvalidArgument, msg)
	case errors.ErrCodeUnauthorizedRole:
		return status.Error(codes.PermissionDenied, msg)
	case errors.ErrCodeIllegalTransition:
		return status.Error(codes.FailedPrecondition, msg)
	case errors.ErrCodeNotFound:
		return status.Error(codes.NotFound, msg)
	case errors.ErrCodeConflict:
		return status.Error(codes.Aborted, msg)
	case errors.ErrCodeUnauthenticated:
		return status.Error(codes.Unauthenticated, msg)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func unaryMethod(call func(ServiceOrdersServer, context.Context, *structpb.Struct) (*structpb.Struct, error), fullMethod string) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ServiceOrdersServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ServiceOrdersServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceOrdersDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ServiceOrdersServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetServiceOrder",
			Handler:    unaryMethod(ServiceOrdersServer.GetServiceOrder, "/"+ServiceName+"/GetServiceOrder"),
		},
		{
			MethodName: "TransitionServiceOrder",
			Handler:    unaryMethod(ServiceOrdersServer.TransitionServiceOrder, "/"+ServiceName+"/TransitionServiceOrder"),
		},
		{
			MethodName: "SolicitQuotes",
			Handler:    unaryMethod(ServiceOrdersServer.SolicitQuotes, "/"+ServiceName+"/SolicitQuotes"),
		},
		{
			MethodName: "DecideQuote",
			Handler:    unaryMethod(ServiceOrdersServer.DecideQuote, "/"+ServiceName+"/DecideQuote"),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portal/v1/service_orders.proto",
}
