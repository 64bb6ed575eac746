package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/service"
)

// CodecName is the content subtype clients select with grpc.CallContentSubtype.
const CodecName = "json"

const assistantService = "shopassist.v1.Assistant"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type TurnRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

type DialogueRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// AssistantServer is the gRPC surface of the conversation services.
type AssistantServer interface {
	HandleTurn(context.Context, *TurnRequest) (*domain.TurnResponse, error)
	Recommend(context.Context, *RecommendRequest) (*RecommendResponse, error)
	Dialogue(context.Context, *DialogueRequest) (*service.DialogueReply, error)
}

type GRPCHandler struct {
	agent    *service.AgentService
	dialogue *service.DialogueService
}

var _ AssistantServer = (*GRPCHandler)(nil)

func NewGRPCHandler(agent *service.AgentService, dialogue *service.DialogueService) *GRPCHandler {
	return &GRPCHandler{agent: agent, dialogue: dialogue}
}

func (h *GRPCHandler) HandleTurn(ctx context.Context, req *TurnRequest) (*domain.TurnResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, status.Error(codes.InvalidArgument, "message is required")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	resp := h.agent.HandleTurn(ctx, sessionID, req.UserID, req.Message)
	return &resp, nil
}

func (h *GRPCHandler) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	if req.K < 0 {
		return nil, status.Error(codes.InvalidArgument, "k must not be negative")
	}
	hits := h.agent.Recommend(ctx, req.Query, req.K)
	out := &RecommendResponse{Results: make([]RecommendResult, 0, len(hits))}
	for _, hit := range hits {
		out.Results = append(out.Results, RecommendResult{ID: hit.ProductID, Score: hit.Score})
	}
	return out, nil
}

func (h *GRPCHandler) Dialogue(ctx context.Context, req *DialogueRequest) (*service.DialogueReply, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	reply := h.dialogue.HandleMessage(ctx, req.SessionID, req.UserID, req.Message)
	return &reply, nil
}

// RegisterAssistantServer attaches srv to s under AssistantServiceDesc.
func RegisterAssistantServer(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&AssistantServiceDesc, srv)
}

var AssistantServiceDesc = grpc.ServiceDesc{
	ServiceName: assistantService,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HandleTurn", Handler: handleTurnHandler},
		{MethodName: "Recommend", Handler: recommendHandler},
		{MethodName: "Dialogue", Handler: dialogueHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shopassist/v1/assistant",
}

func fullMethod(name string) string {
	return "/" + assistantService + "/" + name
}

func handleTurnHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TurnRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).HandleTurn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("HandleTurn")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).HandleTurn(ctx, req.(*TurnRequest))
	})
}

func recommendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecommendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Recommend")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Recommend(ctx, req.(*RecommendRequest))
	})
}

func dialogueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DialogueRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Dialogue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Dialogue")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Dialogue(ctx, req.(*DialogueRequest))
	})
}

// AssistantClient calls the Assistant service over the JSON codec.
type AssistantClient struct {
	cc grpc.ClientConnInterface
}

func NewAssistantClient(cc grpc.ClientConnInterface) *AssistantClient {
	return &AssistantClient{cc: cc}
}

func (c *AssistantClient) HandleTurn(ctx context.Context, in *TurnRequest, opts ...grpc.CallOption) (*domain.TurnResponse, error) {
	out := new(domain.TurnResponse)
	if err := c.invoke(ctx, "HandleTurn", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AssistantClient) Recommend(ctx context.Context, in *RecommendRequest, opts ...grpc.CallOption) (*RecommendResponse, error) {
	out := new(RecommendResponse)
	if err := c.invoke(ctx, "Recommend", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AssistantClient) Dialogue(ctx context.Context, in *DialogueRequest, opts ...grpc.CallOption) (*service.DialogueReply, error) {
	out := new(service.DialogueReply)
	if err := c.invoke(ctx, "Dialogue", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AssistantClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

// UnaryLogger logs every unary call at debug and failures at warn.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		logger.Debug("grpc call", fields...)
		return resp, nil
	}
}
