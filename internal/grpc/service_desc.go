package grpc

import (
	"context"

	"google.golang.org/grpc"

	grpcsrv "github.com/elonr01/survey-server/pkg/grpc/server"
)

// ServiceName is the fully qualified gRPC service name, also used for its
// health status.
const ServiceName = "survey.v1.SurveyAnalytics"

// AnalyticsServer is the server side of the analytics API.
type AnalyticsServer interface {
	GetCompanyAnalytics(ctx context.Context, req *CompanyRequest) (*CompanyAnalyticsResponse, error)
	GetHistory(ctx context.Context, req *CompanyRequest) (*HistoryResponse, error)
	ComparePeriods(ctx context.Context, req *CompareRequest) (*CompareResponse, error)
	GetRecommendations(ctx context.Context, req *CompanyRequest) (*RecommendationsResponse, error)
	GetDashboard(ctx context.Context, req *DashboardRequest) (*DashboardResponse, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler[Req, Resp any](name string, call func(AnalyticsServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AnalyticsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AnalyticsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCompanyAnalytics", Handler: unaryHandler("GetCompanyAnalytics", AnalyticsServer.GetCompanyAnalytics)},
		{MethodName: "GetHistory", Handler: unaryHandler("GetHistory", AnalyticsServer.GetHistory)},
		{MethodName: "ComparePeriods", Handler: unaryHandler("ComparePeriods", AnalyticsServer.ComparePeriods)},
		{MethodName: "GetRecommendations", Handler: unaryHandler("GetRecommendations", AnalyticsServer.GetRecommendations)},
		{MethodName: "GetDashboard", Handler: unaryHandler("GetDashboard", AnalyticsServer.GetDashboard)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "survey/v1/analytics",
}

func RegisterAnalyticsServer(s grpc.ServiceRegistrar, srv AnalyticsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// AnalyticsClient calls the analytics API with the JSON codec.
type AnalyticsClient struct {
	cc grpc.ClientConnInterface
}

func NewAnalyticsClient(cc grpc.ClientConnInterface) *AnalyticsClient {
	return &AnalyticsClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(grpcsrv.CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AnalyticsClient) GetCompanyAnalytics(ctx context.Context, in *CompanyRequest, opts ...grpc.CallOption) (*CompanyAnalyticsResponse, error) {
	return invoke[CompanyAnalyticsResponse](ctx, c.cc, "GetCompanyAnalytics", in, opts)
}

func (c *AnalyticsClient) GetHistory(ctx context.Context, in *CompanyRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "GetHistory", in, opts)
}

func (c *AnalyticsClient) ComparePeriods(ctx context.Context, in *CompareRequest, opts ...grpc.CallOption) (*CompareResponse, error) {
	return invoke[CompareResponse](ctx, c.cc, "ComparePeriods", in, opts)
}

func (c *AnalyticsClient) GetRecommendations(ctx context.Context, in *CompanyRequest, opts ...grpc.CallOption) (*RecommendationsResponse, error) {
	return invoke[RecommendationsResponse](ctx, c.cc, "GetRecommendations", in, opts)
}

func (c *AnalyticsClient) GetDashboard(ctx context.Context, in *DashboardRequest, opts ...grpc.CallOption) (*DashboardResponse, error) {
	return invoke[DashboardResponse](ctx, c.cc, "GetDashboard", in, opts)
}
