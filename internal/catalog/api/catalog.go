// Package api is the gRPC contract of the catalog service. Messages are
// plain Go structs carried by a JSON codec, so no generated code is needed.
package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

const (
	CodecName     = "json"
	ServiceName   = "catalog.v1.Catalog"
	GetItemMethod = "/catalog.v1.Catalog/GetItem"
)

type GetItemRequest struct {
	ID string `json:"id"`
}

type GetItemResponse struct {
	Item domain.Item `json:"item"`
}

type CatalogServer interface {
	GetItem(ctx context.Context, req *GetItemRequest) (*GetItemResponse, error)
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption makes a client call use the JSON codec.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetItem", Handler: getItemHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog.proto",
}

func getItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetItemRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetItemMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetItem(ctx, req.(*GetItemRequest))
	}
	return interceptor(ctx, in, info, handler)
}
