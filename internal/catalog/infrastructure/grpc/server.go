package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/walkup-orders/internal/catalog/api"
	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

type ItemReader interface {
	GetItem(ctx context.Context, id string) (domain.Item, error)
}

type Server struct {
	log   *slog.Logger
	items ItemReader
}

func NewServer(log *slog.Logger, items ItemReader) *Server {
	return &Server{log: log, items: items}
}

func (s *Server) GetItem(ctx context.Context, req *api.GetItemRequest) (*api.GetItemResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	item, err := s.items.GetItem(ctx, req.ID)
	if errors.Is(err, domain.ErrItemNotFound) {
		return nil, status.Errorf(codes.NotFound, "item %s not found", req.ID)
	}
	if err != nil {
		s.log.Error("get item failed", "item_id", req.ID, "err", err)
		return nil, status.Error(codes.Internal, "catalog lookup failed")
	}
	return &api.GetItemResponse{Item: item}, nil
}

// Run listens on addr and serves in the background.
func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	api.RegisterCatalogServer(gs, srv)
	go func() {
		_ = gs.Serve(lis)
	}()
	return gs, nil
}
