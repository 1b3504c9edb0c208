package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/walkup-orders/internal/catalog/api"
	catalog "github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

const lookupTimeout = 3 * time.Second

type CatalogClient struct {
	log  *slog.Logger
	conn *grpc.ClientConn
}

func NewCatalogClient(log *slog.Logger, addr string, opts ...grpc.DialOption) (*CatalogClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(api.CallOption()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &CatalogClient{log: log, conn: conn}, nil
}

// GetItem maps codes.NotFound to catalog.ErrItemNotFound; anything else is
// returned as is for the caller to classify.
func (c *CatalogClient) GetItem(ctx context.Context, id string) (catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var resp api.GetItemResponse
	err := c.conn.Invoke(ctx, api.GetItemMethod, &api.GetItemRequest{ID: id}, &resp)
	if status.Code(err) == codes.NotFound {
		return catalog.Item{}, fmt.Errorf("item %s: %w", id, catalog.ErrItemNotFound)
	}
	if err != nil {
		c.log.Warn("catalog lookup failed", "item_id", id, "err", err)
		return catalog.Item{}, err
	}
	return resp.Item, nil
}

func (c *CatalogClient) Close() error {
	return c.conn.Close()
}
