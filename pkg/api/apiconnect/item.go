package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/pkg/api"
)

// ItemServiceName is the fully-qualified name of the ItemService.
const ItemServiceName = "groupledger.v1.ItemService"

// Procedure paths of the ItemService.
const (
	ItemServiceListItemsProcedure   = "/groupledger.v1.ItemService/ListItems"
	ItemServiceAddItemProcedure     = "/groupledger.v1.ItemService/AddItem"
	ItemServiceRemoveItemsProcedure = "/groupledger.v1.ItemService/RemoveItems"
)

// ItemServiceHandler is the server side of the ItemService.
// ItemService records expense items and their credit and debit rows.
type ItemServiceHandler interface {
	ListItems(context.Context, *connect.Request[api.ListItemsRequest]) (*connect.Response[api.ListItemsResponse], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error)
	RemoveItems(context.Context, *connect.Request[api.RemoveItemsRequest]) (*connect.Response[api.RemoveItemsResponse], error)
}

// NewItemServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewItemServiceHandler(svc ItemServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	listItemsHandler := connect.NewUnaryHandler(ItemServiceListItemsProcedure, svc.ListItems, opts...)
	addItemHandler := connect.NewUnaryHandler(ItemServiceAddItemProcedure, svc.AddItem, opts...)
	removeItemsHandler := connect.NewUnaryHandler(ItemServiceRemoveItemsProcedure, svc.RemoveItems, opts...)
	return "/" + ItemServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ItemServiceListItemsProcedure:
			listItemsHandler.ServeHTTP(w, r)
		case ItemServiceAddItemProcedure:
			addItemHandler.ServeHTTP(w, r)
		case ItemServiceRemoveItemsProcedure:
			removeItemsHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ItemServiceClient is a client for the ItemService.
type ItemServiceClient interface {
	ListItems(context.Context, *connect.Request[api.ListItemsRequest]) (*connect.Response[api.ListItemsResponse], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error)
	RemoveItems(context.Context, *connect.Request[api.RemoveItemsRequest]) (*connect.Response[api.RemoveItemsResponse], error)
}

// NewItemServiceClient constructs a client for the ItemService at baseURL,
// for example http://localhost:8080.
func NewItemServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ItemServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &itemServiceClient{
		listItems: connect.NewClient[api.ListItemsRequest, api.ListItemsResponse](httpClient, baseURL+ItemServiceListItemsProcedure, opts...),
		addItem: connect.NewClient[api.AddItemRequest, api.AddItemResponse](httpClient, baseURL+ItemServiceAddItemProcedure, opts...),
		removeItems: connect.NewClient[api.RemoveItemsRequest, api.RemoveItemsResponse](httpClient, baseURL+ItemServiceRemoveItemsProcedure, opts...),
	}
}

type itemServiceClient struct {
	listItems   *connect.Client[api.ListItemsRequest, api.ListItemsResponse]
	addItem     *connect.Client[api.AddItemRequest, api.AddItemResponse]
	removeItems *connect.Client[api.RemoveItemsRequest, api.RemoveItemsResponse]
}

func (c *itemServiceClient) ListItems(ctx context.Context, req *connect.Request[api.ListItemsRequest]) (*connect.Response[api.ListItemsResponse], error) {
	return c.listItems.CallUnary(ctx, req)
}

func (c *itemServiceClient) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.AddItemResponse], error) {
	return c.addItem.CallUnary(ctx, req)
}

func (c *itemServiceClient) RemoveItems(ctx context.Context, req *connect.Request[api.RemoveItemsRequest]) (*connect.Response[api.RemoveItemsResponse], error) {
	return c.removeItems.CallUnary(ctx, req)
}
