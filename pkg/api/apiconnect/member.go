package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/pkg/api"
)

// MemberServiceName is the fully-qualified name of the MemberService.
const MemberServiceName = "groupledger.v1.MemberService"

// Procedure paths of the MemberService.
const (
	MemberServiceListMembersProcedure       = "/groupledger.v1.MemberService/ListMembers"
	MemberServiceAddMembersProcedure        = "/groupledger.v1.MemberService/AddMembers"
	MemberServiceRemoveMembersProcedure     = "/groupledger.v1.MemberService/RemoveMembers"
	MemberServiceUpdateMemberRolesProcedure = "/groupledger.v1.MemberService/UpdateMemberRoles"
	MemberServiceLeaveGroupProcedure        = "/groupledger.v1.MemberService/LeaveGroup"
)

// MemberServiceHandler is the server side of the MemberService.
// MemberService manages group memberships and roles.
type MemberServiceHandler interface {
	ListMembers(context.Context, *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error)
	AddMembers(context.Context, *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error)
	RemoveMembers(context.Context, *connect.Request[api.RemoveMembersRequest]) (*connect.Response[api.RemoveMembersResponse], error)
	UpdateMemberRoles(context.Context, *connect.Request[api.UpdateMemberRolesRequest]) (*connect.Response[api.UpdateMemberRolesResponse], error)
	LeaveGroup(context.Context, *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error)
}

// NewMemberServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewMemberServiceHandler(svc MemberServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	listMembersHandler := connect.NewUnaryHandler(MemberServiceListMembersProcedure, svc.ListMembers, opts...)
	addMembersHandler := connect.NewUnaryHandler(MemberServiceAddMembersProcedure, svc.AddMembers, opts...)
	removeMembersHandler := connect.NewUnaryHandler(MemberServiceRemoveMembersProcedure, svc.RemoveMembers, opts...)
	updateMemberRolesHandler := connect.NewUnaryHandler(MemberServiceUpdateMemberRolesProcedure, svc.UpdateMemberRoles, opts...)
	leaveGroupHandler := connect.NewUnaryHandler(MemberServiceLeaveGroupProcedure, svc.LeaveGroup, opts...)
	return "/" + MemberServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case MemberServiceListMembersProcedure:
			listMembersHandler.ServeHTTP(w, r)
		case MemberServiceAddMembersProcedure:
			addMembersHandler.ServeHTTP(w, r)
		case MemberServiceRemoveMembersProcedure:
			removeMembersHandler.ServeHTTP(w, r)
		case MemberServiceUpdateMemberRolesProcedure:
			updateMemberRolesHandler.ServeHTTP(w, r)
		case MemberServiceLeaveGroupProcedure:
			leaveGroupHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// MemberServiceClient is a client for the MemberService.
type MemberServiceClient interface {
	ListMembers(context.Context, *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error)
	AddMembers(context.Context, *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error)
	RemoveMembers(context.Context, *connect.Request[api.RemoveMembersRequest]) (*connect.Response[api.RemoveMembersResponse], error)
	UpdateMemberRoles(context.Context, *connect.Request[api.UpdateMemberRolesRequest]) (*connect.Response[api.UpdateMemberRolesResponse], error)
	LeaveGroup(context.Context, *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error)
}

// NewMemberServiceClient constructs a client for the MemberService at baseURL,
// for example http://localhost:8080.
func NewMemberServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) MemberServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &memberServiceClient{
		listMembers: connect.NewClient[api.ListMembersRequest, api.ListMembersResponse](httpClient, baseURL+MemberServiceListMembersProcedure, opts...),
		addMembers: connect.NewClient[api.AddMembersRequest, api.AddMembersResponse](httpClient, baseURL+MemberServiceAddMembersProcedure, opts...),
		removeMembers: connect.NewClient[api.RemoveMembersRequest, api.RemoveMembersResponse](httpClient, baseURL+MemberServiceRemoveMembersProcedure, opts...),
		updateMemberRoles: connect.NewClient[api.UpdateMemberRolesRequest, api.UpdateMemberRolesResponse](httpClient, baseURL+MemberServiceUpdateMemberRolesProcedure, opts...),
		leaveGroup: connect.NewClient[api.LeaveGroupRequest, api.LeaveGroupResponse](httpClient, baseURL+MemberServiceLeaveGroupProcedure, opts...),
	}
}

type memberServiceClient struct {
	listMembers       *connect.Client[api.ListMembersRequest, api.ListMembersResponse]
	addMembers        *connect.Client[api.AddMembersRequest, api.AddMembersResponse]
	removeMembers     *connect.Client[api.RemoveMembersRequest, api.RemoveMembersResponse]
	updateMemberRoles *connect.Client[api.UpdateMemberRolesRequest, api.UpdateMemberRolesResponse]
	leaveGroup        *connect.Client[api.LeaveGroupRequest, api.LeaveGroupResponse]
}

func (c *memberServiceClient) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	return c.listMembers.CallUnary(ctx, req)
}

func (c *memberServiceClient) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	return c.addMembers.CallUnary(ctx, req)
}

func (c *memberServiceClient) RemoveMembers(ctx context.Context, req *connect.Request[api.RemoveMembersRequest]) (*connect.Response[api.RemoveMembersResponse], error) {
	return c.removeMembers.CallUnary(ctx, req)
}

func (c *memberServiceClient) UpdateMemberRoles(ctx context.Context, req *connect.Request[api.UpdateMemberRolesRequest]) (*connect.Response[api.UpdateMemberRolesResponse], error) {
	return c.updateMemberRoles.CallUnary(ctx, req)
}

func (c *memberServiceClient) LeaveGroup(ctx context.Context, req *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error) {
	return c.leaveGroup.CallUnary(ctx, req)
}
