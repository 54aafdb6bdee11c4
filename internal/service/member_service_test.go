package service

import (
	"context"
	"sync"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/pkg/api"
)

func TestAddMembers(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	groupID := env.createGroup(t, alice, "Club", bob)

	resp, err := env.members.AddMembers(ctx, as(alice, &api.AddMembersRequest{
		GroupID: groupID,
		Members: []api.NewMember{
			{Email: "BOB@example.com", Role: "admin"},
			{Email: carol.email, Role: "admin"},
			{Email: "ghost@example.com", Role: "member"},
		},
	}))
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if resp.Msg.Added != 1 {
		t.Errorf("expected 1 added (bob already a member), got %d", resp.Msg.Added)
	}
	if len(resp.Msg.UnknownEmails) != 1 || resp.Msg.UnknownEmails[0] != "ghost@example.com" {
		t.Errorf("unexpected unknown emails: %v", resp.Msg.UnknownEmails)
	}

	list, err := env.members.ListMembers(ctx, as(bob, &api.ListMembersRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	roles := make(map[string]string)
	for _, m := range list.Msg.Members {
		roles[m.UserID] = m.Role
	}
	if roles[alice.id] != "owner" || roles[bob.id] != "member" || roles[carol.id] != "admin" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestAddMembers_Permissions(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	dave := env.register(t, "dave")
	groupID := env.createGroup(t, alice, "Club", bob)

	t.Run("member cannot add", func(t *testing.T) {
		_, err := env.members.AddMembers(ctx, as(bob, &api.AddMembersRequest{
			GroupID: groupID,
			Members: []api.NewMember{{Email: carol.email, Role: "member"}},
		}))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	if _, err := env.members.UpdateMemberRoles(ctx, as(alice, &api.UpdateMemberRolesRequest{
		GroupID: groupID,
		Members: []api.MemberRole{{UserID: bob.id, Role: "admin"}},
	})); err != nil {
		t.Fatalf("UpdateMemberRoles failed: %v", err)
	}

	t.Run("admin cannot grant owner", func(t *testing.T) {
		_, err := env.members.AddMembers(ctx, as(bob, &api.AddMembersRequest{
			GroupID: groupID,
			Members: []api.NewMember{{Email: carol.email, Role: "owner"}},
		}))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("admin adds members", func(t *testing.T) {
		resp, err := env.members.AddMembers(ctx, as(bob, &api.AddMembersRequest{
			GroupID: groupID,
			Members: []api.NewMember{{Email: carol.email, Role: "member"}, {Email: dave.email, Role: "admin"}},
		}))
		if err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}
		if resp.Msg.Added != 2 {
			t.Errorf("expected 2 added, got %d", resp.Msg.Added)
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := env.members.AddMembers(ctx, as(alice, &api.AddMembersRequest{
			GroupID: groupID,
			Members: []api.NewMember{{Email: carol.email, Role: "user"}},
		}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})
}

func TestRemoveMembers(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	groupID := env.createGroup(t, alice, "Club", bob, carol)

	_, err := env.members.RemoveMembers(ctx, as(bob, &api.RemoveMembersRequest{GroupID: groupID, UserIDs: []string{carol.id}}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = env.members.RemoveMembers(ctx, as(alice, &api.RemoveMembersRequest{GroupID: groupID, UserIDs: []string{alice.id}}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	resp, err := env.members.RemoveMembers(ctx, as(alice, &api.RemoveMembersRequest{GroupID: groupID, UserIDs: []string{carol.id}}))
	if err != nil {
		t.Fatalf("RemoveMembers failed: %v", err)
	}
	if resp.Msg.Removed != 1 {
		t.Errorf("expected 1 removed, got %d", resp.Msg.Removed)
	}

	// A removed member loses access and drops out of balances.
	_, err = env.groups.GetGroup(ctx, as(carol, &api.GetGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeNotFound)
	if _, ok := env.balancesByUser(t, alice, groupID)[carol.id]; ok {
		t.Error("removed member should not have a balance")
	}
}

func TestUpdateMemberRoles(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	groupID := env.createGroup(t, alice, "Club", bob, carol)

	t.Run("last owner cannot be demoted", func(t *testing.T) {
		_, err := env.members.UpdateMemberRoles(ctx, as(alice, &api.UpdateMemberRolesRequest{
			GroupID: groupID,
			Members: []api.MemberRole{{UserID: alice.id, Role: "admin"}},
		}))
		assertCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("non-member target", func(t *testing.T) {
		_, err := env.members.UpdateMemberRoles(ctx, as(alice, &api.UpdateMemberRolesRequest{
			GroupID: groupID,
			Members: []api.MemberRole{{UserID: "nobody", Role: "admin"}},
		}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("ownership handover is atomic", func(t *testing.T) {
		_, err := env.members.UpdateMemberRoles(ctx, as(alice, &api.UpdateMemberRolesRequest{
			GroupID: groupID,
			Members: []api.MemberRole{
				{UserID: bob.id, Role: "owner"},
				{UserID: alice.id, Role: "admin"},
			},
		}))
		if err != nil {
			t.Fatalf("UpdateMemberRoles failed: %v", err)
		}

		get, err := env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: groupID}))
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if get.Msg.Role != "admin" {
			t.Errorf("alice: expected admin, got %s", get.Msg.Role)
		}
	})

	t.Run("admin cannot demote owner", func(t *testing.T) {
		_, err := env.members.UpdateMemberRoles(ctx, as(alice, &api.UpdateMemberRolesRequest{
			GroupID: groupID,
			Members: []api.MemberRole{{UserID: bob.id, Role: "member"}},
		}))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("member cannot change roles", func(t *testing.T) {
		_, err := env.members.UpdateMemberRoles(ctx, as(carol, &api.UpdateMemberRolesRequest{
			GroupID: groupID,
			Members: []api.MemberRole{{UserID: carol.id, Role: "admin"}},
		}))
		assertCode(t, err, connect.CodePermissionDenied)
	})
}

func TestLeaveGroup(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	groupID := env.createGroup(t, alice, "Club", bob)

	_, err := env.members.LeaveGroup(ctx, as(alice, &api.LeaveGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	if _, err := env.members.LeaveGroup(ctx, as(bob, &api.LeaveGroupRequest{GroupID: groupID})); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}

	resp, err := env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(resp.Msg.Groups) != 0 {
		t.Errorf("expected bob to have no groups, got %d", len(resp.Msg.Groups))
	}

	_, err = env.members.LeaveGroup(ctx, as(bob, &api.LeaveGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestLeaveGroup_ConcurrentOwnersKeepOneOwner(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	groupID := env.createGroup(t, alice, "Co-owned", bob, carol)

	if _, err := env.members.UpdateMemberRoles(ctx, as(alice, &api.UpdateMemberRolesRequest{
		GroupID: groupID,
		Members: []api.MemberRole{{UserID: bob.id, Role: "owner"}},
	})); err != nil {
		t.Fatalf("UpdateMemberRoles failed: %v", err)
	}

	owners := []testUser{alice, bob}
	errs := make([]error, len(owners))
	var wg sync.WaitGroup
	for i, u := range owners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.members.LeaveGroup(ctx, as(u, &api.LeaveGroupRequest{GroupID: groupID}))
		}()
	}
	wg.Wait()

	left := 0
	for _, err := range errs {
		if err == nil {
			left++
			continue
		}
		assertCode(t, err, connect.CodeFailedPrecondition)
	}
	if left != 1 {
		t.Fatalf("expected exactly one owner to leave, got %d (errors: %v)", left, errs)
	}

	resp, err := env.members.ListMembers(ctx, as(carol, &api.ListMembersRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	ownerCount := 0
	for _, m := range resp.Msg.Members {
		if m.Role == "owner" {
			ownerCount++
		}
	}
	if ownerCount != 1 {
		t.Errorf("expected one remaining owner, got %d: %+v", ownerCount, resp.Msg.Members)
	}
}
