// Package api defines the request and response messages of the groupledger
// RPC services. Messages travel as JSON; amounts are int64 minor units
// (cents) with a preformatted display string next to them. Field rules are
// expressed as validator tags and checked by the services.
package api

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

// Group is a group's settings.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Currency    string `json:"currency,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// GroupSummary is a group as listed for one user, with that user's role.
type GroupSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Member is a group member with their role.
type Member struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// LedgerEntry is one credit or debit of an item.
type LedgerEntry struct {
	UserID        string `json:"userId"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
}

// Item is an expense with its credit (paid) and debit (owed) rows.
type Item struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Amount        int64         `json:"amount"`
	AmountDisplay string        `json:"amountDisplay"`
	Note          string        `json:"note,omitempty"`
	Credits       []LedgerEntry `json:"credits"`
	Debits        []LedgerEntry `json:"debits"`
	CreatedAt     int64         `json:"createdAt"`
}

// Balance is a member's net position: positive is owed money, negative owes.
type Balance struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Credit         int64  `json:"credit"`
	Debit          int64  `json:"debit"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balanceDisplay"`
}

// Settlement is a suggested payment that clears debts.
type Settlement struct {
	FromUserID    string `json:"fromUserId"`
	ToUserID      string `json:"toUserId"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
}

// Auth

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,max=72"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// Groups

type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Currency    string `json:"currency" validate:"omitempty,len=3,uppercase"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []GroupSummary `json:"groups"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GetGroupResponse struct {
	Group   *Group   `json:"group"`
	Members []Member `json:"members"`
	// Role is the caller's role in the group.
	Role string `json:"role"`
}

type UpdateGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Name    string `json:"name" validate:"required,max=100"`
}

type UpdateGroupResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type DeleteGroupResponse struct{}

type GetBalancesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GetBalancesResponse struct {
	Balances    []Balance    `json:"balances"`
	Settlements []Settlement `json:"settlements"`
	Currency    string       `json:"currency,omitempty"`
}

// Members

type ListMembersRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type ListMembersResponse struct {
	Members []Member `json:"members"`
}

type NewMember struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=member admin owner"`
}

type AddMembersRequest struct {
	GroupID string      `json:"groupId" validate:"required"`
	Members []NewMember `json:"members" validate:"max=100,dive"`
}

type AddMembersResponse struct {
	// Added counts memberships actually created; existing ones are skipped.
	Added int `json:"added"`
	// UnknownEmails lists emails that have no account.
	UnknownEmails []string `json:"unknownEmails,omitempty"`
}

type RemoveMembersRequest struct {
	GroupID string   `json:"groupId" validate:"required"`
	UserIDs []string `json:"userIds" validate:"max=100,dive,required"`
}

type RemoveMembersResponse struct {
	Removed int `json:"removed"`
}

type MemberRole struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=member admin owner"`
}

type UpdateMemberRolesRequest struct {
	GroupID string       `json:"groupId" validate:"required"`
	Members []MemberRole `json:"members" validate:"max=100,dive"`
}

type UpdateMemberRolesResponse struct{}

type LeaveGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type LeaveGroupResponse struct{}

// Items

type ListItemsRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type ListItemsResponse struct {
	Items        []Item `json:"items"`
	Total        int64  `json:"total"`
	TotalDisplay string `json:"totalDisplay"`
}

type AddItemRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Name    string `json:"name" validate:"required,max=200"`
	// Amount is a decimal string in major units, e.g. "19.99".
	Amount        string   `json:"amount" validate:"required,max=32"`
	Note          string   `json:"note" validate:"max=500"`
	CreditUserIDs []string `json:"creditUserIds" validate:"required,min=1,max=100,dive,required"`
	DebitUserIDs  []string `json:"debitUserIds" validate:"required,min=1,max=100,dive,required"`
}

type AddItemResponse struct {
	Item *Item `json:"item"`
}

type RemoveItemsRequest struct {
	GroupID string   `json:"groupId" validate:"required"`
	ItemIDs []string `json:"itemIds" validate:"max=100,dive,required"`
}

type RemoveItemsResponse struct {
	Removed int `json:"removed"`
}
