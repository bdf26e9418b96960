package auth

// Actions checked against the Authorizer.
const (
	ActionBookingsCreate   = "bookings:create"
	ActionBookingsRead     = "bookings:read"
	ActionBookingsUpdate   = "bookings:update"
	ActionBookingsDelete   = "bookings:delete"
	ActionBookingsPurge    = "bookings:purge"
	ActionTruckScaleUpdate = "truckScale:update"
	ActionApprovalsView    = "approvals:view"
	ActionApprovalsApprove = "approvals:approve"
	ActionApprovalsVoid    = "approvals:void"
)

// adminOnly lists actions that permission grants alone cannot unlock.
var adminOnly = map[string]bool{
	ActionApprovalsVoid: true,
	ActionBookingsPurge: true,
}

// Authorizer decides whether an actor may perform an action.
type Authorizer interface {
	IsAuthorized(actor Actor, action string) bool
	IsRequester(actor Actor, requesterID string) bool
}

// RoleAuthorizer grants everything to the admin role and otherwise consults
// the actor's permission list.
type RoleAuthorizer struct {
	AdminRole string
}

// NewRoleAuthorizer creates a RoleAuthorizer.
func NewRoleAuthorizer(adminRole string) *RoleAuthorizer {
	return &RoleAuthorizer{AdminRole: adminRole}
}

func (r *RoleAuthorizer) IsAuthorized(actor Actor, action string) bool {
	if actor.HasRole(r.AdminRole) {
		return true
	}
	if adminOnly[action] {
		return false
	}
	return actor.HasPermission(action)
}

func (r *RoleAuthorizer) IsRequester(actor Actor, requesterID string) bool {
	return actor.ID != "" && actor.ID == requesterID
}
