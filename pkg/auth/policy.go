package auth

type Action string

const (
	ActionCreateRequest   Action = "request.create"
	ActionApproveRequest  Action = "request.approve"
	ActionRejectRequest   Action = "request.reject"
	ActionReturnRequest   Action = "request.return"
	ActionListAllRequests Action = "request.list_all"
	ActionReadOwnRequests Action = "request.read_own"

	ActionCreateEquipment Action = "equipment.create"
	ActionUpdateEquipment Action = "equipment.update"
	ActionDeleteEquipment Action = "equipment.delete"
)

// Policy maps an action to the roles allowed to perform it.
// An action absent from the table is denied.
type Policy map[Action][]Role

var anyRole = []Role{RoleStudent, RoleStaff, RoleAdmin}

func DefaultPolicy() Policy {
	return Policy{
		ActionCreateRequest:   {RoleStudent},
		ActionApproveRequest:  {RoleStaff, RoleAdmin},
		ActionRejectRequest:   {RoleStaff, RoleAdmin},
		ActionReturnRequest:   {RoleStaff, RoleAdmin},
		ActionListAllRequests: {RoleStaff, RoleAdmin},
		ActionReadOwnRequests: anyRole,

		ActionCreateEquipment: {RoleAdmin},
		ActionUpdateEquipment: {RoleAdmin},
		ActionDeleteEquipment: {RoleAdmin},
	}
}

func (p Policy) Allows(role Role, action Action) bool {
	for _, r := range p[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Privileged reports whether role may act on requests it does not own.
func Privileged(role Role) bool {
	return role == RoleStaff || role == RoleAdmin
}
