package access

import (
	"strings"

	"github.com/google/uuid"
)

type Role int

const (
	RoleUnknown Role = iota
	RoleClient
	RoleConsultant
	RoleAdmin
	RoleMediaManager
)

var roleNames = map[Role]string{
	RoleClient:       "client",
	RoleConsultant:   "consultant",
	RoleAdmin:        "admin",
	RoleMediaManager: "media_manager",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole accepts the stored role names; "user" is an alias of client and
// "mediaManager" of media_manager.
func ParseRole(s string) (Role, bool) {
	switch strings.TrimSpace(s) {
	case "client", "user":
		return RoleClient, true
	case "consultant":
		return RoleConsultant, true
	case "admin":
		return RoleAdmin, true
	case "media_manager", "mediaManager":
		return RoleMediaManager, true
	}
	return RoleUnknown, false
}

type Action int

const (
	ActionRequestBooking Action = iota + 1
	ActionCancelOwnBooking
	ActionDecideBooking
	ActionManageOwnSlots
	ActionManageAnySlots
	ActionViewAnyBooking
	ActionActOnAnyBooking
	ActionReadNotifications
)

var capabilities = map[Role]map[Action]bool{
	RoleClient: {
		ActionRequestBooking:    true,
		ActionCancelOwnBooking:  true,
		ActionReadNotifications: true,
	},
	RoleConsultant: {
		ActionRequestBooking:    true,
		ActionCancelOwnBooking:  true,
		ActionDecideBooking:     true,
		ActionManageOwnSlots:    true,
		ActionReadNotifications: true,
	},
	RoleAdmin: {
		ActionRequestBooking:    true,
		ActionCancelOwnBooking:  true,
		ActionDecideBooking:     true,
		ActionManageOwnSlots:    true,
		ActionManageAnySlots:    true,
		ActionViewAnyBooking:    true,
		ActionActOnAnyBooking:   true,
		ActionReadNotifications: true,
	},
	RoleMediaManager: {
		ActionReadNotifications: true,
	},
}

// Can reports whether role is allowed to perform action. Unknown roles can do nothing.
func Can(role Role, action Action) bool {
	return capabilities[role][action]
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID   uuid.UUID
	Role Role
}
