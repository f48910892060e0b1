package db

// Role codes seeded by the initial migration.
const (
	RoleGuest                 = "guest"
	RoleAdministrator         = "administrator"
	RoleKeycloakAdministrator = "keycloak_administrator"
	RoleKeycloakUser          = "keycloak_user"
	RoleHousekeeping          = "housekeeping"
	RoleRoomService           = "room_service"
)

// StaffRoles may see the worker list and assign orders.
var StaffRoles = []string{
	RoleAdministrator, RoleKeycloakAdministrator, RoleKeycloakUser, RoleHousekeeping, RoleRoomService,
}

// DefaultSyncedRoleName is given to users first seen through a token.
const DefaultSyncedRoleName = "Keycloak User"

// NonWorkerRoles are excluded from the assignable worker list.
var NonWorkerRoles = []string{RoleGuest, RoleAdministrator, RoleKeycloakAdministrator}

// IsWorkerRole reports whether users with this role can be assigned orders.
func IsWorkerRole(code string) bool {
	for _, r := range NonWorkerRoles {
		if r == code {
			return false
		}
	}
	return true
}
