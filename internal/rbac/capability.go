package rbac

// Capability ids of the base modules.
const (
	ReadRole   = "read_role"
	CreateRole = "create_role"
	UpdateRole = "update_role"
	DeleteRole = "delete_role"

	ReadUser   = "read_user"
	CreateUser = "create_user"
	UpdateUser = "update_user"
	DeleteUser = "delete_user"
)

// Capability is a single grantable permission.
type Capability struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Module groups the capabilities a module declares.
type Module struct {
	ModuleID     string       `json:"module_id"`
	ModuleName   string       `json:"module_name"`
	Capabilities []Capability `json:"capabilities"`
}

// BaseModules returns the catalog every deployment starts with.
func BaseModules() []Module {
	return []Module{
		{
			ModuleID:   "role",
			ModuleName: "Role",
			Capabilities: []Capability{
				{ID: ReadRole, Name: "Read Role"},
				{ID: CreateRole, Name: "Create Role"},
				{ID: UpdateRole, Name: "Update Role"},
				{ID: DeleteRole, Name: "Delete Role"},
			},
		},
		{
			ModuleID:   "user",
			ModuleName: "User",
			Capabilities: []Capability{
				{ID: ReadUser, Name: "Read User"},
				{ID: CreateUser, Name: "Create User"},
				{ID: UpdateUser, Name: "Update User"},
				{ID: DeleteUser, Name: "Delete User"},
			},
		},
	}
}
