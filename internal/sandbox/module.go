// Package sandbox is an optional CRUD module.  It shows how a module plugs
// into the core: it declares its capabilities, registers them with the
// catalog at startup, mounts its own routes behind the shared bearer and
// capability middleware and owns its table.
package sandbox

import "github.com/iliyamo/rbac-backend/internal/rbac"

// Name is the module name used by the installer.
const Name = "sandbox"

const (
	ReadSandbox   = "read_sandbox"
	CreateSandbox = "create_sandbox"
	UpdateSandbox = "update_sandbox"
	DeleteSandbox = "delete_sandbox"
)

// Module describes the sandbox capabilities for the registry.
func Module() rbac.Module {
	return rbac.Module{
		ModuleID:   Name,
		ModuleName: "Sandbox",
		Capabilities: []rbac.Capability{
			{ID: ReadSandbox, Name: "Read Sandbox"},
			{ID: CreateSandbox, Name: "Create Sandbox"},
			{ID: UpdateSandbox, Name: "Update Sandbox"},
			{ID: DeleteSandbox, Name: "Delete Sandbox"},
		},
	}
}

// CapabilityIDs lists every capability the module declares.
func CapabilityIDs() []string {
	caps := Module().Capabilities
	ids := make([]string, len(caps))
	for i, c := range caps {
		ids[i] = c.ID
	}
	return ids
}
