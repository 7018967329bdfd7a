package rbac

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_BaseCatalog(t *testing.T) {
	r := NewRegistry(BaseModules()...)
	mods := r.ListAll()
	if assert.Len(t, mods, 2) {
		assert.Equal(t, "role", mods[0].ModuleID)
		assert.Equal(t, "user", mods[1].ModuleID)
		assert.Len(t, mods[0].Capabilities, 4)
	}
	assert.True(t, r.Has(DeleteUser))
	assert.False(t, r.Has("launch_rockets"))
}

func TestRegistry_ListAllIsACopy(t *testing.T) {
	r := NewRegistry(BaseModules()...)
	mods := r.ListAll()
	mods[0].Capabilities[0].ID = "tampered"
	mods[0].ModuleName = "tampered"

	again := r.ListAll()
	assert.Equal(t, ReadRole, again[0].Capabilities[0].ID)
	assert.Equal(t, "Role", again[0].ModuleName)
}

func TestRegistry_DuplicateRegistrationAppends(t *testing.T) {
	r := NewRegistry()
	m := Module{ModuleID: "sandbox", ModuleName: "Sandbox", Capabilities: []Capability{{ID: "read_sandbox", Name: "Read Sandbox"}}}
	r.Register(m)
	r.Register(m)
	assert.Len(t, r.ListAll(), 2)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(BaseModules()...)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(Module{ModuleID: "x", Capabilities: []Capability{{ID: "x"}}})
		}()
		go func() {
			defer wg.Done()
			_ = r.ListAll()
			_ = r.Has(ReadUser)
		}()
	}
	wg.Wait()
	assert.Len(t, r.ListAll(), 10)
}
