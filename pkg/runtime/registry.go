package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/pixelbattle"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/programs/system"
	"github.com/fortiblox/x1-pixelbattle/pkg/svm/syscall"
	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// ErrProgramNotFound indicates the program is not registered.
var ErrProgramNotFound = errors.New("program not found")

// Program is a native program the runtime can dispatch to.
type Program interface {
	// Execute runs one instruction against ctx's accounts.
	Execute(ctx *syscall.ExecutionContext, data []byte) error
}

// ProgramFunc is a function adapter for Program.
type ProgramFunc func(ctx *syscall.ExecutionContext, data []byte) error

// Execute implements Program.
func (f ProgramFunc) Execute(ctx *syscall.ExecutionContext, data []byte) error {
	return f(ctx, data)
}

// ProgramRegistry maps program IDs to native programs. It implements
// syscall.ProgramExecutor so it can serve cross-program invocations.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]Program
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]Program),
		names:    make(map[types.Pubkey]string),
	}
}

// RegisterProgramWithName registers a program under id.
func (r *ProgramRegistry) RegisterProgramWithName(id types.Pubkey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	r.names[id] = name
}

// GetProgram returns the program registered for id.
func (r *ProgramRegistry) GetProgram(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	program, ok := r.programs[id]
	return program, ok
}

// GetProgramName returns the name id was registered with.
func (r *ProgramRegistry) GetProgramName(id types.Pubkey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// HasProgram checks if a program is registered.
func (r *ProgramRegistry) HasProgram(id types.Pubkey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.programs[id]
	return ok
}

// ListPrograms returns all registered program IDs in byte order.
func (r *ProgramRegistry) ListPrograms() []types.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})
	return ids
}

// ExecuteProgram implements syscall.ProgramExecutor.
func (r *ProgramRegistry) ExecuteProgram(ctx *syscall.ExecutionContext) error {
	program, ok := r.GetProgram(ctx.ProgramID)
	if !ok {
		return fmt.Errorf("%w: %v: %s", types.ErrUnsupportedProgramID, ErrProgramNotFound, ctx.ProgramID)
	}
	return program.Execute(ctx, ctx.InstructionData)
}

// RegisterNativePrograms registers the System Program, the Compute Budget
// Program and the pixel battle program.
func RegisterNativePrograms(registry *ProgramRegistry) {
	registry.RegisterProgramWithName(types.SystemProgramID, "system_program", system.New())
	registry.RegisterProgramWithName(compute_budget.ProgramID, "compute_budget", compute_budget.New())
	registry.RegisterProgramWithName(pixelbattle.ProgramID, "pixel_battle", pixelbattle.New())
}
