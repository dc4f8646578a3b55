package tik

// SolverRule is an opaque per-record rule descriptor carried in a mapping
// configuration. The kit does not interpret rules itself; it hands them to
// the configured Solver one at a time ahead of comprehension insertion.
type SolverRule map[string]interface{}

// Solution is the mutable per-record context a Solver operates on. Solvers
// may append uniqueness strings (consumed by GUID fan-out when the
// configuration enables MultipleGUIDUniqueness) and populate the prototype
// the generated record(s) start from.
type Solution struct {
	IncomingRecord           Record
	Configuration            *MappingConfig
	RowIndex                 int
	NewRecordsGUIDUniqueness []string
	NewRecordPrototype       Record
}

// Solver evaluates one rule against a record solution. Implementations define
// whatever rule semantics the adopting system needs.
type Solver interface {
	Solve(rule SolverRule, sol *Solution) error
}

// SolverFunc allows a bare func as a Solver.
type SolverFunc func(rule SolverRule, sol *Solution) error

// Solve implements Solver.
func (f SolverFunc) Solve(rule SolverRule, sol *Solution) error { return f(rule, sol) }

// NopSolver ignores every rule.
type NopSolver struct{}

// Solve implements Solver and does nothing.
func (NopSolver) Solve(rule SolverRule, sol *Solution) error { return nil }
