// Package wizard holds the 7-step submission flow state machine. Navigation
// is monotonic: moving forward requires the current step to be completed,
// moving backward is always allowed.
package wizard

import "math"

// StepStatus is the lifecycle state of one wizard step.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusActive    StepStatus = "active"
	StatusCompleted StepStatus = "completed"
	StatusError     StepStatus = "error"
)

// Step describes one fixed entry of the flow. Steps are defined at process
// start and never change at runtime.
type Step struct {
	ID        int
	Nome      string
	Descricao string
	Opcional  bool
}

// Steps is the fixed submission flow.
var Steps = []Step{
	{ID: 1, Nome: "Conteúdo", Descricao: "Escolha o canal e descreva sua manifestação"},
	{ID: 2, Nome: "Categorias", Descricao: "Classifique sua manifestação"},
	{ID: 3, Nome: "Assunto e órgão", Descricao: "Assunto e órgão responsável"},
	{ID: 4, Nome: "Informações adicionais", Descricao: "Local, data e envolvidos", Opcional: true},
	{ID: 5, Nome: "Anexos", Descricao: "Documentos de apoio", Opcional: true},
	{ID: 6, Nome: "Identificação", Descricao: "Identifique-se ou permaneça anônimo"},
	{ID: 7, Nome: "Revisão", Descricao: "Confira e envie"},
}

// NumSteps is the fixed step count.
const NumSteps = 7

// Machine tracks the current step and per-step statuses. All operations are
// pure state transitions; out-of-range inputs are silently ignored.
type Machine struct {
	current  int
	statuses [NumSteps]StepStatus
}

// New returns a machine positioned on step 1.
func New() *Machine {
	m := &Machine{current: 1}
	m.statuses[0] = StatusActive
	for i := 1; i < NumSteps; i++ {
		m.statuses[i] = StatusPending
	}
	return m
}

// CurrentStep returns the active step number (1-based).
func (m *Machine) CurrentStep() int { return m.current }

// Status returns the status of step n, or StatusPending if n is out of range.
func (m *Machine) Status(n int) StepStatus {
	if n < 1 || n > NumSteps {
		return StatusPending
	}
	return m.statuses[n-1]
}

// NextStep completes the current step and activates the following one.
// No-op on the last step.
func (m *Machine) NextStep() {
	if m.current >= NumSteps {
		return
	}
	m.statuses[m.current-1] = StatusCompleted
	m.statuses[m.current] = StatusActive
	m.current++
}

// PreviousStep returns the current step to pending and activates the
// preceding one. No-op on the first step.
func (m *Machine) PreviousStep() {
	if m.current <= 1 {
		return
	}
	m.statuses[m.current-1] = StatusPending
	m.statuses[m.current-2] = StatusActive
	m.current--
}

// GoToStep jumps to step n when allowed. The step being left is marked
// completed unless it is in error, which is preserved.
func (m *Machine) GoToStep(n int) {
	if n < 1 || n > NumSteps {
		return
	}
	if n > m.current && !m.CanNavigateToStep(n) {
		return
	}
	if m.statuses[m.current-1] != StatusError {
		m.statuses[m.current-1] = StatusCompleted
	}
	m.statuses[n-1] = StatusActive
	m.current = n
}

// SetStepStatus overrides step n's status; the caller runs its own per-step
// validation and reports the outcome here.
func (m *Machine) SetStepStatus(n int, s StepStatus) {
	if n < 1 || n > NumSteps {
		return
	}
	m.statuses[n-1] = s
}

// CanNavigateToStep reports whether a jump to step n is permitted: any
// earlier step always, the immediately following step only once the current
// one is completed. Skipping ahead further is never allowed.
func (m *Machine) CanNavigateToStep(n int) bool {
	if n < 1 || n > NumSteps {
		return false
	}
	if n < m.current {
		return true
	}
	return n == m.current+1 && m.statuses[m.current-1] == StatusCompleted
}

// IsFirstStep reports whether the machine is on step 1.
func (m *Machine) IsFirstStep() bool { return m.current == 1 }

// IsLastStep reports whether the machine is on the final step.
func (m *Machine) IsLastStep() bool { return m.current == NumSteps }

// ProgressPercentage returns completion as 0..100.
func (m *Machine) ProgressPercentage() int {
	return int(math.Round(100 * float64(m.current-1) / float64(NumSteps-1)))
}
