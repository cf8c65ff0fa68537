package ledger

import "fmt"

// DialogKind names a mutation dialog.
type DialogKind int

const (
	DialogNone DialogKind = iota
	DialogAddFunds
	DialogDeductFunds
	DialogTransfer
)

func (k DialogKind) String() string {
	switch k {
	case DialogAddFunds:
		return "addFunds"
	case DialogDeductFunds:
		return "deductFunds"
	case DialogTransfer:
		return "transfer"
	}
	return "none"
}

// Phase is the coarse state of the mutation dialogs.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDialogOpen
	PhaseSubmitting
)

// UIState is idle, dialogOpen(kind) or submitting(kind). At most one dialog is
// open at a time.
type UIState struct {
	Phase Phase
	Kind  DialogKind
}

// Idle is the state with no dialog open.
func Idle() UIState { return UIState{} }

// DialogOpen is the state of an open, editable dialog.
func DialogOpen(kind DialogKind) UIState { return UIState{Phase: PhaseDialogOpen, Kind: kind} }

// Submitting is the state of a dialog whose request is in flight.
func Submitting(kind DialogKind) UIState { return UIState{Phase: PhaseSubmitting, Kind: kind} }

func (s UIState) String() string {
	switch s.Phase {
	case PhaseDialogOpen:
		return fmt.Sprintf("dialogOpen(%s)", s.Kind)
	case PhaseSubmitting:
		return fmt.Sprintf("submitting(%s)", s.Kind)
	}
	return "idle"
}
