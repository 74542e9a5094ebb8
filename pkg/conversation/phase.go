package conversation

// Phase is the call-progression state of a conversation. The model drives
// turn order, but phase transitions and tool legality are enforced here in
// code, never left to prompt instructions.
type Phase string

const (
	// PhaseAwaitingIdentity: the agent must confirm it is speaking with the
	// right person before any loan detail is disclosed.
	PhaseAwaitingIdentity Phase = "awaiting_identity_confirmation"

	// PhaseAwaitingLoanAck: identity is confirmed; the agent discloses the
	// outstanding amount and due date.
	PhaseAwaitingLoanAck Phase = "awaiting_loan_acknowledgement"

	// PhaseAwaitingCommitment: loan details are on the table; the agent
	// asks for and captures a payment date.
	PhaseAwaitingCommitment Phase = "awaiting_commitment_date"

	// PhaseClosed: a commitment was recorded; the call winds down with a
	// plain confirmation, no further tool calls.
	PhaseClosed Phase = "closed"

	// PhaseErrored: absorbing state entered on an unrecoverable tool fault.
	PhaseErrored Phase = "errored"
)

// phaseTools maps each phase to the tools the model may invoke in it.
var phaseTools = map[Phase][]string{
	PhaseAwaitingIdentity:   {"get_customer_details"},
	PhaseAwaitingLoanAck:    {"get_customer_details", "get_loan_details"},
	PhaseAwaitingCommitment: {"get_customer_details", "get_loan_details", "record_commitment"},
	PhaseClosed:             {},
	PhaseErrored:            {},
}

// AllowedTools returns the tool names legal in phase p.
func (p Phase) AllowedTools() []string {
	return phaseTools[p]
}

// Allows reports whether tool is legal in phase p.
func (p Phase) Allows(tool string) bool {
	for _, name := range phaseTools[p] {
		if name == tool {
			return true
		}
	}
	return false
}

// Terminal reports whether the phase accepts no further progression.
func (p Phase) Terminal() bool {
	return p == PhaseClosed || p == PhaseErrored
}

func (p Phase) String() string {
	return string(p)
}
