package conversation

import (
	"encoding/json"
	"time"

	"github.com/harun/jiya/internal/observability"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleHuman      Role = "human"
	RoleAgent      Role = "agent"
	RoleToolResult Role = "tool_result"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Turn is one message in a conversation. Turns are append-only and never
// mutated once added.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// Seed marks the internal instruction that opens a call. Seed turns
	// feed the model but are never surfaced to the counterpart.
	Seed bool `json:"seed,omitempty"`

	// ToolCalls is set on agent turns that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolName, ToolCallID and Payload are set on tool-result turns.
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the ordered turn sequence for one session plus the
// call-progression phase derived from it.
type Conversation struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id,omitempty"`
	Phase      Phase  `json:"phase"`
	Turns      []Turn `json:"turns"`

	// PendingDisclosure is set once get_loan_details succeeds; the next
	// agent reply is the disclosure that advances the phase.
	PendingDisclosure bool `json:"pending_disclosure,omitempty"`

	// CommittedDate holds the captured payment date once the call closes.
	CommittedDate string `json:"committed_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty conversation in the identity-confirmation phase.
func New(sessionID string) *Conversation {
	now := time.Now()
	return &Conversation{
		SessionID: sessionID,
		Phase:     PhaseAwaitingIdentity,
		Turns:     []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// advance moves the conversation to a new phase and records the transition.
func (c *Conversation) advance(to Phase) {
	if c.Phase == to {
		return
	}
	observability.RecordPhaseTransition(string(c.Phase), string(to))
	c.Phase = to
}

// append adds a turn and bumps the update time.
func (c *Conversation) append(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	c.Turns = append(c.Turns, turn)
	c.UpdatedAt = turn.Timestamp
}

// AppendSeed adds the internal call-opening instruction.
func (c *Conversation) AppendSeed(instruction string) {
	c.append(Turn{Role: RoleHuman, Content: instruction, Seed: true})
}

// AppendHuman adds a customer turn. An affirmative answer to an earlier
// identity question advances the phase so get_loan_details becomes legal.
func (c *Conversation) AppendHuman(content string) {
	c.append(Turn{Role: RoleHuman, Content: content})

	if c.Phase == PhaseAwaitingIdentity && c.hasAgentReply() && IsAffirmative(content) {
		c.advance(PhaseAwaitingLoanAck)
	}
}

// AppendAgentReply adds a plain agent reply. The reply following a
// successful loan lookup is the disclosure that moves the call on to
// commitment capture.
func (c *Conversation) AppendAgentReply(content string) {
	c.append(Turn{Role: RoleAgent, Content: content})

	if c.Phase == PhaseAwaitingLoanAck && c.PendingDisclosure {
		c.PendingDisclosure = false
		c.advance(PhaseAwaitingCommitment)
	}
}

// AppendToolCalls adds the agent turn that requests tool execution.
// Content may carry any text the model produced alongside the calls.
func (c *Conversation) AppendToolCalls(content string, calls []ToolCall) {
	c.append(Turn{Role: RoleAgent, Content: content, ToolCalls: calls})
}

// AppendToolResult adds a tool-result turn. ok distinguishes a successful
// domain payload from an in-band error payload (not found, name mismatch);
// error payloads never advance the phase.
func (c *Conversation) AppendToolResult(call ToolCall, payload json.RawMessage, ok bool) {
	c.append(Turn{
		Role:       RoleToolResult,
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Payload:    payload,
	})

	if !ok {
		return
	}

	switch call.Name {
	case "get_loan_details":
		if c.Phase == PhaseAwaitingLoanAck {
			c.PendingDisclosure = true
		}
	case "record_commitment":
		if c.Phase == PhaseAwaitingCommitment {
			if date, found := call.Parameters["commitment_date"].(string); found {
				c.CommittedDate = date
			}
			c.advance(PhaseClosed)
		}
	}
}

// MarkErrored moves the conversation into the absorbing error phase.
func (c *Conversation) MarkErrored() {
	c.advance(PhaseErrored)
}

// LastAgentReply returns the most recent agent-authored reply text,
// scanning backward. Tool-call request turns without text do not count.
func (c *Conversation) LastAgentReply() (string, bool) {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		turn := c.Turns[i]
		if turn.Role == RoleAgent && len(turn.ToolCalls) == 0 && turn.Content != "" {
			return turn.Content, true
		}
	}
	return "", false
}

// Empty reports whether the conversation has no turns yet.
func (c *Conversation) Empty() bool {
	return len(c.Turns) == 0
}

// hasAgentReply reports whether any agent turn with visible text exists,
// i.e. whether an identity question could already have been asked.
func (c *Conversation) hasAgentReply() bool {
	for _, turn := range c.Turns {
		if turn.Role == RoleAgent && turn.Content != "" && len(turn.ToolCalls) == 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. The agent loop works on a clone so a failed
// round never leaves the stored conversation partially mutated.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Turns = make([]Turn, len(c.Turns))
	copy(clone.Turns, c.Turns)
	return &clone
}
