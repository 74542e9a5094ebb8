package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseAllows(t *testing.T) {
	tests := []struct {
		phase   Phase
		allowed []string
		denied  []string
	}{
		{
			phase:   PhaseAwaitingIdentity,
			allowed: []string{"get_customer_details"},
			denied:  []string{"get_loan_details", "record_commitment"},
		},
		{
			phase:   PhaseAwaitingLoanAck,
			allowed: []string{"get_customer_details", "get_loan_details"},
			denied:  []string{"record_commitment"},
		},
		{
			phase:   PhaseAwaitingCommitment,
			allowed: []string{"get_customer_details", "get_loan_details", "record_commitment"},
			denied:  []string{},
		},
		{
			phase:   PhaseClosed,
			allowed: []string{},
			denied:  []string{"get_customer_details", "get_loan_details", "record_commitment"},
		},
		{
			phase:   PhaseErrored,
			allowed: []string{},
			denied:  []string{"get_customer_details", "get_loan_details", "record_commitment"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			for _, tool := range tt.allowed {
				assert.True(t, tt.phase.Allows(tool), "phase %s should allow %s", tt.phase, tool)
			}
			for _, tool := range tt.denied {
				assert.False(t, tt.phase.Allows(tool), "phase %s should deny %s", tt.phase, tool)
			}
			assert.False(t, tt.phase.Allows("unknown_tool"))
		})
	}
}

func TestPhaseTerminal(t *testing.T) {
	assert.False(t, PhaseAwaitingIdentity.Terminal())
	assert.False(t, PhaseAwaitingLoanAck.Terminal())
	assert.False(t, PhaseAwaitingCommitment.Terminal())
	assert.True(t, PhaseClosed.Terminal())
	assert.True(t, PhaseErrored.Terminal())
}
