// Package agent drives the model side of a collection call: it converts the
// stored transcript to provider wire format, executes requested tools round
// by round and appends the results until the model settles on a plain reply.
//
// Invariants:
// - Tool rounds commit all-or-nothing; a faulted round leaves no partial turns.
// - Every run ends with an agent turn, canned on the error and cap paths.
// - The model is only offered the tools legal in the current phase.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		Provider: provider,
//		Tools:    registry,
//		Agent:    cfg.Agent,
//		Logger:   logger,
//	})
//	result, _ := runner.Run(ctx, conv)
//	_ = result
package agent
