package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/internal/tracing"
	"github.com/harun/jiya/pkg/commitments"
	"github.com/harun/jiya/pkg/recordstore"
	"github.com/rs/zerolog"
)

// Tool names offered to the model during a collection call.
const (
	ToolGetCustomerDetails = "get_customer_details"
	ToolGetLoanDetails     = "get_loan_details"
	ToolRecordCommitment   = "record_commitment"
)

// recordTimeout bounds the asynchronous commitment write.
const recordTimeout = 5 * time.Second

// RegisterCollectionTools registers the three collection-call tools against
// the given record store and commitment recorder.
func RegisterCollectionTools(reg *Registry, records recordstore.Store, recorder commitments.Recorder, logger zerolog.Logger) error {
	defs := []Definition{
		customerDetailsTool(records),
		loanDetailsTool(records),
		recordCommitmentTool(recorder, logger),
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// customerDetailsTool resolves a customer id to the name on file. It only
// discloses the name; loan figures stay behind the identity check.
func customerDetailsTool(records recordstore.Store) Definition {
	return Definition{
		Name:        ToolGetCustomerDetails,
		Description: "Fetch the name on file for a customer id. Use this before greeting the customer so you can confirm you are speaking with the right person.",
		Parameters: []Parameter{
			{Name: "customer_id", Type: "string", Description: "The customer id the call was started for.", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
			customerID := stringArg(args, "customer_id")

			record, found, err := records.Lookup(ctx, customerID)
			if err != nil {
				return nil, false, fmt.Errorf("customer lookup: %w", err)
			}
			if !found {
				return map[string]string{"error": "Customer ID not found"}, false, nil
			}

			return map[string]string{
				"customer_id":   record.CustomerID,
				"customer_name": record.CustomerName,
			}, true, nil
		},
	}
}

// loanDetailsTool discloses the outstanding amount, due date and days past
// due, but only when the supplied name matches the record. A mismatch gets
// the same opaque miss as an unknown id so the tool cannot be used to fish
// for account data.
func loanDetailsTool(records recordstore.Store) Definition {
	return Definition{
		Name:        ToolGetLoanDetails,
		Description: "Fetch the outstanding loan details for an identity-confirmed customer: total due, due date and days past due.",
		Parameters: []Parameter{
			{Name: "customer_id", Type: "string", Description: "The customer id the call was started for.", Required: true},
			{Name: "customer_name", Type: "string", Description: "The customer name exactly as returned by get_customer_details.", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
			customerID := stringArg(args, "customer_id")
			customerName := stringArg(args, "customer_name")

			record, found, err := records.Lookup(ctx, customerID)
			if err != nil {
				return nil, false, fmt.Errorf("loan lookup: %w", err)
			}
			if !found || customerName != record.CustomerName {
				return map[string]string{"error": "No due amount found."}, false, nil
			}

			return map[string]interface{}{
				"customer_id":   record.CustomerID,
				"customer_name": record.CustomerName,
				"total_due":     record.TotalDue,
				"due_date":      record.DueDate,
				"dpd":           record.DPD,
			}, true, nil
		},
	}
}

// recordCommitmentTool captures the customer's payment promise. The write is
// asynchronous: the acknowledgement goes back to the model immediately and a
// failed write is logged, never surfaced mid-call.
func recordCommitmentTool(recorder commitments.Recorder, logger zerolog.Logger) Definition {
	return Definition{
		Name:        ToolRecordCommitment,
		Description: "Record the payment date the customer committed to. Call this once, after the customer has named a date.",
		Parameters: []Parameter{
			{Name: "customer_id", Type: "string", Description: "The customer id the call was started for.", Required: true},
			{Name: "commitment_date", Type: "string", Description: "The payment date the customer committed to, in their own words.", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
			customerID := stringArg(args, "customer_id")
			commitmentDate := stringArg(args, "commitment_date")

			c := commitments.Commitment{
				CustomerID:     customerID,
				CommitmentDate: commitmentDate,
				SessionID:      tracing.GetSessionID(ctx),
				NotedAt:        time.Now().UTC(),
			}
			log := tracing.LoggerFromContext(ctx, logger)

			go func() {
				recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
				defer cancel()

				if err := recorder.Record(recordCtx, c); err != nil {
					log.Error().Err(err).
						Str("customer_id", c.CustomerID).
						Msg("Failed to persist commitment")
					observability.RecordCommitment(false)
					observability.RecordCommitmentAudit(recordCtx, c.SessionID, "failure", map[string]interface{}{
						"customer_id": c.CustomerID,
						"error":       err.Error(),
					})
					return
				}
				observability.RecordCommitment(true)
				observability.RecordCommitmentAudit(recordCtx, c.SessionID, "success", map[string]interface{}{
					"customer_id":     c.CustomerID,
					"commitment_date": c.CommitmentDate,
				})
			}()

			return fmt.Sprintf("Commitment for %s noted.", customerID), true, nil
		},
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
