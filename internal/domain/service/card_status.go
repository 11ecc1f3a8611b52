package service

import "github.com/bivex/paygate/internal/domain/entity"

// cardStatuses maps the acquiring gateway's payment statuses to ledger statuses
var cardStatuses = map[string]entity.TransactionStatus{
	"CONFIRMED":  entity.TransactionStatusCompleted,
	"AUTHORIZED": entity.TransactionStatusCompleted,

	"NEW":          entity.TransactionStatusProcessing,
	"FORM_SHOWED":  entity.TransactionStatusProcessing,
	"AUTHORIZING":  entity.TransactionStatusProcessing,
	"3DS_CHECKING": entity.TransactionStatusProcessing,
	"3DS_CHECKED":  entity.TransactionStatusProcessing,
	"CONFIRMING":   entity.TransactionStatusProcessing,
	"REVERSING":    entity.TransactionStatusProcessing,
	"REFUNDING":    entity.TransactionStatusProcessing,

	"REJECTED":         entity.TransactionStatusFailed,
	"AUTH_FAIL":        entity.TransactionStatusFailed,
	"DEADLINE_EXPIRED": entity.TransactionStatusFailed,

	"CANCELED": entity.TransactionStatusCancelled,
	"REVERSED": entity.TransactionStatusCancelled,

	"REFUNDED":         entity.TransactionStatusRefunded,
	"PARTIAL_REFUNDED": entity.TransactionStatusRefunded,
	"PARTIAL_REVERSED": entity.TransactionStatusRefunded,
}

// MapCardStatus returns the ledger status for a gateway status.
// Unknown statuses never decide the outcome and map to processing.
func MapCardStatus(status string) entity.TransactionStatus {
	if mapped, ok := cardStatuses[status]; ok {
		return mapped
	}
	return entity.TransactionStatusProcessing
}

// isPartialCardStatus reports statuses that move only part of the amount
func isPartialCardStatus(status string) bool {
	return status == "PARTIAL_REFUNDED" || status == "PARTIAL_REVERSED"
}
