package infrastructure

import (
	"fmt"

	"splitpay/domain/events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeExpenseRecorded:
		return "ledger.expense.recorded"
	case events.EventTypeSettlementCreated:
		return "ledger.settlement.created"
	case events.EventTypeSettlementStateChanged:
		return "ledger.settlement.state_changed"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"ledger.expense.recorded",
		"ledger.settlement.created",
		"ledger.settlement.state_changed",
	}
}
