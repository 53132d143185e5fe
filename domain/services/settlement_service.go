package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"splitpay/domain"
	"splitpay/domain/entities"
	"splitpay/domain/events"
	"splitpay/domain/interfaces"
	"splitpay/observability"
)

// SettlementMetadata is the free-form metadata recorded with a settlement.
type SettlementMetadata struct {
	Category string
	Note     string
}

// SettlementService drives settlements through the two-phase confirmation
// protocol with the payment gateway. The settlement row is the only
// contended resource and is protected exclusively by the repository's
// compare-and-set transition; no in-process locks, so correctness holds
// across process instances.
//
// The status is written before and after every gateway call, never during:
// no database transaction stays open while the gateway is on the wire. A
// transport failure reverts the in-flight status to its prior value, so
// retries are always safe.
type SettlementService struct {
	uowFactory interfaces.UnitOfWorkFactory
	gateway    interfaces.PaymentGateway
	metrics    *observability.Metrics
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(uowFactory interfaces.UnitOfWorkFactory, gateway interfaces.PaymentGateway, metrics *observability.Metrics) *SettlementService {
	return &SettlementService{
		uowFactory: uowFactory,
		gateway:    gateway,
		metrics:    metrics,
	}
}

// Create records a settlement in status pending. Exactly one of toUserID
// and externalAddress must be set; the amount is fixed here and never
// revalidated against caller input afterwards.
func (s *SettlementService) Create(ctx context.Context, fromUserID int64, toUserID *int64, externalAddress *string, amount int64, currency string, meta SettlementMetadata) (*entities.Settlement, error) {
	settlement, err := s.buildSettlement(fromUserID, toUserID, externalAddress, amount, currency, meta)
	if err != nil {
		return nil, err
	}
	settlement.Status = entities.SettlementStatusPending

	if err := s.insert(ctx, settlement); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"settlementID": settlement.ID,
		"fromUserID":   fromUserID,
		"amount":       amount,
		"currency":     currency,
		"counterparty": settlement.CounterpartyLabel(),
	}).Info("Created settlement")

	return settlement, nil
}

// RecordSimulated records a non-production settlement that is completed on
// creation and never touches the gateway. It exists for the explicit "quick
// pay" path; the simulated flag keeps such transfers distinguishable in
// reporting and audit.
func (s *SettlementService) RecordSimulated(ctx context.Context, fromUserID int64, toUserID *int64, externalAddress *string, amount int64, currency string, meta SettlementMetadata) (*entities.Settlement, error) {
	settlement, err := s.buildSettlement(fromUserID, toUserID, externalAddress, amount, currency, meta)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	settlement.Status = entities.SettlementStatusCompleted
	settlement.Simulated = true
	settlement.CompletedAt = &now

	if err := s.insert(ctx, settlement); err != nil {
		return nil, err
	}
	s.countFinished("simulated")

	log.WithFields(log.Fields{
		"settlementID": settlement.ID,
		"fromUserID":   fromUserID,
		"amount":       amount,
	}).Info("Recorded simulated settlement")

	return settlement, nil
}

// RequestApproval asks the gateway to approve a pending settlement.
//
// The settlement moves pending -> awaiting_gateway before the call. On
// approval it moves to approved; on rejection to failed with the reason. If
// the gateway call itself fails the settlement reverts to pending and
// ErrGatewayUnavailable is returned, so the caller may retry. A retry that
// finds the settlement already approved is a successful no-op.
func (s *SettlementService) RequestApproval(ctx context.Context, id int64) (*entities.Settlement, error) {
	settlement, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch settlement.Status {
	case entities.SettlementStatusPending:
		// proceed
	case entities.SettlementStatusApproved:
		return settlement, nil
	default:
		return nil, fmt.Errorf("settlement %d is %s: %w", id, settlement.Status, domain.ErrStaleState)
	}

	if err := s.transition(ctx, id, entities.SettlementStatusPending, entities.SettlementStatusAwaitingGateway, entities.SettlementTransition{}, nil, nil); err != nil {
		return nil, err
	}

	outcome, gwErr := s.gateway.Approve(ctx, settlement.TransferRef)
	if gwErr != nil {
		s.revert(ctx, id, entities.SettlementStatusAwaitingGateway, entities.SettlementStatusPending)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, gwErr)
	}

	if !outcome.Approved {
		reason := outcome.Reason
		if reason == "" {
			reason = "approval rejected by gateway"
		}
		if err := s.fail(ctx, settlement, entities.SettlementStatusAwaitingGateway, reason); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason)
	}

	err = s.transition(ctx, id, entities.SettlementStatusAwaitingGateway, entities.SettlementStatusApproved, entities.SettlementTransition{},
		nil,
		events.SettlementStateChangedEvent{
			SettlementID: id,
			From:         entities.SettlementStatusAwaitingGateway,
			To:           entities.SettlementStatusApproved,
		})
	if err != nil {
		return nil, err
	}

	log.WithField("settlementID", id).Info("Settlement approved by gateway")
	return s.get(ctx, id)
}

// ConfirmCompletion notifies the gateway that the transfer completed and
// stamps the external transaction id. The caller-supplied amount and
// recipient are checked against the values fixed at creation; the stored
// settlement, not caller input, is what completes.
//
// The call is idempotent: confirming an already-completed settlement with
// the same external transaction id returns the existing record.
func (s *SettlementService) ConfirmCompletion(ctx context.Context, id int64, externalTxID string, amount int64, toUserID *int64) (*entities.Settlement, error) {
	if externalTxID == "" {
		return nil, fmt.Errorf("%w: missing external transaction id", domain.ErrInvalidRecipient)
	}

	settlement, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if settlement.CompletedWith(externalTxID) {
		return settlement, nil
	}

	if amount != settlement.Amount {
		return nil, fmt.Errorf("%w: completion amount %d does not match settlement amount %d", domain.ErrInvalidAmount, amount, settlement.Amount)
	}
	if toUserID != nil && (settlement.ToUserID == nil || *settlement.ToUserID != *toUserID) {
		return nil, fmt.Errorf("%w: completion recipient does not match settlement", domain.ErrInvalidRecipient)
	}

	if settlement.Status != entities.SettlementStatusApproved {
		return nil, fmt.Errorf("settlement %d is %s, want approved: %w", id, settlement.Status, domain.ErrStaleState)
	}

	err = s.transition(ctx, id, entities.SettlementStatusApproved, entities.SettlementStatusCompleting, entities.SettlementTransition{}, nil, nil)
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			return s.resolveCompletionRace(ctx, id, externalTxID, err)
		}
		return nil, err
	}

	outcome, gwErr := s.gateway.Complete(ctx, settlement.TransferRef, externalTxID)
	if gwErr != nil {
		s.revert(ctx, id, entities.SettlementStatusCompleting, entities.SettlementStatusApproved)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, gwErr)
	}

	if !outcome.Approved {
		reason := outcome.Reason
		if reason == "" {
			reason = "completion rejected by gateway"
		}
		if err := s.fail(ctx, settlement, entities.SettlementStatusCompleting, reason); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason)
	}

	now := time.Now().UTC()
	err = s.transition(ctx, id, entities.SettlementStatusCompleting, entities.SettlementStatusCompleted,
		entities.SettlementTransition{ExternalTxID: &externalTxID, CompletedAt: &now},
		&entities.Activity{
			UserID:  settlement.FromUserID,
			Action:  entities.ActivitySettlementCompleted,
			RefType: entities.RefTypeSettlement,
			RefID:   id,
			Metadata: map[string]any{
				"amount":         settlement.Amount,
				"currency":       settlement.Currency,
				"external_tx_id": externalTxID,
			},
		},
		events.SettlementStateChangedEvent{
			SettlementID: id,
			From:         entities.SettlementStatusCompleting,
			To:           entities.SettlementStatusCompleted,
			ExternalTxID: externalTxID,
		})
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			return s.resolveCompletionRace(ctx, id, externalTxID, err)
		}
		return nil, err
	}

	s.countFinished("completed")

	log.WithFields(log.Fields{
		"settlementID": id,
		"externalTxID": externalTxID,
	}).Info("Settlement completed")

	return s.get(ctx, id)
}

// FailStuck moves settlements stuck in a non-terminal, in-flight status past
// the deadline to failed. Races with concurrent progress or other sweepers
// lose the compare-and-set and are skipped. Returns the number failed.
func (s *SettlementService) FailStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	statuses := []entities.SettlementStatus{
		entities.SettlementStatusAwaitingGateway,
		entities.SettlementStatusApproved,
		entities.SettlementStatusCompleting,
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	stuck, err := uow.SettlementRepository().ListStuck(ctx, statuses, cutoff)
	if err != nil {
		uow.Rollback()
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}

	failed := 0
	for _, settlement := range stuck {
		err := s.fail(ctx, settlement, settlement.Status, "settlement deadline exceeded")
		if errors.Is(err, domain.ErrStaleState) {
			continue
		}
		if err != nil {
			return failed, err
		}
		failed++
	}

	if failed > 0 {
		log.WithField("count", failed).Warn("Failed stuck settlements past deadline")
	}
	return failed, nil
}

// Get returns a settlement by id.
func (s *SettlementService) Get(ctx context.Context, id int64) (*entities.Settlement, error) {
	return s.get(ctx, id)
}

// ListForUser returns settlements where the user is sender or recipient.
func (s *SettlementService) ListForUser(ctx context.Context, userID int64, limit int) ([]*entities.Settlement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settlements, err := uow.SettlementRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return settlements, uow.Commit()
}

func (s *SettlementService) buildSettlement(fromUserID int64, toUserID *int64, externalAddress *string, amount int64, currency string, meta SettlementMetadata) (*entities.Settlement, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("settlement amount %d: %w", amount, domain.ErrInvalidAmount)
	}
	if (toUserID == nil) == (externalAddress == nil) {
		return nil, fmt.Errorf("%w: exactly one of recipient user and external address required", domain.ErrInvalidRecipient)
	}

	return &entities.Settlement{
		FromUserID:      fromUserID,
		ToUserID:        toUserID,
		ExternalAddress: externalAddress,
		Amount:          amount,
		Currency:        currency,
		TransferRef:     uuid.New().String(),
		Category:        meta.Category,
		Note:            meta.Note,
	}, nil
}

// insert writes the settlement with its creation activity and event in one
// transaction.
func (s *SettlementService) insert(ctx context.Context, settlement *entities.Settlement) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.SettlementRepository().Create(ctx, settlement); err != nil {
		return err
	}

	activity := &entities.Activity{
		UserID:  settlement.FromUserID,
		Action:  entities.ActivitySettlementCreated,
		RefType: entities.RefTypeSettlement,
		RefID:   settlement.ID,
		Metadata: map[string]any{
			"amount":    settlement.Amount,
			"currency":  settlement.Currency,
			"category":  settlement.Category,
			"simulated": settlement.Simulated,
		},
	}
	if err := uow.ActivityRepository().Append(ctx, activity); err != nil {
		return err
	}

	if err := uow.EventBus().Publish(events.SettlementCreatedEvent{
		SettlementID: settlement.ID,
		FromUserID:   settlement.FromUserID,
		ToUserID:     settlement.ToUserID,
		Amount:       settlement.Amount,
		Currency:     settlement.Currency,
		Simulated:    settlement.Simulated,
	}); err != nil {
		return err
	}

	return uow.Commit()
}

// transition performs one compare-and-set status change, optionally with an
// activity append and an event, in a single transaction.
func (s *SettlementService) transition(ctx context.Context, id int64, expected, next entities.SettlementStatus, extra entities.SettlementTransition, activity *entities.Activity, event events.Event) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.SettlementRepository().Transition(ctx, id, expected, next, extra); err != nil {
		return err
	}
	if activity != nil {
		if err := uow.ActivityRepository().Append(ctx, activity); err != nil {
			return err
		}
	}
	if event != nil {
		if err := uow.EventBus().Publish(event); err != nil {
			return err
		}
	}
	return uow.Commit()
}

// revert returns an in-flight settlement to its prior status after a
// gateway transport failure. Best effort: losing this race means another
// caller or the sweep already moved the settlement on.
func (s *SettlementService) revert(ctx context.Context, id int64, from, to entities.SettlementStatus) {
	err := s.transition(ctx, id, from, to, entities.SettlementTransition{}, nil, nil)
	if err != nil && !errors.Is(err, domain.ErrStaleState) {
		log.WithFields(log.Fields{
			"settlementID": id,
			"from":         from,
			"to":           to,
			"error":        err,
		}).Error("Failed to revert settlement status after gateway error")
	}
}

// countFinished records a settlement reaching a terminal state.
func (s *SettlementService) countFinished(outcome string) {
	if s.metrics != nil {
		s.metrics.SettlementsFinished.WithLabelValues(outcome).Inc()
	}
}

// fail moves a settlement to failed and records the reason.
func (s *SettlementService) fail(ctx context.Context, settlement *entities.Settlement, expected entities.SettlementStatus, reason string) error {
	err := s.transition(ctx, settlement.ID, expected, entities.SettlementStatusFailed,
		entities.SettlementTransition{Reason: &reason},
		&entities.Activity{
			UserID:  settlement.FromUserID,
			Action:  entities.ActivitySettlementFailed,
			RefType: entities.RefTypeSettlement,
			RefID:   settlement.ID,
			Metadata: map[string]any{
				"reason": reason,
			},
		},
		events.SettlementStateChangedEvent{
			SettlementID: settlement.ID,
			From:         expected,
			To:           entities.SettlementStatusFailed,
			Reason:       reason,
		})
	if err != nil {
		return err
	}
	s.countFinished("failed")
	return nil
}

// resolveCompletionRace maps a lost completion compare-and-set to success
// when the winner completed with the same external transaction id.
func (s *SettlementService) resolveCompletionRace(ctx context.Context, id int64, externalTxID string, casErr error) (*entities.Settlement, error) {
	settlement, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement.CompletedWith(externalTxID) {
		return settlement, nil
	}
	return nil, casErr
}

func (s *SettlementService) get(ctx context.Context, id int64) (*entities.Settlement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settlement, err := uow.SettlementRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, fmt.Errorf("settlement %d: %w", id, domain.ErrNotFound)
	}
	return settlement, uow.Commit()
}
