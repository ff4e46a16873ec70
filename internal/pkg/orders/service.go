package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/audit"
	"github.com/evpago/evpago/internal/pkg/metrics"
	"github.com/evpago/evpago/internal/pkg/payments"
	"github.com/evpago/evpago/internal/pkg/receipts"
	"github.com/evpago/evpago/internal/pkg/storage"
)

// GatewayResolver yields the gateway matching the active provider
// configuration.
type GatewayResolver interface {
	Resolve() (payments.Gateway, error)
}

// Service owns the order aggregate: batch creation, payment application,
// refunds, repricing and expiration.
type Service struct {
	orders   repository.OrderRepository
	catalog  repository.CatalogRepository
	resolver GatewayResolver
	storage  storage.Storage
	receipts receipts.Generator
	audit    audit.Sink
}

func NewService(repos *repository.Repositories, resolver GatewayResolver, store storage.Storage, generator receipts.Generator, sink audit.Sink) *Service {
	if store == nil {
		store = storage.NopStorage{}
	}
	if generator == nil {
		generator = receipts.LogGenerator{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		orders:   repos.Order,
		catalog:  repos.Catalog,
		resolver: resolver,
		storage:  store,
		receipts: generator,
		audit:    sink,
	}
}

// ParticipantInput is one participant submitted for registration.
type ParticipantInput struct {
	FullName    string     `json:"full_name" validate:"required,min=3,max=200"`
	TaxID       string     `json:"tax_id" validate:"required,min=11,max=14"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	RegionID    string     `json:"region_id,omitempty"`
	PhotoBase64 string     `json:"photo_base64,omitempty"`
}

// CreateBatchInput groups participants into one purchase order.
type CreateBatchInput struct {
	EventID         string             `json:"event_id" validate:"required"`
	PayerTaxID      string             `json:"payer_tax_id" validate:"required,min=11,max=14"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	ManualReference string             `json:"manual_reference,omitempty"`
	Participants    []ParticipantInput `json:"participants" validate:"required,min=1,dive"`
	ActorID         string             `json:"-"`
	ActorIsAdmin    bool               `json:"-"`
}

// CreateBatchResult is the created order plus the PIX charge instruction when
// a gateway charge was issued.
type CreateBatchResult struct {
	Order  *models.Order          `json:"order"`
	Charge *payments.ChargeHandle `json:"charge,omitempty"`
}

// CreateBatch validates and persists a purchase order for one or more
// participants. Free methods mark the order paid immediately, manual methods
// leave it pending until an operator confirms, and PIX issues a gateway
// charge. A failed charge creation rolls the whole order back.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (*CreateBatchResult, error) {
	if len(input.Participants) == 0 {
		return nil, apperr.Validation("at least one participant is required")
	}
	method := strings.ToUpper(strings.TrimSpace(input.PaymentMethod))
	if !models.IsKnownPaymentMethod(method) {
		return nil, apperr.Validation(fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}
	if models.IsAdminOnlyPaymentMethod(method) && !input.ActorIsAdmin {
		return nil, apperr.Unauthorized(fmt.Sprintf("payment method %s requires administrator privileges", method))
	}

	event, err := s.catalog.GetEvent(input.EventID)
	if err != nil {
		return nil, apperr.NotFound("event not found")
	}
	if !event.IsActive {
		return nil, apperr.Validation("event is not accepting registrations")
	}
	if !eventAcceptsMethod(event, method) {
		return nil, apperr.Validation(fmt.Sprintf("event does not accept payment method %s", method))
	}

	seen := make(map[string]bool, len(input.Participants))
	for _, participant := range input.Participants {
		taxID := normalizeTaxID(participant.TaxID)
		if taxID == "" {
			return nil, apperr.Validation(fmt.Sprintf("participant %q has no tax id", participant.FullName))
		}
		if seen[taxID] {
			return nil, apperr.Validation(fmt.Sprintf("duplicate participant tax id %s in batch", taxID))
		}
		seen[taxID] = true

		count, err := s.orders.CountActiveRegistrations(event.ID, taxID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, apperr.Conflict(fmt.Sprintf("participant %s is already registered for this event", taxID))
		}

		if event.MinAgeYears > 0 && participant.BirthDate != nil {
			if ageAt(*participant.BirthDate, time.Now()) < event.MinAgeYears {
				return nil, apperr.Validation(fmt.Sprintf("participant %q is below the minimum age of %d", participant.FullName, event.MinAgeYears))
			}
		}
	}

	unitPriceCents, pricingLotID, err := s.resolveUnitPrice(event, method)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:            uuid.New().String(),
		EventID:       event.ID,
		PayerTaxID:    normalizeTaxID(input.PayerTaxID),
		Status:        models.OrderStatusPending,
		PaymentMethod: method,
		PricingLotID:  pricingLotID,
	}

	registrationStatus := models.RegistrationStatusPendingPayment
	if models.IsFreePaymentMethod(method) {
		order.Status = models.OrderStatusPaid
		order.PaidAt = &now
		order.ChargeRef = "FREE-" + uuid.New().String()
		registrationStatus = models.RegistrationStatusPaid
	}
	if models.IsManualPaymentMethod(method) {
		order.ManualReference = strings.TrimSpace(input.ManualReference)
	}
	if method == models.PaymentMethodPix {
		expiresAt := now.Add(ExpirationWindow(method))
		order.ExpiresAt = &expiresAt
		order.PreferenceVersion = 1
	}

	registrations := make([]models.Registration, 0, len(input.Participants))
	for _, participant := range input.Participants {
		photoURL := ""
		if participant.PhotoBase64 != "" {
			photoURL, err = s.storage.SaveBase64Image(ctx, participant.PhotoBase64)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindValidation, "failed to store participant photo", err)
			}
		}
		registration := models.Registration{
			ID:            uuid.New().String(),
			OrderID:       order.ID,
			EventID:       event.ID,
			FullName:      strings.TrimSpace(participant.FullName),
			TaxID:         normalizeTaxID(participant.TaxID),
			BirthDate:     participant.BirthDate,
			RegionID:      participant.RegionID,
			PhotoURL:      photoURL,
			PriceCents:    unitPriceCents,
			Status:        registrationStatus,
			PaymentMethod: method,
		}
		if registrationStatus == models.RegistrationStatusPaid {
			registration.PaidAt = &now
		}
		registrations = append(registrations, registration)
		order.TotalCents += unitPriceCents
	}

	if order.Status == models.OrderStatusPaid {
		order.NetAmountCents = order.TotalCents
	}

	if err := s.orders.CreateWithRegistrations(order, registrations); err != nil {
		return nil, err
	}

	result := &CreateBatchResult{Order: order}

	if method == models.PaymentMethodPix && order.TotalCents > 0 {
		charge, err := s.issueCharge(ctx, order, event, registrations, order.PreferenceVersion)
		if err != nil {
			if rollbackErr := s.orders.DeleteWithRegistrations(order.ID); rollbackErr != nil {
				log.Errorf("failed to roll back order %s after charge failure: %v", order.ID, rollbackErr)
			}
			return nil, err
		}
		result.Charge = charge
	}

	// Orders born PAID go through the same post-payment bookkeeping as
	// gateway-confirmed ones.
	if order.Status == models.OrderStatusPaid {
		metrics.OrdersPaid.Inc()
		s.afterPaid(ctx, order)
		s.logAudit(audit.Entry{
			ActorID:  input.ActorID,
			Action:   "order.paid",
			Entity:   "order",
			EntityID: order.ID,
			Metadata: map[string]interface{}{
				"payment_id":     order.ChargeRef,
				"payment_method": order.PaymentMethod,
				"fee_cents":      int64(0),
				"net_cents":      order.NetAmountCents,
			},
		})
	}

	s.logAudit(audit.Entry{
		ActorID:  input.ActorID,
		Action:   "order.created",
		Entity:   "order",
		EntityID: order.ID,
		Metadata: map[string]interface{}{
			"event_id":       order.EventID,
			"payment_method": order.PaymentMethod,
			"total_cents":    order.TotalCents,
			"participants":   len(registrations),
		},
	})

	refreshed, err := s.orders.GetByID(order.ID)
	if err == nil {
		result.Order = refreshed
	}
	return result, nil
}

// PaymentConfirmation carries the provider (or operator) view of a confirmed
// payment into MarkPaid.
type PaymentConfirmation struct {
	PaymentID         string
	PaymentMethod     string
	ManualReference   string
	PreferenceVersion int
	PaidAt            *time.Time
	Settlement        *payments.SettlementDetails
	ActorID           string
}

// MarkPaid applies a confirmed payment to an order. It is idempotent: a paid
// order is returned unchanged. A confirmation carrying a preference version
// that differs from the order's nonzero stored version refers to a superseded
// price quote and is ignored without mutation.
func (s *Service) MarkPaid(ctx context.Context, orderID string, confirmation PaymentConfirmation) (*models.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, apperr.NotFound(fmt.Sprintf("order %s not found", orderID))
	}

	if order.Status == models.OrderStatusPaid || order.Status == models.OrderStatusPartiallyRefunded {
		return order, nil
	}
	if order.Status == models.OrderStatusCanceled {
		return nil, apperr.Conflict(fmt.Sprintf("order %s is canceled and cannot be paid", orderID))
	}

	if confirmation.PreferenceVersion != 0 && order.PreferenceVersion != 0 &&
		confirmation.PreferenceVersion != order.PreferenceVersion {
		log.Warnf("ignoring payment %s for order %s: preference version %d superseded by %d",
			confirmation.PaymentID, orderID, confirmation.PreferenceVersion, order.PreferenceVersion)
		return order, nil
	}

	method := confirmation.PaymentMethod
	if method == "" {
		method = order.PaymentMethod
	}

	feeCents := int64(0)
	netCents := order.TotalCents
	if method == models.PaymentMethodPix {
		feeCents, netCents = payments.ComputeFees(confirmation.Settlement, order.TotalCents)
	}

	paidAt := time.Now()
	if confirmation.PaidAt != nil {
		paidAt = *confirmation.PaidAt
	}

	updated, err := s.orders.ApplyPayment(orderID, repository.PaymentApplication{
		PaymentID:       confirmation.PaymentID,
		PaymentMethod:   method,
		ManualReference: confirmation.ManualReference,
		FeeCents:        feeCents,
		NetAmountCents:  netCents,
		PaidAt:          paidAt,
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersPaid.Inc()
	s.afterPaid(ctx, updated)
	s.logAudit(audit.Entry{
		ActorID:  confirmation.ActorID,
		Action:   "order.paid",
		Entity:   "order",
		EntityID: orderID,
		Metadata: map[string]interface{}{
			"payment_id":     confirmation.PaymentID,
			"payment_method": method,
			"fee_cents":      feeCents,
			"net_cents":      netCents,
		},
	})
	return updated, nil
}

// MarkRefunded refunds one paid registration of an order: the registration
// moves to REFUNDED, the order to PARTIALLY_REFUNDED and an immutable refund
// record is written.
func (s *Service) MarkRefunded(ctx context.Context, orderID, registrationID, externalRefundID, reason, actorID string) error {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return apperr.NotFound(fmt.Sprintf("order %s not found", orderID))
	}
	if order.Status != models.OrderStatusPaid && order.Status != models.OrderStatusPartiallyRefunded {
		return apperr.Conflict(fmt.Sprintf("order %s is %s and has no payment to refund", orderID, order.Status))
	}

	registrations, err := s.orders.GetRegistrationsByIDs([]string{registrationID})
	if err != nil || len(registrations) == 0 {
		return apperr.NotFound(fmt.Sprintf("registration %s not found", registrationID))
	}
	registration := registrations[0]
	if registration.OrderID != orderID {
		return apperr.Validation(fmt.Sprintf("registration %s does not belong to order %s", registrationID, orderID))
	}
	if registration.Status == models.RegistrationStatusRefunded {
		return nil
	}
	if registration.Status != models.RegistrationStatusPaid && registration.Status != models.RegistrationStatusCheckedIn {
		return apperr.Conflict(fmt.Sprintf("registration %s is %s and cannot be refunded", registrationID, registration.Status))
	}

	refund := &models.Refund{
		OrderID:          orderID,
		RegistrationID:   registrationID,
		AmountCents:      registration.PriceCents,
		ExternalRefundID: externalRefundID,
		Reason:           reason,
	}
	if err := s.orders.ApplyRefund(orderID, registrationID, refund); err != nil {
		return err
	}

	s.logAudit(audit.Entry{
		ActorID:  actorID,
		Action:   "order.refunded",
		Entity:   "registration",
		EntityID: registrationID,
		Metadata: map[string]interface{}{
			"order_id":     orderID,
			"amount_cents": registration.PriceCents,
			"reason":       reason,
		},
	})
	return nil
}

// RefundOrder refunds every paid registration of an order, used when a
// provider reports an order-level refund or chargeback.
func (s *Service) RefundOrder(ctx context.Context, orderID, externalRefundID, reason, actorID string) error {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return apperr.NotFound(fmt.Sprintf("order %s not found", orderID))
	}
	if order.Status != models.OrderStatusPaid && order.Status != models.OrderStatusPartiallyRefunded {
		return apperr.Conflict(fmt.Sprintf("order %s is %s and has no payment to refund", orderID, order.Status))
	}

	for _, registration := range order.Registrations {
		if registration.Status != models.RegistrationStatusPaid && registration.Status != models.RegistrationStatusCheckedIn {
			continue
		}
		if err := s.MarkRefunded(ctx, orderID, registration.ID, externalRefundID, reason, actorID); err != nil {
			return err
		}
	}
	return nil
}

// ManualBatchInput identifies manual-method registrations an operator has
// collected payment for. ProofBase64 optionally attaches the payment proof
// (deposit slip, receipt photo) stored alongside each confirmed order.
type ManualBatchInput struct {
	RegistrationIDs []string   `json:"registration_ids" validate:"required,min=1"`
	Reference       string     `json:"reference,omitempty"`
	ProofBase64     string     `json:"proof_base64,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	ActorID         string     `json:"-"`
}

// MarkManualBatchPaid confirms operator-collected payments. The registrations
// are grouped by order; each affected order must be pending, use a manual
// payment method, and have all of its registrations included in the batch so
// the order is never left half paid.
func (s *Service) MarkManualBatchPaid(ctx context.Context, input ManualBatchInput) ([]models.Order, error) {
	if len(input.RegistrationIDs) == 0 {
		return nil, apperr.Validation("no registrations given")
	}

	registrations, err := s.orders.GetRegistrationsByIDs(input.RegistrationIDs)
	if err != nil {
		return nil, err
	}
	if len(registrations) != len(input.RegistrationIDs) {
		return nil, apperr.NotFound("one or more registrations were not found")
	}

	byOrder := make(map[string][]models.Registration)
	for _, registration := range registrations {
		if !models.IsManualPaymentMethod(registration.PaymentMethod) {
			return nil, apperr.Conflict(fmt.Sprintf("registration %s does not use a manual payment method", registration.ID))
		}
		if registration.Status != models.RegistrationStatusPendingPayment {
			return nil, apperr.Conflict(fmt.Sprintf("registration %s is %s, expected PENDING_PAYMENT", registration.ID, registration.Status))
		}
		byOrder[registration.OrderID] = append(byOrder[registration.OrderID], registration)
	}

	var updated []models.Order
	for orderID, batch := range byOrder {
		order, err := s.orders.GetByID(orderID)
		if err != nil {
			return updated, apperr.NotFound(fmt.Sprintf("order %s not found", orderID))
		}
		if order.Status != models.OrderStatusPending {
			return updated, apperr.Conflict(fmt.Sprintf("order %s is %s and cannot be confirmed", orderID, order.Status))
		}
		if len(batch) != len(order.Registrations) {
			return updated, apperr.Conflict(fmt.Sprintf("order %s registrations must be confirmed together", orderID))
		}

		paid, err := s.MarkPaid(ctx, orderID, PaymentConfirmation{
			PaymentID:       "MANUAL-" + uuid.New().String(),
			PaymentMethod:   order.PaymentMethod,
			ManualReference: input.Reference,
			PaidAt:          input.PaidAt,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return updated, err
		}

		if input.ProofBase64 != "" {
			if url := s.storeProof(ctx, orderID, input.ProofBase64); url != "" {
				paid.PaymentProofURL = url
			}
		}
		updated = append(updated, *paid)
	}
	return updated, nil
}

// storeProof persists a payment proof attachment for one confirmed order.
// Proof storage is best effort: the payment stands even when the attachment
// cannot be saved.
func (s *Service) storeProof(ctx context.Context, orderID, data string) string {
	contentType, raw, err := storage.DecodeBase64Image(data)
	if err != nil {
		log.Warnf("invalid payment proof for order %s: %v", orderID, err)
		return ""
	}
	url, err := s.storage.SaveProof(ctx, orderID, raw, contentType)
	if err != nil {
		log.Warnf("failed to store payment proof for order %s: %v", orderID, err)
		return ""
	}
	if url == "" {
		return ""
	}
	if err := s.orders.UpdateFields(orderID, map[string]interface{}{"payment_proof_url": url}); err != nil {
		log.Warnf("failed to record payment proof url for order %s: %v", orderID, err)
	}
	return url
}

// ListPendingByPayer returns the payer's pending orders that are still
// payable, optionally narrowed to one event; orders past their effective
// expiration are filtered out even before the sweeper touches them.
func (s *Service) ListPendingByPayer(payerTaxID, eventID string) ([]models.Order, error) {
	var pending []models.Order
	var err error
	if eventID != "" {
		pending, err = s.orders.ListPendingByEventAndPayer(eventID, normalizeTaxID(payerTaxID))
	} else {
		pending, err = s.orders.ListPendingByPayer(normalizeTaxID(payerTaxID))
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payable := pending[:0]
	for i := range pending {
		if !IsExpired(&pending[i], now) {
			payable = append(payable, pending[i])
		}
	}
	return payable, nil
}

// ListOrders returns orders matching the given event and status filters,
// newest first. Empty filters match everything.
func (s *Service) ListOrders(eventID, status string) ([]models.Order, error) {
	return s.orders.ListByFilter(eventID, strings.ToUpper(strings.TrimSpace(status)))
}

// PaymentView is the payment status of an order, carrying a fresh charge
// instruction when one was (re)issued.
type PaymentView struct {
	Order  *models.Order          `json:"order"`
	Charge *payments.ChargeHandle `json:"charge,omitempty"`
}

// GetPayment returns the current payment state of an order. For pending PIX
// orders it reprices against the active lot when the event follows the
// UPDATE_TO_ACTIVE_LOT rule, reconciles the charge against the provider, and
// issues a fresh charge (bumping the preference version) when the stored one
// is missing, expired, canceled or superseded by repricing.
func (s *Service) GetPayment(ctx context.Context, orderID string) (*PaymentView, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, apperr.NotFound(fmt.Sprintf("order %s not found", orderID))
	}

	if order.Status != models.OrderStatusPending {
		return &PaymentView{Order: order}, nil
	}
	if IsExpired(order, time.Now()) {
		return nil, apperr.Conflict(fmt.Sprintf("order %s has expired", orderID))
	}

	event, err := s.catalog.GetEvent(order.EventID)
	if err != nil {
		return nil, apperr.NotFound("event not found")
	}

	repriced, err := s.repriceIfNeeded(order, event)
	if err != nil {
		return nil, err
	}
	if repriced {
		order, err = s.orders.GetByID(orderID)
		if err != nil {
			return nil, err
		}
	}

	if order.PaymentMethod != models.PaymentMethodPix {
		return &PaymentView{Order: order}, nil
	}

	gateway, err := s.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	needsCharge := repriced || order.ChargeRef == ""

	// An order without a stored charge reference may still have been paid
	// against a charge the system lost track of; search the provider by order
	// reference before quoting again.
	if order.ChargeRef == "" {
		if finder, ok := gateway.(payments.PaymentFinder); ok {
			state, err := finder.FindLatestPaymentByReference(ctx, order.ID)
			if err != nil {
				log.Warnf("payment search for order %s failed: %v", orderID, err)
			} else if state != nil && state.Status == payments.ChargePaid {
				paid, err := s.MarkPaid(ctx, orderID, PaymentConfirmation{
					PaymentID:         state.ChargeID,
					PaymentMethod:     models.PaymentMethodPix,
					PreferenceVersion: state.PreferenceVersion,
					PaidAt:            state.PaidAt,
					Settlement:        state.Settlement,
				})
				if err != nil {
					return nil, err
				}
				return &PaymentView{Order: paid}, nil
			}
		}
	}

	if order.ChargeRef != "" && !repriced {
		state, err := gateway.GetChargeStatus(ctx, order.ChargeRef)
		if err != nil {
			log.Warnf("failed to refresh charge %s for order %s: %v", order.ChargeRef, orderID, err)
		} else {
			switch state.Status {
			case payments.ChargePaid:
				paid, err := s.MarkPaid(ctx, orderID, PaymentConfirmation{
					PaymentID:         state.ChargeID,
					PaymentMethod:     models.PaymentMethodPix,
					PreferenceVersion: state.PreferenceVersion,
					PaidAt:            state.PaidAt,
					Settlement:        state.Settlement,
				})
				if err != nil {
					return nil, err
				}
				return &PaymentView{Order: paid}, nil
			case payments.ChargeExpired, payments.ChargeCanceled:
				needsCharge = true
			}
		}
	}

	view := &PaymentView{Order: order}
	if needsCharge {
		version := order.PreferenceVersion + 1
		charge, err := s.issueCharge(ctx, order, event, order.Registrations, version)
		if err != nil {
			return nil, err
		}
		view.Charge = charge
		if order, err = s.orders.GetByID(orderID); err == nil {
			view.Order = order
		}
	}
	return view, nil
}

// SplitRegistration moves one unpaid registration into its own order so the
// participant can pay individually. The old order is retotaled and its
// preference version bumped, invalidating any outstanding quote for it.
func (s *Service) SplitRegistration(ctx context.Context, registrationID, actorID string) (*PaymentView, error) {
	registrations, err := s.orders.GetRegistrationsByIDs([]string{registrationID})
	if err != nil || len(registrations) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("registration %s not found", registrationID))
	}
	registration := registrations[0]
	if registration.Status != models.RegistrationStatusPendingPayment && registration.Status != models.RegistrationStatusDraft {
		return nil, apperr.Conflict(fmt.Sprintf("registration %s is %s and cannot be split into its own order", registrationID, registration.Status))
	}

	source, err := s.orders.GetByID(registration.OrderID)
	if err != nil {
		return nil, apperr.NotFound(fmt.Sprintf("order %s not found", registration.OrderID))
	}
	if source.Status != models.OrderStatusPending {
		return nil, apperr.Conflict(fmt.Sprintf("order %s is %s and cannot be split", source.ID, source.Status))
	}

	now := time.Now()
	expiresAt := now.Add(ExpirationWindow(models.PaymentMethodPix))
	newOrder := &models.Order{
		ID:                uuid.New().String(),
		EventID:           registration.EventID,
		PayerTaxID:        registration.TaxID,
		TotalCents:        registration.PriceCents,
		Status:            models.OrderStatusPending,
		PaymentMethod:     models.PaymentMethodPix,
		PreferenceVersion: 1,
		PricingLotID:      source.PricingLotID,
		ExpiresAt:         &expiresAt,
	}
	if err := s.orders.SplitRegistration(registrationID, newOrder); err != nil {
		return nil, err
	}

	s.logAudit(audit.Entry{
		ActorID:  actorID,
		Action:   "order.split",
		Entity:   "registration",
		EntityID: registrationID,
		Metadata: map[string]interface{}{
			"source_order_id": source.ID,
			"new_order_id":    newOrder.ID,
		},
	})

	return s.GetPayment(ctx, newOrder.ID)
}

// issueCharge creates a provider charge for the order and stores its
// references under the given preference version.
func (s *Service) issueCharge(ctx context.Context, order *models.Order, event *models.Event, registrations []models.Registration, version int) (*payments.ChargeHandle, error) {
	gateway, err := s.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	items := make([]payments.ChargeItem, 0, len(registrations))
	for _, registration := range registrations {
		items = append(items, payments.ChargeItem{
			RegistrationID: registration.ID,
			FullName:       registration.FullName,
			PriceCents:     registration.PriceCents,
		})
	}

	charge, err := gateway.CreateCharge(ctx, &payments.OrderContext{
		ID:                order.ID,
		EventTitle:        event.Title,
		PayerTaxID:        order.PayerTaxID,
		TotalCents:        order.TotalCents,
		PaymentMethod:     order.PaymentMethod,
		PreferenceVersion: version,
		Items:             items,
		CreatedAt:         order.CreatedAt,
		ExpiresAt:         order.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	expiresAt := order.ExpiresAt
	if charge.ExpiresAt != nil {
		expiresAt = charge.ExpiresAt
	}
	if err := s.orders.SetCharge(order.ID, charge.ChargeID, charge.PreferenceRef, version, expiresAt); err != nil {
		return nil, err
	}
	return charge, nil
}

// repriceIfNeeded applies the active lot price to a pending order when the
// event follows UPDATE_TO_ACTIVE_LOT and the lot changed since creation.
func (s *Service) repriceIfNeeded(order *models.Order, event *models.Event) (bool, error) {
	if event.PendingPricingRule != models.PendingPricingActiveLot {
		return false, nil
	}

	lot, err := s.catalog.FindActiveLot(event.ID, time.Now())
	if err != nil || lot == nil {
		return false, nil
	}
	if order.PricingLotID != nil && *order.PricingLotID == lot.ID {
		return false, nil
	}

	if err := s.orders.Reprice(order.ID, lot.PriceCents); err != nil {
		return false, err
	}
	if err := s.orders.UpdateFields(order.ID, map[string]interface{}{"pricing_lot_id": lot.ID}); err != nil {
		return false, err
	}
	log.Infof("repriced pending order %s to lot %d (%d cents per registration)", order.ID, lot.ID, lot.PriceCents)
	return true, nil
}

func (s *Service) resolveUnitPrice(event *models.Event, method string) (int64, *uint, error) {
	if event.IsFree || models.IsFreePaymentMethod(method) {
		return 0, nil, nil
	}

	lot, err := s.catalog.FindActiveLot(event.ID, time.Now())
	if err == nil && lot != nil {
		lotID := lot.ID
		return lot.PriceCents, &lotID, nil
	}

	if event.PriceCents <= 0 {
		return 0, nil, apperr.Validation("no active price tier for this event")
	}
	return event.PriceCents, nil, nil
}

// afterPaid triggers the post-payment collaborators. Receipt generation is
// best effort from the core's perspective.
func (s *Service) afterPaid(ctx context.Context, order *models.Order) {
	if err := s.receipts.GenerateForOrder(ctx, order.ID); err != nil {
		log.Errorf("receipt generation failed for order %s: %v", order.ID, err)
	}
}

func (s *Service) logAudit(entry audit.Entry) {
	if err := s.audit.Log(entry); err != nil {
		log.Errorf("failed to write audit entry %s/%s: %v", entry.Entity, entry.EntityID, err)
	}
}

func eventAcceptsMethod(event *models.Event, method string) bool {
	if strings.TrimSpace(event.PaymentMethodsCSV) == "" {
		return true
	}
	for _, allowed := range strings.Split(event.PaymentMethodsCSV, ",") {
		if strings.ToUpper(strings.TrimSpace(allowed)) == method {
			return true
		}
	}
	// Courtesy grants bypass the event's advertised method list.
	return method == models.PaymentMethodCourtesy
}

func normalizeTaxID(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ageAt(birthDate, at time.Time) int {
	years := at.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}
