package finance

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/audit"
	"github.com/evpago/evpago/internal/pkg/metrics"
	"github.com/evpago/evpago/internal/pkg/payments"
)

// Fixed payout fee rate discounted from every transferred amount.
const payoutFeeRate = 0.0094

// Actor identifies who is asking. Top-level administrators may act on any
// payee; regional administrators only on their own region.
type Actor struct {
	ID       string
	IsAdmin  bool
	RegionID string
}

// Service owns payout batching across the two payee dimensions: regions and
// event owners.
type Service struct {
	orders    repository.OrderRepository
	transfers repository.TransferRepository
	catalog   repository.CatalogRepository
	client    payments.TransferClient
	audit     audit.Sink
}

func NewService(repos *repository.Repositories, client payments.TransferClient, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		orders:    repos.Order,
		transfers: repos.Transfer,
		catalog:   repos.Catalog,
		client:    client,
		audit:     sink,
	}
}

// PayableCents resolves the payout amount of one order: a previously recorded
// transfer amount wins, then the net-of-fee amount, then the declared total;
// the fixed payout rate is discounted and the result clamped to zero.
func PayableCents(order *models.Order) int64 {
	gross := order.TotalCents
	if order.NetAmountCents > 0 {
		gross = order.NetAmountCents
	}
	if order.AmountToTransfer > 0 {
		gross = order.AmountToTransfer
	}

	payable := int64(math.Round(float64(gross) * (1 - payoutFeeRate)))
	if payable < 0 {
		payable = 0
	}
	return payable
}

// PendingPayout aggregates the orders still awaiting payout for one payee.
type PendingPayout struct {
	PayeeType   string         `json:"payee_type"`
	PayeeID     string         `json:"payee_id"`
	PayeeName   string         `json:"payee_name,omitempty"`
	OrderCount  int            `json:"order_count"`
	AmountCents int64          `json:"amount_cents"`
	Orders      []models.Order `json:"orders,omitempty"`
}

// Summary is the per-payee financial rollup. The pending figure is re-derived
// from stored gross amounts on every call rather than read from a cached
// column.
type Summary struct {
	PayeeType        string `json:"payee_type"`
	PayeeID          string `json:"payee_id"`
	PayeeName        string `json:"payee_name"`
	PendingCents     int64  `json:"pending_cents"`
	TransferredCents int64  `json:"transferred_cents"`
	CollectedCents   int64  `json:"collected_cents"`
	PendingOrders    int    `json:"pending_orders"`
}

// ListPendingPayouts returns the payable aggregate for one payee.
func (s *Service) ListPendingPayouts(actor Actor, payeeType, payeeID string) (*PendingPayout, error) {
	if err := s.authorizeRead(actor, payeeType, payeeID); err != nil {
		return nil, err
	}

	eligible, err := s.listEligible(payeeType, payeeID)
	if err != nil {
		return nil, err
	}

	payout := &PendingPayout{
		PayeeType:  payeeType,
		PayeeID:    payeeID,
		OrderCount: len(eligible),
		Orders:     eligible,
	}
	for i := range eligible {
		payout.AmountCents += PayableCents(&eligible[i])
	}
	if name, err := s.payeeName(payeeType, payeeID); err == nil {
		payout.PayeeName = name
	}
	return payout, nil
}

// ExecuteTransfer pays out everything a payee is owed in one batch. A
// PENDING Transfer row is written before the gateway call; on success it
// becomes SUCCESS and the included orders are stamped TRANSFERRED atomically,
// on failure it becomes FAILED and the orders stay eligible for a later run.
func (s *Service) ExecuteTransfer(ctx context.Context, actor Actor, payeeType, payeeID string) (*models.Transfer, error) {
	if err := s.authorizeExecute(actor, payeeType, payeeID); err != nil {
		return nil, err
	}

	destination, err := s.resolveDestination(payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(destination.PixKey) == "" {
		return nil, apperr.Validation(fmt.Sprintf("payee %s has no PIX key configured", destination.Name))
	}

	eligible, err := s.listEligible(payeeType, payeeID)
	if err != nil {
		return nil, err
	}

	var total int64
	orderAmounts := make(map[string]int64, len(eligible))
	orderIDs := make([]string, 0, len(eligible))
	for i := range eligible {
		payable := PayableCents(&eligible[i])
		if payable == 0 {
			continue
		}
		orderAmounts[eligible[i].ID] = payable
		orderIDs = append(orderIDs, eligible[i].ID)
		total += payable
	}
	if total == 0 {
		return nil, apperr.Conflict("nothing to transfer")
	}

	transfer := &models.Transfer{
		ID:           uuid.New().String(),
		PayeeType:    payeeType,
		PayeeID:      payeeID,
		AmountCents:  total,
		Status:       models.TransferStatusPending,
		PixKeyType:   destination.PixKeyType,
		PixKey:       destination.PixKey,
		PixOwnerName: destination.PixOwnerName,
		PixOwnerDoc:  destination.PixOwnerDoc,
		PixBankName:  destination.PixBankName,
		CreatedByID:  actor.ID,
	}
	transfer.SetOrderIDs(orderIDs)
	if err := s.transfers.Create(transfer); err != nil {
		return nil, err
	}

	result, err := s.client.CreatePixTransfer(ctx, payments.PixTransferRequest{
		AmountCents: total,
		PixKey:      destination.PixKey,
		PixKeyType:  destination.PixKeyType,
		Description: fmt.Sprintf("Payout %s (%d orders)", transfer.ID, len(orderIDs)),
	})
	if err != nil {
		if markErr := s.transfers.MarkFailed(transfer.ID, err.Error()); markErr != nil {
			log.Errorf("failed to record failed transfer %s: %v", transfer.ID, markErr)
		}
		metrics.TransfersExecuted.WithLabelValues("failed").Inc()
		return nil, apperr.Wrap(apperr.KindUpstream, "pix transfer execution failed", err)
	}

	if err := s.transfers.MarkSuccess(transfer.ID, result.ID, orderAmounts); err != nil {
		return nil, err
	}
	metrics.TransfersExecuted.WithLabelValues("success").Inc()

	s.logAudit(audit.Entry{
		ActorID:  actor.ID,
		Action:   "transfer.executed",
		Entity:   "transfer",
		EntityID: transfer.ID,
		Metadata: map[string]interface{}{
			"payee_type":   payeeType,
			"payee_id":     payeeID,
			"amount_cents": total,
			"order_count":  len(orderIDs),
			"external_id":  result.ID,
		},
	})

	return s.transfers.GetByID(transfer.ID)
}

// ListTransferHistory returns all payout batches for one payee, newest first.
func (s *Service) ListTransferHistory(actor Actor, payeeType, payeeID string) ([]models.Transfer, error) {
	if err := s.authorizeRead(actor, payeeType, payeeID); err != nil {
		return nil, err
	}
	return s.transfers.ListByPayee(payeeType, payeeID)
}

// ListSummaries returns the financial rollup per payee. A regional
// administrator sees only their own region; administrators see every region
// and event owner.
func (s *Service) ListSummaries(actor Actor) ([]Summary, error) {
	if !actor.IsAdmin {
		if actor.RegionID == "" {
			return nil, apperr.Unauthorized("financial summaries require administrator privileges")
		}
		region, err := s.catalog.GetRegion(actor.RegionID)
		if err != nil {
			return nil, apperr.NotFound("region not found")
		}
		summary, err := s.summarize(models.PayeeTypeRegion, region.ID, region.Name)
		if err != nil {
			return nil, err
		}
		return []Summary{*summary}, nil
	}

	var summaries []Summary
	regions, err := s.catalog.ListRegions()
	if err != nil {
		return nil, err
	}
	for _, region := range regions {
		summary, err := s.summarize(models.PayeeTypeRegion, region.ID, region.Name)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	owners, err := s.catalog.ListEventOwners()
	if err != nil {
		return nil, err
	}
	for _, owner := range owners {
		summary, err := s.summarize(models.PayeeTypeEventOwner, owner.ID, owner.Name)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (s *Service) summarize(payeeType, payeeID, name string) (*Summary, error) {
	eligible, err := s.listEligible(payeeType, payeeID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		PayeeType:     payeeType,
		PayeeID:       payeeID,
		PayeeName:     name,
		PendingOrders: len(eligible),
	}
	for i := range eligible {
		summary.PendingCents += PayableCents(&eligible[i])
	}

	transfers, err := s.transfers.ListByPayee(payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	for _, transfer := range transfers {
		if transfer.Status == models.TransferStatusSuccess {
			summary.TransferredCents += transfer.AmountCents
		}
	}
	summary.CollectedCents = summary.PendingCents + summary.TransferredCents
	return summary, nil
}

func (s *Service) listEligible(payeeType, payeeID string) ([]models.Order, error) {
	var orders []models.Order
	var err error
	switch payeeType {
	case models.PayeeTypeRegion:
		orders, err = s.orders.ListPaidNeedingTransferByRegion(payeeID)
	case models.PayeeTypeEventOwner:
		orders, err = s.orders.ListPaidNeedingTransferByEventOwner(payeeID)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown payee type %q", payeeType))
	}
	if err != nil {
		return nil, err
	}

	// The repository query already excludes stamped orders; re-check here so a
	// stale read can never double-pay an order.
	eligible := orders[:0]
	for i := range orders {
		if orders[i].NeedsTransfer() {
			eligible = append(eligible, orders[i])
		}
	}
	return eligible, nil
}

// payeeName resolves the display name of a payee: the region's name for a
// region, the payee record's name for an event owner.
func (s *Service) payeeName(payeeType, payeeID string) (string, error) {
	switch payeeType {
	case models.PayeeTypeRegion:
		region, err := s.catalog.GetRegion(payeeID)
		if err != nil {
			return "", err
		}
		return region.Name, nil
	case models.PayeeTypeEventOwner:
		payee, err := s.catalog.GetPayee(payeeID)
		if err != nil {
			return "", err
		}
		return payee.Name, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown payee type %q", payeeType))
	}
}

// resolveDestination finds the payee record carrying the payout PIX key: the
// regional administrator for a region, the payee itself for an event owner.
func (s *Service) resolveDestination(payeeType, payeeID string) (*models.Payee, error) {
	switch payeeType {
	case models.PayeeTypeRegion:
		payee, err := s.catalog.FindRegionAdmin(payeeID)
		if err != nil || payee == nil {
			return nil, apperr.NotFound(fmt.Sprintf("no administrator configured for region %s", payeeID))
		}
		return payee, nil
	case models.PayeeTypeEventOwner:
		payee, err := s.catalog.GetPayee(payeeID)
		if err != nil {
			return nil, apperr.NotFound(fmt.Sprintf("payee %s not found", payeeID))
		}
		return payee, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown payee type %q", payeeType))
	}
}

func (s *Service) authorizeExecute(actor Actor, payeeType, payeeID string) error {
	if actor.IsAdmin {
		return nil
	}
	if payeeType == models.PayeeTypeRegion && actor.RegionID != "" && actor.RegionID == payeeID {
		return nil
	}
	return apperr.Unauthorized("transfer execution requires administrator privileges")
}

func (s *Service) authorizeRead(actor Actor, payeeType, payeeID string) error {
	if actor.IsAdmin {
		return nil
	}
	if payeeType == models.PayeeTypeRegion && actor.RegionID != "" && actor.RegionID == payeeID {
		return nil
	}
	return apperr.Unauthorized("access restricted to the payee's own region")
}

func (s *Service) logAudit(entry audit.Entry) {
	if err := s.audit.Log(entry); err != nil {
		log.Errorf("failed to write audit entry %s/%s: %v", entry.Entity, entry.EntityID, err)
	}
}
