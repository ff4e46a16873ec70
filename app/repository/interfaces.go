package repository

import (
	"time"

	"github.com/evpago/evpago/app/models"
)

// PaymentApplication carries the values applied to an order and its
// registrations when a payment is confirmed.
type PaymentApplication struct {
	PaymentID       string
	PaymentMethod   string
	ManualReference string
	FeeCents        int64
	NetAmountCents  int64
	PaidAt          time.Time
}

// OrderRepository defines the database operations owned by the order
// aggregate. Multi-row mutations are atomic: order and registrations always
// move together inside one transaction.
type OrderRepository interface {
	CreateWithRegistrations(order *models.Order, registrations []models.Registration) error
	DeleteWithRegistrations(orderID string) error
	GetByID(id string) (*models.Order, error)
	Update(order *models.Order) error
	UpdateFields(orderID string, fields map[string]interface{}) error
	ListPendingByPayer(payerTaxID string) ([]models.Order, error)
	ListPendingByEventAndPayer(eventID, payerTaxID string) ([]models.Order, error)
	ListByFilter(eventID, status string) ([]models.Order, error)
	ListPending() ([]models.Order, error)
	CountActiveRegistrations(eventID, taxID string) (int64, error)
	GetRegistrationsByIDs(ids []string) ([]models.Registration, error)
	ApplyPayment(orderID string, application PaymentApplication) (*models.Order, error)
	ApplyRefund(orderID, registrationID string, refund *models.Refund) error
	Reprice(orderID string, unitPriceCents int64) error
	ExpireOrders(orderIDs []string, auditEntries []models.AuditLog) error
	SplitRegistration(registrationID string, newOrder *models.Order) error
	SetCharge(orderID, chargeRef, preferenceRef string, version int, expiresAt *time.Time) error
	ListPaidNeedingTransferByRegion(regionID string) ([]models.Order, error)
	ListPaidNeedingTransferByEventOwner(payeeID string) ([]models.Order, error)
}

// WebhookEventRepository persists inbound notification admissions. The unique
// idempotency key makes CreateIfNotExists the system's only concurrency guard
// against duplicate deliveries.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint) error
	ListByOrder(orderID string) ([]models.WebhookEvent, error)
}

// TransferRepository persists payout batches and their terminal updates.
type TransferRepository interface {
	Create(transfer *models.Transfer) error
	GetByID(id string) (*models.Transfer, error)
	MarkSuccess(transferID, externalID string, orderAmounts map[string]int64) error
	MarkFailed(transferID, errorMessage string) error
	ListByPayee(payeeType, payeeID string) ([]models.Transfer, error)
}

// PixConfigRepository reads and manages the active gateway configuration.
type PixConfigRepository interface {
	GetActive() (*models.PixGatewayConfig, error)
	List() ([]models.PixGatewayConfig, error)
	Create(config *models.PixGatewayConfig) error
	Activate(id uint) error
}

// CatalogRepository is the narrow read surface of the external catalog the
// payment core consumes: events, price lots, payees and regions.
type CatalogRepository interface {
	GetEvent(id string) (*models.Event, error)
	FindActiveLot(eventID string, at time.Time) (*models.PriceLot, error)
	GetPayee(id string) (*models.Payee, error)
	FindRegionAdmin(regionID string) (*models.Payee, error)
	GetRegion(id string) (*models.Region, error)
	ListRegions() ([]models.Region, error)
	ListEventOwners() ([]models.Payee, error)
}

// Repositories bundles all repository implementations.
type Repositories struct {
	Order     OrderRepository
	Webhook   WebhookEventRepository
	Transfer  TransferRepository
	PixConfig PixConfigRepository
	Catalog   CatalogRepository
}
