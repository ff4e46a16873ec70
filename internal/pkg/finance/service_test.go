package finance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/payments"
)

type fakeOrderLister struct {
	repository.OrderRepository
	byRegion map[string][]models.Order
	byOwner  map[string][]models.Order
}

func (f *fakeOrderLister) ListPaidNeedingTransferByRegion(regionID string) ([]models.Order, error) {
	return f.byRegion[regionID], nil
}

func (f *fakeOrderLister) ListPaidNeedingTransferByEventOwner(payeeID string) ([]models.Order, error) {
	return f.byOwner[payeeID], nil
}

type fakeTransferRepo struct {
	transfers map[string]*models.Transfer
	stamped   map[string]map[string]int64
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{
		transfers: make(map[string]*models.Transfer),
		stamped:   make(map[string]map[string]int64),
	}
}

func (f *fakeTransferRepo) Create(transfer *models.Transfer) error {
	stored := *transfer
	f.transfers[transfer.ID] = &stored
	return nil
}

func (f *fakeTransferRepo) GetByID(id string) (*models.Transfer, error) {
	transfer, ok := f.transfers[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	clone := *transfer
	return &clone, nil
}

func (f *fakeTransferRepo) MarkSuccess(transferID, externalID string, orderAmounts map[string]int64) error {
	transfer, ok := f.transfers[transferID]
	if !ok {
		return errors.New("record not found")
	}
	transfer.Status = models.TransferStatusSuccess
	transfer.ExternalID = externalID
	f.stamped[transferID] = orderAmounts
	return nil
}

func (f *fakeTransferRepo) MarkFailed(transferID, errorMessage string) error {
	transfer, ok := f.transfers[transferID]
	if !ok {
		return errors.New("record not found")
	}
	transfer.Status = models.TransferStatusFailed
	transfer.ErrorMessage = errorMessage
	return nil
}

func (f *fakeTransferRepo) ListByPayee(payeeType, payeeID string) ([]models.Transfer, error) {
	var out []models.Transfer
	for _, transfer := range f.transfers {
		if transfer.PayeeType == payeeType && transfer.PayeeID == payeeID {
			out = append(out, *transfer)
		}
	}
	return out, nil
}

type fakePayeeCatalog struct {
	repository.CatalogRepository
	regionAdmins map[string]*models.Payee
	payees       map[string]*models.Payee
	regions      map[string]*models.Region
}

func (f *fakePayeeCatalog) FindRegionAdmin(regionID string) (*models.Payee, error) {
	payee, ok := f.regionAdmins[regionID]
	if !ok {
		return nil, errors.New("record not found")
	}
	return payee, nil
}

func (f *fakePayeeCatalog) GetPayee(id string) (*models.Payee, error) {
	payee, ok := f.payees[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return payee, nil
}

func (f *fakePayeeCatalog) GetRegion(id string) (*models.Region, error) {
	region, ok := f.regions[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return region, nil
}

func (f *fakePayeeCatalog) ListRegions() ([]models.Region, error) {
	var out []models.Region
	for _, region := range f.regions {
		out = append(out, *region)
	}
	return out, nil
}

func (f *fakePayeeCatalog) ListEventOwners() ([]models.Payee, error) { return nil, nil }

type fakeTransferClient struct {
	err      error
	requests []payments.PixTransferRequest
}

func (f *fakeTransferClient) CreatePixTransfer(ctx context.Context, req payments.PixTransferRequest) (*payments.PixTransferResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.PixTransferResult{ID: "ext-1"}, nil
}

func paidOrder(id string, total, net, recorded int64) models.Order {
	return models.Order{
		ID:               id,
		Status:           models.OrderStatusPaid,
		TotalCents:       total,
		NetAmountCents:   net,
		AmountToTransfer: recorded,
	}
}

func regionCatalog() *fakePayeeCatalog {
	return &fakePayeeCatalog{
		regionAdmins: map[string]*models.Payee{
			"region-1": {ID: "payee-1", Name: "Regional Admin", PixKey: "admin@pix.example", PixKeyType: "email"},
		},
		payees:  map[string]*models.Payee{},
		regions: map[string]*models.Region{"region-1": {ID: "region-1", Name: "North"}},
	}
}

func newFinanceService(orders *fakeOrderLister, transfers *fakeTransferRepo, catalog *fakePayeeCatalog, client *fakeTransferClient) *Service {
	return NewService(&repository.Repositories{
		Order:    orders,
		Transfer: transfers,
		Catalog:  catalog,
	}, client, nil)
}

var admin = Actor{ID: "admin-1", IsAdmin: true}

func TestPayableCents(t *testing.T) {
	t.Run("recorded transfer amount wins", func(t *testing.T) {
		order := paidOrder("o1", 10000, 9812, 5000)
		assert.Equal(t, int64(4953), PayableCents(&order))
	})

	t.Run("net amount before total", func(t *testing.T) {
		order := paidOrder("o1", 10000, 9812, 0)
		assert.Equal(t, int64(9720), PayableCents(&order))
	})

	t.Run("falls back to total", func(t *testing.T) {
		order := paidOrder("o1", 10000, 0, 0)
		assert.Equal(t, int64(9906), PayableCents(&order))
	})

	t.Run("zero gross clamps to zero", func(t *testing.T) {
		order := paidOrder("o1", 0, 0, 0)
		assert.Equal(t, int64(0), PayableCents(&order))
	})
}

func TestExecuteTransfer(t *testing.T) {
	t.Run("success stamps orders and records external id", func(t *testing.T) {
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{
			"region-1": {paidOrder("o1", 10000, 9812, 0), paidOrder("o2", 20000, 19624, 0)},
		}}
		transfers := newFakeTransferRepo()
		client := &fakeTransferClient{}
		service := newFinanceService(orders, transfers, regionCatalog(), client)

		transfer, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.NoError(t, err)
		assert.Equal(t, models.TransferStatusSuccess, transfer.Status)
		assert.Equal(t, "ext-1", transfer.ExternalID)
		assert.Equal(t, int64(9720+19440), transfer.AmountCents)
		assert.ElementsMatch(t, []string{"o1", "o2"}, transfer.OrderIDs())

		stamped := transfers.stamped[transfer.ID]
		assert.Equal(t, int64(9720), stamped["o1"])
		assert.Equal(t, int64(19440), stamped["o2"])

		if assert.Len(t, client.requests, 1) {
			assert.Equal(t, "admin@pix.example", client.requests[0].PixKey)
			assert.Equal(t, transfer.AmountCents, client.requests[0].AmountCents)
		}
	})

	t.Run("gateway failure keeps a FAILED row", func(t *testing.T) {
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{
			"region-1": {paidOrder("o1", 10000, 0, 0)},
		}}
		transfers := newFakeTransferRepo()
		client := &fakeTransferClient{err: apperr.Upstream("pix transfer failed")}
		service := newFinanceService(orders, transfers, regionCatalog(), client)

		_, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.True(t, apperr.IsKind(err, apperr.KindUpstream))

		assert.Len(t, transfers.transfers, 1)
		for _, transfer := range transfers.transfers {
			assert.Equal(t, models.TransferStatusFailed, transfer.Status)
			assert.NotEmpty(t, transfer.ErrorMessage)
		}
		assert.Empty(t, transfers.stamped)
	})

	t.Run("nothing to transfer", func(t *testing.T) {
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{}}
		service := newFinanceService(orders, newFakeTransferRepo(), regionCatalog(), &fakeTransferClient{})

		_, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	})

	t.Run("missing pix key rejected", func(t *testing.T) {
		catalog := regionCatalog()
		catalog.regionAdmins["region-1"].PixKey = ""
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{
			"region-1": {paidOrder("o1", 10000, 0, 0)},
		}}
		service := newFinanceService(orders, newFakeTransferRepo(), catalog, &fakeTransferClient{})

		_, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("regional admin may execute own region only", func(t *testing.T) {
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{
			"region-1": {paidOrder("o1", 10000, 0, 0)},
		}}
		service := newFinanceService(orders, newFakeTransferRepo(), regionCatalog(), &fakeTransferClient{})

		regional := Actor{ID: "user-1", RegionID: "region-1"}
		_, err := service.ExecuteTransfer(context.Background(), regional, models.PayeeTypeRegion, "region-1")
		assert.NoError(t, err)

		outsider := Actor{ID: "user-2", RegionID: "region-2"}
		_, err = service.ExecuteTransfer(context.Background(), outsider, models.PayeeTypeRegion, "region-1")
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

		_, err = service.ExecuteTransfer(context.Background(), outsider, models.PayeeTypeEventOwner, "payee-9")
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	})

	t.Run("stale reads of settled orders are excluded", func(t *testing.T) {
		settled := paidOrder("o9", 10000, 0, 0)
		settled.TransferStatus = models.OrderTransferTransferred
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{
			"region-1": {paidOrder("o1", 10000, 9812, 0), settled},
		}}
		transfers := newFakeTransferRepo()
		service := newFinanceService(orders, transfers, regionCatalog(), &fakeTransferClient{})

		payout, err := service.ListPendingPayouts(admin, models.PayeeTypeRegion, "region-1")
		assert.NoError(t, err)
		assert.Equal(t, 1, payout.OrderCount)
		assert.Equal(t, int64(9720), payout.AmountCents)

		transfer, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"o1"}, transfer.OrderIDs())
	})

	t.Run("successive batches settle disjoint order sets", func(t *testing.T) {
		orders := &fakeOrderLister{byRegion: map[string][]models.Order{
			"region-1": {paidOrder("o1", 10000, 0, 0)},
		}}
		transfers := newFakeTransferRepo()
		service := newFinanceService(orders, transfers, regionCatalog(), &fakeTransferClient{})

		first, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.NoError(t, err)

		// o1 was stamped TRANSFERRED, so the next run sees only o2.
		orders.byRegion["region-1"] = []models.Order{paidOrder("o2", 5000, 0, 0)}

		second, err := service.ExecuteTransfer(context.Background(), admin, models.PayeeTypeRegion, "region-1")
		assert.NoError(t, err)

		seen := make(map[string]int)
		for _, transfer := range []*models.Transfer{first, second} {
			for _, id := range transfer.OrderIDs() {
				seen[id]++
			}
		}
		for id, count := range seen {
			assert.Equalf(t, 1, count, "order %s appears in more than one SUCCESS batch", id)
		}
	})
}

func TestListSummaries(t *testing.T) {
	orders := &fakeOrderLister{byRegion: map[string][]models.Order{
		"region-1": {paidOrder("o1", 10000, 9812, 0)},
	}}
	transfers := newFakeTransferRepo()
	done := &models.Transfer{
		ID:        "t1",
		PayeeType: models.PayeeTypeRegion,
		PayeeID:   "region-1",
		Status:    models.TransferStatusSuccess,
		// Failed attempts must not count toward the transferred total.
		AmountCents: 5000,
	}
	assert.NoError(t, transfers.Create(done))
	failed := &models.Transfer{
		ID:          "t2",
		PayeeType:   models.PayeeTypeRegion,
		PayeeID:     "region-1",
		Status:      models.TransferStatusFailed,
		AmountCents: 7000,
	}
	assert.NoError(t, transfers.Create(failed))

	service := newFinanceService(orders, transfers, regionCatalog(), &fakeTransferClient{})

	t.Run("admin sees rollup", func(t *testing.T) {
		summaries, err := service.ListSummaries(admin)
		assert.NoError(t, err)
		if assert.Len(t, summaries, 1) {
			assert.Equal(t, int64(9720), summaries[0].PendingCents)
			assert.Equal(t, int64(5000), summaries[0].TransferredCents)
			assert.Equal(t, int64(14720), summaries[0].CollectedCents)
		}
	})

	t.Run("regional admin limited to own region", func(t *testing.T) {
		summaries, err := service.ListSummaries(Actor{ID: "user-1", RegionID: "region-1"})
		assert.NoError(t, err)
		assert.Len(t, summaries, 1)
		assert.Equal(t, "region-1", summaries[0].PayeeID)

		_, err = service.ListSummaries(Actor{ID: "user-2"})
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	})
}
