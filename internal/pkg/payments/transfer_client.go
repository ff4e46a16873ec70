package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/env"
)

// PixTransferRequest is one outbound payout instruction.
type PixTransferRequest struct {
	AmountCents int64
	PixKey      string
	PixKeyType  string
	Description string
}

// PixTransferResult carries the provider reference of an accepted transfer.
type PixTransferResult struct {
	ID string
}

// TransferClient executes outbound PIX transfers to payees.
type TransferClient interface {
	CreatePixTransfer(ctx context.Context, req PixTransferRequest) (*PixTransferResult, error)
}

// MercadoPagoTransferClient sends payouts through the Mercado Pago transfer
// API.
type MercadoPagoTransferClient struct {
	AccessToken string
	URL         string

	HTTPClient *http.Client
}

func NewMercadoPagoTransferClient() *MercadoPagoTransferClient {
	return &MercadoPagoTransferClient{
		AccessToken: strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		URL:         strings.TrimSpace(env.GetEnv("MP_TRANSFER_URL", defaultMercadoPagoBaseURL+"/v1/transfers")),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *MercadoPagoTransferClient) CreatePixTransfer(ctx context.Context, req PixTransferRequest) (*PixTransferResult, error) {
	body := map[string]interface{}{
		"amount":      req.AmountCents,
		"currency":    "BRL",
		"description": req.Description,
		"pix_key":     req.PixKey,
	}
	if req.PixKeyType != "" {
		body["pix_type"] = req.PixKeyType
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		log.Errorf("pix transfer request failed: %v", err)
		return nil, apperr.Wrap(apperr.KindUpstream, "pix transfer request failed", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "pix transfer response read failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := transferErrorMessage(resp.StatusCode, respRaw)
		log.Errorf("pix transfer rejected (%d): %s", resp.StatusCode, message)
		return nil, apperr.Upstream(message)
	}

	var result struct {
		ID         json.Number `json:"id"`
		TransferID json.Number `json:"transfer_id"`
		Data       struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respRaw, &result); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "pix transfer response decode failed", err)
	}

	id := result.ID.String()
	if id == "" {
		id = result.TransferID.String()
	}
	if id == "" {
		id = result.Data.ID.String()
	}
	return &PixTransferResult{ID: id}, nil
}

func transferErrorMessage(status int, raw []byte) string {
	if status == http.StatusNotFound {
		return "pix transfer unavailable: check token, environment and PIX-out enablement"
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Cause   []struct {
			Description string `json:"description"`
		} `json:"cause"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if len(body.Cause) > 0 && body.Cause[0].Description != "" {
			return body.Cause[0].Description
		}
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "pix transfer failed"
}
