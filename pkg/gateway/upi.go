package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/shopspring/decimal"
)

// UPIClient implements Client over the gateway's JSON API.
type UPIClient struct {
	BaseURL string
	Key     string
	client  *http.Client
}

func NewUPIClient(cfg config.GatewayConfig) *UPIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UPIClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Key:     cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type createOrderReq struct {
	Key            string `json:"key"`
	ClientTxnID    string `json:"client_txn_id"`
	Amount         string `json:"amount"`
	PInfo          string `json:"p_info"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerMobile string `json:"customer_mobile"`
	RedirectURL    string `json:"redirect_url"`
	UDF1           string `json:"udf1"`
	UDF2           string `json:"udf2"`
	UDF3           string `json:"udf3"`
}

type checkStatusReq struct {
	Key         string `json:"key"`
	ClientTxnID string `json:"client_txn_id"`
	TxnDate     string `json:"txn_date"` // DD-MM-YYYY
}

type envelope struct {
	Status bool            `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

type orderData struct {
	OrderID    flexString        `json:"order_id"`
	PaymentURL string            `json:"payment_url"`
	UPIIDHash  string            `json:"upi_id_hash"`
	UPIIntent  map[string]string `json:"upi_intent"`
}

type statusData struct {
	ID           flexString `json:"id"`
	Status       string     `json:"status"`
	Amount       flexString `json:"amount"`
	UPITxnID     string     `json:"upi_txn_id"`
	CustomerName string     `json:"customer_name"`
	TxnAt        string     `json:"txnAt"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

// CreateOrder places an order. The amount is sent in whole rupees.
func (c *UPIClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	redirect := req.RedirectURL
	if redirect != "" {
		sep := "?"
		if strings.Contains(redirect, "?") {
			sep = "&"
		}
		redirect += sep + "client_txn_id=" + req.ClientTxnID
	}
	payload := createOrderReq{
		Key:            c.Key,
		ClientTxnID:    req.ClientTxnID,
		Amount:         req.Amount.Truncate(0).String(),
		PInfo:          req.ProductInfo,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerMobile: req.CustomerMobile,
		RedirectURL:    redirect,
		UDF1:           req.UDF1,
		UDF2:           req.UDF2,
		UDF3:           req.UDF3,
	}

	env, err := c.post(ctx, "/create_order", payload)
	if err != nil {
		return nil, err
	}
	var data orderData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrGateway, err)
	}
	log.Printf("[UPI] order %s created for %s", data.OrderID, req.ClientTxnID)
	return &Order{
		ClientTxnID: req.ClientTxnID,
		OrderID:     string(data.OrderID),
		PaymentURL:  data.PaymentURL,
		UPIIDHash:   data.UPIIDHash,
		UPIIntent:   data.UPIIntent,
		Raw:         env.Data,
	}, nil
}

func (c *UPIClient) CheckStatus(ctx context.Context, clientTxnID string, txnDate time.Time) (*Status, error) {
	env, err := c.post(ctx, "/check_order_status", checkStatusReq{
		Key:         c.Key,
		ClientTxnID: clientTxnID,
		TxnDate:     txnDate.Format("02-01-2006"),
	})
	if err != nil {
		return nil, err
	}
	var data statusData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode status: %v", ErrGateway, err)
	}

	st := &Status{
		Status:       strings.ToLower(data.Status),
		OrderID:      string(data.ID),
		UPITxnID:     data.UPITxnID,
		CustomerName: data.CustomerName,
		Raw:          env.Data,
	}
	if amount, err := decimal.NewFromString(string(data.Amount)); err == nil {
		st.Amount = amount
	}
	if len(data.TxnAt) >= 10 {
		if at, err := time.Parse("2006-01-02", data.TxnAt[:10]); err == nil {
			st.TxnAt = &at
		}
	}
	return st, nil
}

func (c *UPIClient) post(ctx context.Context, path string, payload interface{}) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[UPI] POST %s: status %d: %s", path, resp.StatusCode, raw)
		return nil, fmt.Errorf("%w: %s returned %d", ErrGateway, path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if !env.Status || len(env.Data) == 0 || string(env.Data) == "null" {
		msg := env.Msg
		if msg == "" {
			msg = "request rejected"
		}
		return nil, fmt.Errorf("%w: %s", ErrGateway, msg)
	}
	return &env, nil
}
