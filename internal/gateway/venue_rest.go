package gateway

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// Credentials authenticates the venue REST session.
type Credentials struct {
	AccessID  string
	SecretKey string
}

// RestClient implements VenueClient against a JSON-over-HTTP order API.
type RestClient struct {
	baseURL  string
	creds    Credentials
	client   *http.Client
	registry *schema.Registry
}

// NewRestClient builds a REST venue client.
func NewRestClient(baseURL string, creds Credentials, client *http.Client, registry *schema.Registry) (*RestClient, error) {
	if baseURL == "" {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "venue base url is empty")
	}
	if creds.AccessID == "" || creds.SecretKey == "" {
		return nil, errors.Wrap(exception.ErrAuthFailed, "venue credentials missing")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RestClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		creds:    creds,
		client:   client,
		registry: registry,
	}, nil
}

type restOrderResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		OrderID      uint64          `json:"order_id"`
		VenueOrderID uint64          `json:"venue_order_id"`
		Status       string          `json:"status"`
		Left         decimal.Decimal `json:"left"`
		Deals        []restDeal      `json:"deals"`
	} `json:"data"`
}

type restDeal struct {
	Seq    uint32          `json:"seq"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Time   int64           `json:"time"`
}

// Submit places the order and maps the synchronous response to an ack.
func (c *RestClient) Submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	inst, ok := c.registry.Instrument(schema.SymbolID(intent.SymbolID))
	if !ok {
		return schema.OrderAck{}, exception.ErrFeedUnknownInstrument
	}
	body := map[string]string{
		"access_id": c.creds.AccessID,
		"market":    inst.VenueSymbol,
		"side":      restSide(intent.Side),
		"type":      restType(intent.Type),
		"option":    restTimeInForce(intent.TimeInForce),
		"price":     schema.FormatScaled(int64(intent.Price), inst.Scale.PriceScale),
		"amount":    schema.FormatScaled(int64(intent.Qty), inst.Scale.QuantityScale),
		"client_id": strconv.FormatUint(intent.OrderID, 10),
	}
	resp, err := c.post(ctx, "/api/order/submit", body)
	if err != nil {
		return schema.OrderAck{}, err
	}
	ack := schema.OrderAck{
		OrderID:      intent.OrderID,
		SymbolID:     intent.SymbolID,
		VenueOrderID: resp.Data.VenueOrderID,
		Price:        intent.Price,
		Qty:          intent.Qty,
		LeavesQty:    intent.Qty,
	}
	switch resp.Code {
	case 0:
		ack.Status = schema.OrderAckStatusAcked
	default:
		ack.Status = schema.OrderAckStatusRejected
		ack.Reason = schema.OrderAckReasonVenueReject
		ack.LeavesQty = 0
	}
	return ack, nil
}

// Cancel requests cancellation. The confirmation arrives asynchronously
// on the execution stream, never from this response.
func (c *RestClient) Cancel(ctx context.Context, order Order) error {
	inst, ok := c.registry.Instrument(schema.SymbolID(order.SymbolID))
	if !ok {
		return exception.ErrFeedUnknownInstrument
	}
	body := map[string]string{
		"access_id": c.creds.AccessID,
		"market":    inst.VenueSymbol,
		"client_id": strconv.FormatUint(order.ID, 10),
	}
	if order.VenueOrderID != 0 {
		body["order_id"] = strconv.FormatUint(order.VenueOrderID, 10)
	}
	resp, err := c.post(ctx, "/api/order/cancel", body)
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return errors.Wrap(exception.ErrGatewayVenueReject, "cancel").
			With("orderID", order.ID).
			With("code", resp.Code).
			With("message", resp.Message)
	}
	return nil
}

// Kline is one venue candle. Decimal fields keep the venue's printed
// form so storage stays scale-agnostic.
type Kline struct {
	OpenTime int64
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string
}

type restKlineResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		Time   int64           `json:"time"`
		Open   decimal.Decimal `json:"open"`
		High   decimal.Decimal `json:"high"`
		Low    decimal.Decimal `json:"low"`
		Close  decimal.Decimal `json:"close"`
		Volume decimal.Decimal `json:"volume"`
	} `json:"data"`
}

// Klines fetches up to limit recent candles for a market, oldest
// first. The endpoint is public, no signature.
func (c *RestClient) Klines(ctx context.Context, venueSymbol string, limit int) ([]Kline, error) {
	target := c.baseURL + "/api/market/kline?market=" + url.QueryEscape(venueSymbol) +
		"&limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("venue kline status %d: %s", res.StatusCode, raw)
	}
	var parsed restKlineResponse
	if err := sonic.ConfigFastest.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "decode venue klines")
	}
	if parsed.Code != 0 {
		return nil, errors.Errorf("venue kline code %d: %s", parsed.Code, parsed.Message)
	}

	out := make([]Kline, 0, len(parsed.Data))
	for _, k := range parsed.Data {
		out = append(out, Kline{
			OpenTime: k.Time,
			Open:     k.Open.String(),
			High:     k.High.String(),
			Low:      k.Low.String(),
			Close:    k.Close.String(),
			Volume:   k.Volume.String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

// Status queries venue truth for one order, used during reconciliation.
func (c *RestClient) Status(ctx context.Context, order Order) (VenueStatus, error) {
	inst, ok := c.registry.Instrument(schema.SymbolID(order.SymbolID))
	if !ok {
		return VenueStatus{}, exception.ErrFeedUnknownInstrument
	}
	body := map[string]string{
		"access_id": c.creds.AccessID,
		"market":    inst.VenueSymbol,
		"client_id": strconv.FormatUint(order.ID, 10),
	}
	resp, err := c.post(ctx, "/api/order/status", body)
	if err != nil {
		return VenueStatus{}, err
	}
	if resp.Code != 0 {
		// The venue never saw this order: report it rejected so the
		// caller can settle the ambiguity.
		return VenueStatus{OrderID: order.ID, Status: schema.OrderAckStatusRejected}, nil
	}

	status := VenueStatus{
		OrderID:      order.ID,
		VenueOrderID: resp.Data.VenueOrderID,
		Status:       restStatus(resp.Data.Status),
		LeavesQty:    schema.Quantity(parseScaled(resp.Data.Left, inst.Scale.QuantityScale)),
	}
	for _, deal := range resp.Data.Deals {
		status.Fills = append(status.Fills, schema.Fill{
			OrderID:  order.ID,
			SymbolID: order.SymbolID,
			FillSeq:  deal.Seq,
			Side:     order.Side,
			Price:    schema.Price(parseScaled(deal.Price, inst.Scale.PriceScale)),
			Qty:      schema.Quantity(parseScaled(deal.Amount, inst.Scale.QuantityScale)),
			TsEvent:  deal.Time,
		})
	}
	return status, nil
}

func (c *RestClient) post(ctx context.Context, path string, body map[string]string) (restOrderResponse, error) {
	var parsed restOrderResponse

	body["sign"] = signBody(body, c.creds.SecretKey)
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return parsed, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return parsed, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return parsed, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return parsed, err
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return parsed, errors.Wrap(exception.ErrAuthFailed, "venue response").With("status", res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return parsed, errors.Errorf("venue response status %d: %s", res.StatusCode, raw)
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &parsed); err != nil {
		return parsed, errors.Wrap(err, "decode venue response")
	}
	return parsed, nil
}

// signBody produces the request signature: keys sorted, concatenated
// with the secret, md5-hexed. Matches the venue's documented scheme.
func signBody(body map[string]string, secret string) string {
	keys := make([]string, 0, len(body))
	for key := range body {
		if key == "sign" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(body[key])
		sb.WriteByte('&')
	}
	sb.WriteString("secret_key=")
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func restSide(side schema.OrderSide) string {
	if side == schema.OrderSideSell {
		return "2"
	}
	return "1"
}

func restType(orderType schema.OrderType) string {
	if orderType == schema.OrderTypeMarket {
		return "market"
	}
	return "limit"
}

func restTimeInForce(tif schema.TimeInForce) string {
	switch tif {
	case schema.TimeInForceIOC:
		return "8"
	case schema.TimeInForceFOK:
		return "16"
	default:
		return "0"
	}
}

func restStatus(status string) schema.OrderAckStatus {
	switch status {
	case "open", "acked":
		return schema.OrderAckStatusAcked
	case "part_filled":
		return schema.OrderAckStatusPartFilled
	case "filled", "done":
		return schema.OrderAckStatusFilled
	case "canceled", "cancelled":
		return schema.OrderAckStatusCanceled
	case "rejected":
		return schema.OrderAckStatusRejected
	default:
		return schema.OrderAckStatusUnknown
	}
}

// parseScaled converts a venue decimal into a scaled integer,
// truncating toward zero past the instrument's precision. Callers
// cast to the field type, price and quantity scales differ.
func parseScaled(d decimal.Decimal, scale schema.Scale) int64 {
	return schema.ScaledFromString(d.String(), scale)
}
