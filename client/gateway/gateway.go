// Package gateway is the sole I/O boundary to the remote shopping
// assistant. It performs no retries and keeps no state: every call is a
// single attempt whose failure is surfaced immediately to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	statex "github.com/partassist/client-go/client/state"
)

var (
	// ErrUnavailable covers transport failures and non-success statuses.
	ErrUnavailable = errors.New("assistant service unavailable")
	// ErrBadPayload covers a success status whose body cannot be decoded.
	ErrBadPayload = errors.New("assistant response is malformed")
)

const maxResponseSizeBytes = 4 << 20

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Option customizes Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client talks to the assistant's HTTP API. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("assistant base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid assistant base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func MustNew(cfg Config, opts ...Option) *Client {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

/* ------------------------------ chat turns ------------------------------ */

// ChatReply is one assistant turn: opaque text plus the structured product
// list the client renders as cards.
type ChatReply struct {
	Content          string
	Products         []statex.Product
	QueryType        string
	Confidence       float64
	SuggestedActions []string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []chatMessage `json:"conversation_history"`
}

type chatResponse struct {
	Message          string        `json:"message"`
	Parts            []partPayload `json:"parts"`
	QueryType        string        `json:"query_type"`
	Confidence       *float64      `json:"confidence"`
	SuggestedActions []string      `json:"suggested_actions"`
}

// SendChatTurn posts one user message together with the prior history and
// returns the assistant's reply.
func (c *Client) SendChatTurn(ctx context.Context, message string, history []statex.Message) (ChatReply, error) {
	req := chatRequest{
		Message:             message,
		ConversationHistory: make([]chatMessage, 0, len(history)),
	}
	for _, m := range history {
		req.ConversationHistory = append(req.ConversationHistory, chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, &resp); err != nil {
		return ChatReply{}, err
	}

	reply := ChatReply{
		Content:          resp.Message,
		Products:         make([]statex.Product, 0, len(resp.Parts)),
		QueryType:        resp.QueryType,
		SuggestedActions: resp.SuggestedActions,
	}
	if resp.Confidence != nil {
		reply.Confidence = *resp.Confidence
	}
	for _, p := range resp.Parts {
		reply.Products = append(reply.Products, p.toProduct())
	}
	return reply, nil
}

/* ---------------------------- cart operations --------------------------- */

type transactionRequest struct {
	Action     string `json:"action"`
	PartNumber string `json:"part_number,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

type transactionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AddCartItem asks the remote cart service to add qty units of a part.
// The caller must treat the local cart as untouched until this confirms.
func (c *Client) AddCartItem(ctx context.Context, partNumber string, qty int) error {
	req := transactionRequest{
		Action:     "add_to_cart",
		PartNumber: partNumber,
		Quantity:   qty,
	}

	var resp transactionResponse
	if err := c.do(ctx, http.MethodPost, "/cart", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: add_to_cart rejected: %s", ErrUnavailable, resp.Message)
	}
	return nil
}

// ClearCart asks the remote cart service to drop every line. Checkout uses
// it as the remote completion step.
func (c *Client) ClearCart(ctx context.Context) error {
	var resp transactionResponse
	if err := c.do(ctx, http.MethodPost, "/cart", transactionRequest{Action: "clear_cart"}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: clear_cart rejected: %s", ErrUnavailable, resp.Message)
	}
	return nil
}

type cartPayload struct {
	Items []struct {
		Part     partPayload `json:"part"`
		Quantity int         `json:"quantity"`
	} `json:"items"`
}

type fetchCartResponse struct {
	Cart cartPayload `json:"cart"`
}

// FetchCart returns the remote cart snapshot. The primary flows never need
// it; it exists for reconciliation and test tooling.
func (c *Client) FetchCart(ctx context.Context) (statex.CartSnapshot, error) {
	var resp fetchCartResponse
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &resp); err != nil {
		return statex.CartSnapshot{}, err
	}

	cart := statex.CartSnapshot{}
	for _, item := range resp.Cart.Items {
		cart.Lines = append(cart.Lines, statex.CartLine{
			Product:  item.Part.toProduct(),
			Quantity: item.Quantity,
		})
	}
	return cart, nil
}

/* ----------------------------- catalog reads ---------------------------- */

// GetPart fetches one catalog entry by part number.
func (c *Client) GetPart(ctx context.Context, partNumber string) (statex.Product, error) {
	if strings.TrimSpace(partNumber) == "" {
		return statex.Product{}, errors.New("part number is required")
	}

	var resp partPayload
	if err := c.do(ctx, http.MethodGet, "/parts/"+url.PathEscape(partNumber), nil, &resp); err != nil {
		return statex.Product{}, err
	}
	return resp.toProduct(), nil
}

type searchResponse struct {
	Results []struct {
		Part partPayload `json:"part"`
	} `json:"results"`
}

// SearchParts runs a free-text catalog search.
func (c *Client) SearchParts(ctx context.Context, query string, limit int) ([]statex.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	path := "/parts/search?q=" + url.QueryEscape(query) + "&limit=" + strconv.Itoa(limit)

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	products := make([]statex.Product, 0, len(resp.Results))
	for _, r := range resp.Results {
		products = append(products, r.Part.toProduct())
	}
	return products, nil
}

/* ------------------------------- plumbing ------------------------------- */

// partPayload mirrors the service's part schema; the client keeps only the
// fields the session renders.
type partPayload struct {
	PartNumber             string         `json:"partselect_number"`
	ManufacturerPartNumber string         `json:"manufacturer_part_number"`
	Name                   string         `json:"name"`
	Brand                  string         `json:"brand"`
	ApplianceType          string         `json:"appliance_type"`
	Price                  float64        `json:"price"`
	InStock                bool           `json:"in_stock"`
	Rating                 float64        `json:"rating"`
	ReviewCount            int            `json:"review_count"`
	Installation           map[string]any `json:"installation"`
	Description            string         `json:"description"`
}

func (p partPayload) toProduct() statex.Product {
	prod := statex.Product{
		PartNumber:             p.PartNumber,
		ManufacturerPartNumber: p.ManufacturerPartNumber,
		Name:                   p.Name,
		Brand:                  p.Brand,
		ApplianceType:          p.ApplianceType,
		Price:                  p.Price,
		InStock:                p.InStock,
		Rating:                 p.Rating,
		ReviewCount:            p.ReviewCount,
		Description:            p.Description,
	}
	if diff, ok := p.Installation["difficulty"].(string); ok {
		prod.InstallDifficulty = diff
	}
	return prod
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: http status=%d body=%s", ErrUnavailable, resp.StatusCode, truncate(raw, 256))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
