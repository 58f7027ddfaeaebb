package insights

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	genlang "google.golang.org/api/generativelanguage/v1beta"
	goption "google.golang.org/api/option"

	"soldi/internal/core"
	"soldi/internal/log"
)

// Generator produces the short narrative insights for a monthly report.
type Generator interface {
	MonthlyInsights(ctx context.Context, summary MonthSummary) []string
}

// ReceiptScanner extracts transaction fields from a receipt image.
type ReceiptScanner interface {
	ScanReceipt(ctx context.Context, image []byte, mimeType string) (ReceiptData, error)
}

// MonthSummary is the aggregate a report feeds to the model.
type MonthSummary struct {
	Month             string
	TotalIncomeCents  int64
	TotalExpenseCents int64
	ByCategoryCents   map[string]int64
}

// ReceiptData is what a scanned receipt yields. Zero value means the
// image did not look like a receipt.
type ReceiptData struct {
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	MerchantName string          `json:"merchantName"`
}

// fallbackInsights is served whenever the model is unavailable or its
// output cannot be parsed. A report must never fail on insights.
var fallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

// FallbackInsights returns the static insights used when generation is
// unavailable.
func FallbackInsights() []string {
	out := make([]string, len(fallbackInsights))
	copy(out, fallbackInsights)
	return out
}

// Client talks to the Generative Language API.
type Client struct {
	svc    *genlang.Service
	model  string
	logger *log.Logger
}

var (
	_ Generator      = (*Client)(nil)
	_ ReceiptScanner = (*Client)(nil)
)

// NewClient builds a client authenticated by API key. An empty key
// returns nil; callers treat a nil client as "insights disabled" and
// use the fallback text.
func NewClient(ctx context.Context, apiKey, model string, logger *log.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = "models/gemini-1.5-flash"
	}

	svc, err := genlang.NewService(ctx, goption.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generative language service: %w", err)
	}
	return &Client{svc: svc, model: model, logger: logger}, nil
}

// MonthlyInsights asks the model for three short observations about the
// month. Any failure degrades to the static fallback.
func (c *Client) MonthlyInsights(ctx context.Context, summary MonthSummary) []string {
	if c == nil {
		return FallbackInsights()
	}

	text, err := c.generate(ctx, &genlang.GenerateContentRequest{
		Contents: []*genlang.Content{{
			Parts: []*genlang.Part{{Text: insightsPrompt(summary)}},
		}},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "insight generation failed, using fallback", log.FieldError, err)
		return FallbackInsights()
	}

	parsed, err := parseInsights(text)
	if err != nil {
		c.logger.WarnContext(ctx, "insight response unparseable, using fallback", log.FieldError, err)
		return FallbackInsights()
	}
	return parsed
}

// ScanReceipt sends the image inline and parses the extracted fields.
// Unlike insights there is no fallback; the caller surfaces the error.
func (c *Client) ScanReceipt(ctx context.Context, image []byte, mimeType string) (ReceiptData, error) {
	if c == nil {
		return ReceiptData{}, core.ErrInsightsDisabled
	}

	text, err := c.generate(ctx, &genlang.GenerateContentRequest{
		Contents: []*genlang.Content{{
			Parts: []*genlang.Part{
				{InlineData: &genlang.Blob{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: receiptPrompt},
			},
		}},
	})
	if err != nil {
		return ReceiptData{}, fmt.Errorf("scan receipt: %w", err)
	}
	return parseReceipt(text)
}

func (c *Client) generate(ctx context.Context, req *genlang.GenerateContentRequest) (string, error) {
	resp, err := c.svc.Models.GenerateContent(c.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func insightsPrompt(s MonthSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this financial data and provide 3 concise, actionable insights.\n")
	fmt.Fprintf(&b, "Focus on spending patterns and practical advice.\n")
	fmt.Fprintf(&b, "Keep it friendly and conversational.\n\n")
	fmt.Fprintf(&b, "Financial data for %s:\n", s.Month)
	fmt.Fprintf(&b, "- Total income: %s\n", core.FromCents(s.TotalIncomeCents))
	fmt.Fprintf(&b, "- Total expenses: %s\n", core.FromCents(s.TotalExpenseCents))
	fmt.Fprintf(&b, "- Net: %s\n", core.FromCents(s.TotalIncomeCents-s.TotalExpenseCents))

	if len(s.ByCategoryCents) > 0 {
		categories := make([]string, 0, len(s.ByCategoryCents))
		for cat := range s.ByCategoryCents {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
		b.WriteString("- Expense categories: ")
		for i, cat := range categories {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", cat, core.FromCents(s.ByCategoryCents[cat]))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nFormat the response as a JSON array of exactly 3 strings.\n")
	b.WriteString(`Example: ["insight 1", "insight 2", "insight 3"]`)
	return b.String()
}

const receiptPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: housing, transportation, groceries, utilities, entertainment, food, shopping, healthcare, education, personal, travel, insurance, gifts, bills, other-expense)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "date": "ISO date string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}

If it's not a receipt, return an empty object.`

// parseInsights expects a JSON array of strings, possibly wrapped in a
// markdown code fence.
func parseInsights(text string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &out); err != nil {
		return nil, fmt.Errorf("parse insights: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse insights: empty array")
	}
	return out, nil
}

func parseReceipt(text string) (ReceiptData, error) {
	var raw struct {
		Amount       json.Number `json:"amount"`
		Date         string      `json:"date"`
		Description  string      `json:"description"`
		Category     string      `json:"category"`
		MerchantName string      `json:"merchantName"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return ReceiptData{}, fmt.Errorf("parse receipt: %w", err)
	}
	if raw.Amount == "" {
		// Empty object: the image was not a receipt.
		return ReceiptData{}, core.ErrNotAReceipt
	}

	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return ReceiptData{}, fmt.Errorf("parse receipt amount %q: %w", raw.Amount, err)
	}

	data := ReceiptData{
		Amount:       amount,
		Description:  raw.Description,
		Category:     raw.Category,
		MerchantName: raw.MerchantName,
	}
	if raw.Date != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw.Date); err == nil {
				data.Date = t
				break
			}
		}
	}
	return data, nil
}

// stripCodeFence removes a surrounding markdown code fence, with or
// without a language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
