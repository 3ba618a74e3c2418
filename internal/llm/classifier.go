package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// Classifier implements the engine's AI boundary using LLM APIs.
type Classifier struct {
	client      Client
	cache       *resultCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// ClassifyInput carries the preprocessed email plus the deterministic
// candidates. The model only ever sees what it needs to decide; headers and
// HTML never reach the prompt.
type ClassifyInput struct {
	ReceivedDate     time.Time
	EmailID          string
	FromName         string
	FromEmail        string
	Subject          string
	BodyText         string
	AmountCandidates []model.AmountCandidate
	DateCandidates   []model.DateCandidate
	NameCandidates   []model.NameCandidate
}

// SelectLinkInput carries the payment-link candidates for the secondary
// selection call.
type SelectLinkInput struct {
	VendorName string
	Candidates []model.PaymentLinkCandidate
}

// NewClassifier creates a new LLM-backed classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wires a classifier around an existing client.
// Tests use it to inject scripted clients.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 2
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		client:      client,
		cache:       newResultCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// ClassifyBill sends one email to the model and returns the normalized
// classification. A malformed response is retried once; persistent garbage
// surfaces as common.ErrClassificationFailed.
func (c *Classifier) ClassifyBill(ctx context.Context, input ClassifyInput) (service.BillClassification, error) {
	if result, found := c.cache.get(input.EmailID); found {
		c.logger.Debug("cache hit for email",
			"email_id", input.EmailID,
			"from", input.FromEmail)
		return result, nil
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return service.BillClassification{}, err
	}

	userPrompt := buildClassifyPrompt(input)

	var result service.BillClassification
	err := common.WithRetry(ctx, func() error {
		content, err := c.client.Complete(ctx, classifySystemPrompt, userPrompt)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}

		parsed, err := parseBillResponse(content)
		if err != nil {
			// One more attempt is worth it; models occasionally emit
			// a stray preamble.
			return &common.RetryableError{Err: err, Retryable: true}
		}

		result = parsed
		return nil
	}, c.retryOpts)
	if err != nil {
		return service.BillClassification{}, fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}

	c.cache.set(input.EmailID, result)

	c.logger.Info("email classified",
		"email_id", input.EmailID,
		"decision", result.Decision,
		"vendor", result.VendorName,
		"confidence", result.Confidence)

	return result, nil
}

// SelectPaymentLink asks the model to pick the best candidate URL. Callers
// must not invoke it with an empty candidate list.
func (c *Classifier) SelectPaymentLink(ctx context.Context, input SelectLinkInput) (service.LinkSelection, error) {
	if len(input.Candidates) == 0 {
		return service.LinkSelection{}, fmt.Errorf("no payment link candidates to select from")
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return service.LinkSelection{}, err
	}

	userPrompt := buildSelectLinkPrompt(input)

	var result service.LinkSelection
	err := common.WithRetry(ctx, func() error {
		content, err := c.client.Complete(ctx, selectLinkSystemPrompt, userPrompt)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}

		parsed, err := parseLinkResponse(content)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}

		result = parsed
		return nil
	}, c.retryOpts)
	if err != nil {
		return service.LinkSelection{}, fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}

	// The model must choose from the offered list, never invent a URL.
	if result.URL != "" && !candidateURL(input.Candidates, result.URL) {
		c.logger.Warn("model selected a URL outside the candidate list, discarding",
			"url", result.URL)
		result = service.LinkSelection{Rationale: "selection outside candidate list"}
	}

	return result, nil
}

// Close releases the background goroutines.
func (c *Classifier) Close() {
	c.cache.Close()
	c.rateLimiter.Close()
}

func candidateURL(candidates []model.PaymentLinkCandidate, url string) bool {
	for _, cand := range candidates {
		if strings.EqualFold(cand.URL, url) {
			return true
		}
	}
	return false
}

const classifySystemPrompt = `You are a bill detection assistant for a personal finance app. You receive one email at a time and decide whether it asks the recipient to pay money.

Classify the email as exactly one of:
- BILL: a statement, invoice, or payment request with an amount the recipient still owes.
- NOT_BILL: receipts, payment confirmations, promotions, newsletters, account notices, and anything already paid.
- UNCERTAIN: a plausible bill where the amount, vendor, or due date cannot be determined from the email.

Rules:
- A statement that shows both a new balance and a minimum payment is a BILL for the new balance, not the minimum.
- "Thank you for your payment", "payment received", and autopay confirmations are NOT_BILL even when they mention an amount.
- Never invent an amount or due date. If the email does not state one, leave the field null.
- Prefer the extracted candidates listed in the message when they match the email text.
- paymentStatus is DUE, PAID, or SCHEDULED when determinable, otherwise null.

Respond with a single JSON object and nothing else:
{
  "decision": "BILL" | "NOT_BILL" | "UNCERTAIN",
  "confidence": 0.0-1.0,
  "vendorName": "human-readable vendor" | null,
  "vendorKey": "lowercase-vendor-slug" | null,
  "billType": "credit_card" | "utility" | "telecom" | "insurance" | "loan" | "subscription" | "medical" | "rent" | "tax" | "other" | null,
  "amountDue": number | null,
  "dueDate": "YYYY-MM-DD" | null,
  "currency": "USD" | other ISO code | null,
  "accountHint": "last digits or account label from the email" | null,
  "paymentStatus": "DUE" | "PAID" | "SCHEDULED" | null,
  "recurring": true | false,
  "reason": "one sentence explaining the decision",
  "evidence": {"billSignals": ["short quotes"], "notBillSignals": ["short quotes"]}
}`

const selectLinkSystemPrompt = `You choose the single best "pay this bill" link from a pre-screened candidate list. Pick the URL most likely to land the user on the vendor's payment page. Prefer explicit payment links over generic login pages. You must pick one of the listed URLs exactly as written, or null if none is a payment link.

Respond with a single JSON object and nothing else:
{"url": "chosen URL" | null, "rationale": "one short sentence"}`

func buildClassifyPrompt(input ClassifyInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s <%s>\n", input.FromName, input.FromEmail)
	fmt.Fprintf(&b, "Subject: %s\n", input.Subject)
	fmt.Fprintf(&b, "Received: %s\n\n", input.ReceivedDate.Format("2006-01-02"))

	if len(input.AmountCandidates) > 0 {
		b.WriteString("Extracted amount candidates (best first):\n")
		for _, a := range input.AmountCandidates {
			fmt.Fprintf(&b, "- %s (context: %q)\n", a.Raw, a.Context)
		}
		b.WriteString("\n")
	}

	if len(input.DateCandidates) > 0 {
		b.WriteString("Extracted due date candidates (best first):\n")
		for _, d := range input.DateCandidates {
			fmt.Fprintf(&b, "- %s (context: %q)\n", d.Normalized, d.Context)
		}
		b.WriteString("\n")
	}

	if len(input.NameCandidates) > 0 {
		b.WriteString("Extracted vendor candidates (best first):\n")
		for _, n := range input.NameCandidates {
			fmt.Fprintf(&b, "- %s (source: %s)\n", n.Name, n.Source)
		}
		b.WriteString("\n")
	}

	b.WriteString("Email body:\n")
	b.WriteString(input.BodyText)

	return b.String()
}

func buildSelectLinkPrompt(input SelectLinkInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Vendor: %s\n\nCandidate links (best scored first):\n", input.VendorName)
	for i, cand := range input.Candidates {
		fmt.Fprintf(&b, "%d. %s\n   anchor: %q\n   context: %q\n", i+1, cand.URL, cand.AnchorText, cand.Context)
	}

	return b.String()
}
