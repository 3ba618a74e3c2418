package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/llm"
	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/paylink"
	"github.com/anthonydavila469-creator/billdock/internal/preprocess"
	"github.com/anthonydavila469-creator/billdock/internal/service"
	"github.com/anthonydavila469-creator/billdock/internal/validate"
)

// processEmail runs the full pipeline for a single email. It is pure with
// respect to engine state; everything it needs arrives as arguments and
// everything it produces leaves in the result.
func (e *Engine) processEmail(ctx context.Context, userID string, email model.RawEmail, existingBills []model.Bill) itemResult {
	res := itemResult{emailID: email.ID}

	known, skip, reason := e.extractor.Prefilter(email)
	if skip {
		res.skipped = true
		res.skipReason = reason
		return res
	}
	if !known && !e.cfg.PassUnknownSenders {
		res.skipped = true
		res.skipReason = "unknown sender"
		return res
	}

	pre := preprocess.Preprocess(email, e.cfg.Preprocess)

	candidates := e.extractor.Extract(email, pre.Text)
	if candidates.ShouldSkip {
		res.skipped = true
		res.skipReason = candidates.SkipReason
		return res
	}

	linkCandidates := paylink.Extract(pre.TruncatedHTML, e.cfg.Links)

	classification, err := e.classifier.ClassifyBill(ctx, llm.ClassifyInput{
		EmailID:          email.ID,
		FromName:         email.FromName(),
		FromEmail:        email.FromEmail(),
		Subject:          email.Subject,
		ReceivedDate:     email.Date,
		BodyText:         pre.Text,
		AmountCandidates: candidates.Amounts,
		DateCandidates:   candidates.Dates,
		NameCandidates:   candidates.Names,
	})
	if err != nil {
		res.err = err
		return res
	}

	verdict := e.validator.Validate(classification, candidates, email.Subject, existingBills)

	extraction := e.buildExtraction(userID, email, classification, candidates, verdict)

	if classification.Decision != model.DecisionNotBill {
		extraction.PaymentURL = e.resolvePaymentLink(ctx, email, classification, linkCandidates, extraction.VendorName)
	}

	if err := extraction.Validate(); err != nil {
		res.err = err
		return res
	}

	res.extraction = extraction
	return res
}

// buildExtraction merges the AI result with the deterministic candidates.
// The model's value wins when present; a missing field falls back to the
// best-scored candidate rather than being dropped.
func (e *Engine) buildExtraction(userID string, email model.RawEmail, ai service.BillClassification, candidates model.CandidateSet, verdict validate.Result) *model.BillExtraction {
	extraction := &model.BillExtraction{
		ID:         uuid.New().String(),
		EmailID:    email.ID,
		UserID:     userID,
		CreatedAt:  time.Now(),
		Decision:   ai.Decision,
		Route:      verdict.Route,
		Status:     statusForRoute(verdict.Route),
		Confidence: verdict.FinalConfidence,
		Duplicate:  verdict.IsDuplicate,
		Reason:     ai.Reason,
		Evidence:   ai.Evidence,
		Currency:   ai.Currency,
		Recurring:  ai.Recurring,
	}

	if extraction.Currency == "" {
		extraction.Currency = "USD"
	}

	extraction.VendorName = ai.VendorName
	extraction.Category = ai.Category
	if extraction.VendorName == "" {
		if name := candidates.BestName(); name != nil {
			extraction.VendorName = name.Name
			if extraction.Category == "" {
				extraction.Category = name.Category
			}
		}
	}
	extraction.VendorKey = ai.VendorKey
	if extraction.VendorKey == "" {
		extraction.VendorKey = model.VendorKeyFromName(extraction.VendorName)
	}

	if ai.AmountDue != "" {
		if amount, err := decimal.NewFromString(ai.AmountDue); err == nil {
			extraction.AmountDue = &amount
		}
	}
	if extraction.AmountDue == nil {
		if best := candidates.BestAmount(); best != nil {
			amount := best.Value
			extraction.AmountDue = &amount
		}
	}

	extraction.DueDate = ai.DueDate
	if extraction.DueDate == "" {
		if best := candidates.BestDate(); best != nil {
			extraction.DueDate = best.Normalized
		}
	}

	extraction.AccountHint = ai.AccountHint
	if extraction.AccountHint == "" {
		if last4 := validate.ExtractAccountLast4(email.Subject); last4 != "" {
			extraction.AccountHint = last4
		}
	}

	extraction.Evidence.BillSignals = append(extraction.Evidence.BillSignals, candidates.Evidence...)

	return extraction
}

// resolvePaymentLink picks and security-checks the payment URL. A failed
// check nulls the link only; the extraction itself stands.
func (e *Engine) resolvePaymentLink(ctx context.Context, email model.RawEmail, ai service.BillClassification, linkCandidates []model.PaymentLinkCandidate, vendorName string) string {
	chosen := ai.PaymentLink

	if len(linkCandidates) > 0 {
		selection, err := e.classifier.SelectPaymentLink(ctx, llm.SelectLinkInput{
			VendorName: vendorName,
			Candidates: linkCandidates,
		})
		if err != nil {
			e.logger.Warn("payment link selection failed, falling back to top candidate",
				"email_id", email.ID,
				"error", err)
			chosen = linkCandidates[0].URL
		} else if selection.URL != "" {
			chosen = selection.URL
		}
	}

	if chosen == "" {
		return ""
	}

	var allowedDomains []string
	vendorKey := model.VendorKeyFromName(vendorName)
	if vendorKey != "" {
		rule, err := e.storage.GetVendorRule(ctx, vendorKey)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			e.logger.Warn("vendor rule lookup failed",
				"vendor_key", vendorKey,
				"error", err)
		}
		if rule != nil {
			allowedDomains = rule.AllowedDomains
		}
	}

	validation := e.linkValidator.Validate(chosen, email.FromDomain(), vendorName, allowedDomains)
	if !validation.IsValid {
		e.logger.Warn("payment link failed validation, dropping it",
			"email_id", email.ID,
			"url", chosen,
			"errors", validation.Errors)
		return ""
	}
	for _, warning := range validation.Warnings {
		e.logger.Debug("payment link warning",
			"email_id", email.ID,
			"url", chosen,
			"warning", warning)
	}

	return chosen
}

func statusForRoute(route model.Route) model.ExtractionStatus {
	switch route {
	case model.RouteAutoAccept:
		return model.StatusAutoAccepted
	case model.RouteNeedsReview:
		return model.StatusNeedsReview
	case model.RouteReject:
		return model.StatusRejected
	default:
		return model.StatusPending
	}
}
