// Package validate reconciles the AI classification with the deterministic
// candidates, detects duplicates against the user's existing bills, and
// routes the extraction.
package validate

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/anthonydavila469-creator/billdock/internal/model"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// Config holds the tunable routing knobs. Thresholds are deliberately not
// constants; deployments tune them from configuration.
type Config struct {
	// AutoAcceptThreshold is the minimum blended confidence for the
	// auto_accept route.
	AutoAcceptThreshold float64
	// RejectBelow is the confidence under which everything is rejected.
	RejectBelow float64
	// DupNameDistance is the maximum Levenshtein distance for fuzzy vendor
	// name matching during duplicate detection. Fuzzy matching only applies
	// to names longer than four characters so "Citi" never collides with
	// "City".
	DupNameDistance int
}

// DefaultConfig returns the routing defaults.
func DefaultConfig() Config {
	return Config{
		AutoAcceptThreshold: 0.85,
		RejectBelow:         0.30,
		DupNameDistance:     3,
	}
}

// Result is the validator's verdict for one extraction.
type Result struct {
	Route           model.Route
	Warnings        []string
	Errors          []string
	FinalConfidence float64
	IsDuplicate     bool
}

// Validator blends AI and deterministic signals into a final route.
type Validator struct {
	logger *slog.Logger
	cfg    Config
}

// New creates a validator. A zero-valued config field falls back to the
// default for that field.
func New(cfg Config, logger *slog.Logger) *Validator {
	def := DefaultConfig()
	if cfg.AutoAcceptThreshold <= 0 {
		cfg.AutoAcceptThreshold = def.AutoAcceptThreshold
	}
	if cfg.RejectBelow <= 0 {
		cfg.RejectBelow = def.RejectBelow
	}
	if cfg.DupNameDistance <= 0 {
		cfg.DupNameDistance = def.DupNameDistance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Validate reconciles the classification against the candidates and the
// user's existing bills. Deterministic candidates act as a sanity check on
// the AI result; neither source is trusted exclusively. The subject feeds
// duplicate detection, so account digits the model omitted still count.
func (v *Validator) Validate(ai service.BillClassification, candidates model.CandidateSet, subject string, existing []model.Bill) Result {
	res := Result{FinalConfidence: ai.Confidence}

	if ai.Decision == model.DecisionNotBill {
		res.Route = model.RouteReject
		return res
	}

	v.reconcile(ai, candidates, &res)

	res.FinalConfidence = model.ClampConfidence(res.FinalConfidence)

	if dup := v.findDuplicate(ai, subject, existing); dup != nil {
		res.IsDuplicate = true
		res.Route = model.RouteReject
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("duplicate of existing bill %s (%s)", dup.ID, dup.VendorName))
		v.logger.Info("duplicate extraction rejected",
			"vendor_key", ai.VendorKey,
			"existing_bill", dup.ID)
		return res
	}

	res.Route = v.route(ai, res)
	return res
}

// reconcile compares the AI's fields with the best deterministic candidates
// and adjusts confidence. Agreement on strong signals raises it; mismatch or
// a total absence of signals lowers it.
func (v *Validator) reconcile(ai service.BillClassification, candidates model.CandidateSet, res *Result) {
	best := candidates.BestAmount()
	switch {
	case best == nil && ai.AmountDue == "":
		// No amount anywhere.
	case best != nil && ai.AmountDue != "":
		aiAmount, err := decimal.NewFromString(ai.AmountDue)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("unparsable AI amount %q", ai.AmountDue))
			res.FinalConfidence -= 0.15
		} else if aiAmount.Sub(best.Value).Abs().LessThanOrEqual(decimal.New(1, -2)) {
			res.FinalConfidence += 0.05
		} else {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("amount mismatch: model said %s, extractor found %s", ai.AmountDue, best.Raw))
			res.FinalConfidence -= 0.10
		}
	case best != nil && ai.AmountDue == "":
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("model returned no amount but extractor found %s", best.Raw))
		res.FinalConfidence -= 0.05
	}

	bestDate := candidates.BestDate()
	switch {
	case bestDate != nil && ai.DueDate != "":
		if ai.DueDate == bestDate.Normalized {
			res.FinalConfidence += 0.05
		} else {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("due date mismatch: model said %s, extractor found %s", ai.DueDate, bestDate.Normalized))
			res.FinalConfidence -= 0.10
		}
	case bestDate != nil && ai.DueDate == "":
		res.Warnings = append(res.Warnings, "model returned no due date but extractor found one")
		res.FinalConfidence -= 0.05
	}

	// A claimed bill with neither an amount nor a date from any source is
	// a weak extraction.
	if ai.AmountDue == "" && candidates.BestAmount() == nil &&
		ai.DueDate == "" && candidates.BestDate() == nil {
		res.Warnings = append(res.Warnings, "no amount or due date from any source")
		res.FinalConfidence -= 0.25
	}
}

// route applies the threshold policy. BILL with high confidence and a clean
// result auto-accepts; low confidence rejects; everything else goes to a
// human.
func (v *Validator) route(ai service.BillClassification, res Result) model.Route {
	if res.FinalConfidence < v.cfg.RejectBelow {
		// A BILL verdict is never discarded outright on confidence alone;
		// a human gets to look at it instead.
		if ai.Decision == model.DecisionBill {
			return model.RouteNeedsReview
		}
		return model.RouteReject
	}

	if ai.Decision == model.DecisionBill &&
		res.FinalConfidence >= v.cfg.AutoAcceptThreshold &&
		len(res.Errors) == 0 &&
		len(res.Warnings) == 0 &&
		ai.AmountDue != "" {
		return model.RouteAutoAccept
	}

	return model.RouteNeedsReview
}
