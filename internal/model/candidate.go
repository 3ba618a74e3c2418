package model

import "github.com/shopspring/decimal"

// AmountCandidate is one possible amount-due value found by the
// deterministic extractor. Candidates live only for the duration of a
// single extraction call.
type AmountCandidate struct {
	Raw        string
	Context    string
	Value      decimal.Decimal
	Score      float64
	Priority   int
	HasDecimal bool
	NearDollar bool
	IsMinimum  bool
}

// DateCandidate is one possible due date, already normalized to YYYY-MM-DD.
type DateCandidate struct {
	Raw        string
	Normalized string
	Context    string
	Score      float64
	Priority   int
}

// NameCandidate is one possible vendor name with its category guess.
type NameCandidate struct {
	Name     string
	Category string
	Source   NameSource
	Score    float64
}

// NameSource records where a name candidate came from, highest trust first.
type NameSource string

const (
	// NameSourceBillerTable means the sender matched the known biller table.
	NameSourceBillerTable NameSource = "biller_table"
	// NameSourceLocalPart means the name was derived from the address local part.
	NameSourceLocalPart NameSource = "local_part"
	// NameSourceDisplayName means the name came from the From display name.
	NameSourceDisplayName NameSource = "display_name"
	// NameSourceSubject means the name fell back to the subject line.
	NameSourceSubject NameSource = "subject"
)

// CandidateSet is everything the deterministic extractor found for one email.
type CandidateSet struct {
	SkipReason string
	Amounts    []AmountCandidate
	Dates      []DateCandidate
	Names      []NameCandidate
	Evidence   []string
	ShouldSkip bool
}

// BestAmount returns the highest-preference amount candidate, or nil.
func (c *CandidateSet) BestAmount() *AmountCandidate {
	if len(c.Amounts) == 0 {
		return nil
	}
	return &c.Amounts[0]
}

// BestDate returns the highest-preference date candidate, or nil.
func (c *CandidateSet) BestDate() *DateCandidate {
	if len(c.Dates) == 0 {
		return nil
	}
	return &c.Dates[0]
}

// BestName returns the highest-trust name candidate, or nil.
func (c *CandidateSet) BestName() *NameCandidate {
	if len(c.Names) == 0 {
		return nil
	}
	return &c.Names[0]
}
