package engine

import (
	"context"
	"sync"

	"github.com/anthonydavila469-creator/billdock/internal/llm"
	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// MockClassifier is a test implementation of the Classifier interface. It
// returns scripted classifications keyed by email id and records every call.
type MockClassifier struct {
	responses  map[string]service.BillClassification
	errs       map[string]error
	selections map[string]service.LinkSelection
	Default    service.BillClassification
	calls      []llm.ClassifyInput
	linkCalls  []llm.SelectLinkInput
	mu         sync.Mutex
}

// NewMockClassifier creates an empty mock classifier.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		responses:  make(map[string]service.BillClassification),
		errs:       make(map[string]error),
		selections: make(map[string]service.LinkSelection),
	}
}

// Script registers the classification returned for an email id.
func (m *MockClassifier) Script(emailID string, result service.BillClassification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[emailID] = result
}

// ScriptError registers a failure for an email id.
func (m *MockClassifier) ScriptError(emailID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[emailID] = err
}

// ScriptSelection registers the link selection for a vendor name.
func (m *MockClassifier) ScriptSelection(vendorName string, sel service.LinkSelection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selections[vendorName] = sel
}

// ClassifyBill returns the scripted result for the input's email id.
func (m *MockClassifier) ClassifyBill(_ context.Context, input llm.ClassifyInput) (service.BillClassification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, input)

	if err, ok := m.errs[input.EmailID]; ok {
		return service.BillClassification{}, err
	}
	if result, ok := m.responses[input.EmailID]; ok {
		return result, nil
	}
	return m.Default, nil
}

// SelectPaymentLink returns the scripted selection for the vendor, or the
// top candidate when nothing is scripted.
func (m *MockClassifier) SelectPaymentLink(_ context.Context, input llm.SelectLinkInput) (service.LinkSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.linkCalls = append(m.linkCalls, input)

	if sel, ok := m.selections[input.VendorName]; ok {
		return sel, nil
	}
	if len(input.Candidates) > 0 {
		return service.LinkSelection{URL: input.Candidates[0].URL}, nil
	}
	return service.LinkSelection{}, nil
}

// Calls returns a copy of the recorded classification inputs.
func (m *MockClassifier) Calls() []llm.ClassifyInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.ClassifyInput, len(m.calls))
	copy(out, m.calls)
	return out
}

// LinkCalls returns a copy of the recorded selection inputs.
func (m *MockClassifier) LinkCalls() []llm.SelectLinkInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.SelectLinkInput, len(m.linkCalls))
	copy(out, m.linkCalls)
	return out
}
