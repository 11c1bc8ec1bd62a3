package models

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to LoanStatus }{
		{LoanStatusPending, LoanStatusApproved},
		{LoanStatusApproved, LoanStatusActive},
		{LoanStatusActive, LoanStatusOverdue},
		{LoanStatusActive, LoanStatusClosed},
		{LoanStatusOverdue, LoanStatusActive},
		{LoanStatusOverdue, LoanStatusDefaulted},
		{LoanStatusRestructured, LoanStatusOverdue},
		{LoanStatusDefaulted, LoanStatusRestructured},
		{LoanStatusDefaulted, LoanStatusWrittenOff},
		{LoanStatusClosed, LoanStatusActive},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s must be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to LoanStatus }{
		{LoanStatusPending, LoanStatusActive},
		{LoanStatusApproved, LoanStatusClosed},
		{LoanStatusActive, LoanStatusPending},
		{LoanStatusDefaulted, LoanStatusActive},
		{LoanStatusClosed, LoanStatusWrittenOff},
		{LoanStatusWrittenOff, LoanStatusActive},
		{LoanStatusActive, LoanStatusActive},
		{LoanStatus("UNKNOWN"), LoanStatusActive},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s must be denied", tc.from, tc.to)
		}
	}
}

func TestLoanStatusHelpers(t *testing.T) {
	if LoanStatus("FOO").IsValid() {
		t.Error("unknown status reported as valid")
	}
	if !LoanStatusWrittenOff.IsValid() {
		t.Error("WRITTEN_OFF must be valid")
	}

	for _, s := range []LoanStatus{LoanStatusActive, LoanStatusOverdue, LoanStatusRestructured, LoanStatusDefaulted} {
		if !s.AcceptsRepayments() {
			t.Errorf("%s must accept repayments", s)
		}
	}
	for _, s := range []LoanStatus{LoanStatusPending, LoanStatusApproved, LoanStatusClosed, LoanStatusWrittenOff} {
		if s.AcceptsRepayments() {
			t.Errorf("%s must not accept repayments", s)
		}
	}
}

func TestLoanDueDate(t *testing.T) {
	next := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	maturity := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	if got := (Loan{NextPaymentDate: &next, MaturityDate: &maturity}).DueDate(); !got.Equal(next) {
		t.Errorf("expected next payment date, got %v", got)
	}
	if got := (Loan{MaturityDate: &maturity}).DueDate(); !got.Equal(maturity) {
		t.Errorf("expected maturity date, got %v", got)
	}
	if got := (Loan{}).DueDate(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
