package services

import (
	"errors"
	"microfinance/models"
	"testing"
)

func TestBorrowerCreateAndGet(t *testing.T) {
	f := newFixture(t)

	b := f.borrower(t, "cm90012345abcd", "amina@example.com")
	if b.NationalID != "CM90012345ABCD" {
		t.Errorf("national id must be normalized, got %s", b.NationalID)
	}

	got, err := f.borrowers.GetByID(b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FullName() != "Amina Nakato" {
		t.Errorf("full name: got %s", got.FullName())
	}

	if _, err := f.borrowers.GetByID(404); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBorrowerDuplicateNationalID(t *testing.T) {
	f := newFixture(t)
	f.borrower(t, "CM900123", "")

	_, err := f.borrowers.Create(CreateBorrowerRequest{
		FirstName:  "John",
		LastName:   "Mugisha",
		NationalID: " cm900123 ",
		Phone:      "+256700000002",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestBorrowerValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.borrowers.Create(CreateBorrowerRequest{FirstName: "J", NationalID: "1", Email: "bad", MonthlyIncome: -1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Message == "" {
		t.Error("validation message is empty")
	}
}

func TestBorrowerListSearchAndPaging(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"ID00001", "ID00002", "ID00003"} {
		f.borrower(t, id, "")
	}
	_, err := f.borrowers.Create(CreateBorrowerRequest{
		FirstName:  "John",
		LastName:   "Mugisha",
		NationalID: "ID00004",
		Phone:      "+256711111111",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	page, err := f.borrowers.List(BorrowerFilter{Search: "mugi"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalRows != 1 {
		t.Fatalf("search by name: got %d rows", page.TotalRows)
	}

	page, err = f.borrowers.List(BorrowerFilter{Pagination: Pagination{Page: 2, PageSize: 3}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalRows != 4 || page.TotalPages != 2 || page.CurrentPage != 2 {
		t.Errorf("unexpected page meta %+v", page)
	}
	if rows := page.Data.([]models.Borrower); len(rows) != 1 {
		t.Errorf("second page: got %d rows", len(rows))
	}
}

func TestBorrowerUpdate(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t, "ID00001", "")

	phone := "+256722222222"
	occupation := "Nurse"
	updated, err := f.borrowers.Update(b.ID, UpdateBorrowerRequest{Phone: &phone, Occupation: &occupation})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Phone != phone || updated.Occupation != occupation || updated.FirstName != "Amina" {
		t.Errorf("unexpected borrower %+v", updated)
	}

	bad := "x"
	if _, err := f.borrowers.Update(b.ID, UpdateBorrowerRequest{FirstName: &bad}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestBorrowerDeleteRequiresClosedLoans(t *testing.T) {
	f := newFixture(t)
	b := f.borrower(t, "ID00001", "")
	loan := f.activeLoan(t, b.ID, 300_000, 2)

	if err := f.borrowers.Delete(b.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	loans, err := f.borrowers.ListLoans(b.ID)
	if err != nil || len(loans) != 1 || loans[0].ID != loan.ID {
		t.Fatalf("ListLoans: %v %+v", err, loans)
	}

	if _, err := f.repayments.Record(RecordRepaymentRequest{
		LoanID:        loan.ID,
		Amount:        loan.OutstandingBalance,
		PaymentMethod: models.PaymentMethodCash,
	}, 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := f.borrowers.Delete(b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.borrowers.GetByID(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted borrower still visible: %v", err)
	}
}
