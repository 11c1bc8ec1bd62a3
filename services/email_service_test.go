package services

import (
	"errors"
	"gopkg.in/gomail.v2"
	"microfinance/config"
	"microfinance/loanmath"
	"microfinance/models"
	"mime"
	"strings"
	"testing"
	"time"
)

type capturedMail struct {
	to      string
	subject string
}

func newTestEmailService(enabled bool, sendErr error) (*EmailService, *[]capturedMail) {
	cfg := &config.Config{}
	cfg.SMTP.Host = "localhost"
	cfg.SMTP.Port = 2525
	cfg.SMTP.From = "no-reply@mfi.test"
	cfg.SMTP.Enabled = enabled

	sent := &[]capturedMail{}
	s := NewEmailService(cfg)
	s.send = func(m *gomail.Message) error {
		// gomail кодирует не-ASCII заголовки по RFC 2047
		subject, err := new(mime.WordDecoder).DecodeHeader(strings.Join(m.GetHeader("Subject"), ""))
		if err != nil {
			return err
		}
		*sent = append(*sent, capturedMail{
			to:      strings.Join(m.GetHeader("To"), ","),
			subject: subject,
		})
		return sendErr
	}
	return s, sent
}

func TestEmailDisabled(t *testing.T) {
	s, sent := newTestEmailService(false, nil)

	if err := s.SendEmail("amina@example.com", "hello", "<p>hi</p>"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if len(*sent) != 0 {
		t.Fatalf("disabled SMTP sent %d messages", len(*sent))
	}
}

func TestEmailNotices(t *testing.T) {
	s, sent := newTestEmailService(true, nil)
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	app := &models.LoanApplication{Amount: 100_000, TermMonths: 3, Status: models.ApplicationStatusRejected, RejectionReason: "no income"}
	loan := &models.Loan{Principal: 100_000, DisbursedAt: &now, Status: models.LoanStatusClosed}
	repayment := &models.Repayment{ReceiptNumber: "R-1", Amount: 100_000, PaidAt: now}

	if err := s.SendApplicationDecision("a@example.com", app); err != nil {
		t.Fatalf("decision: %v", err)
	}
	app.Status = models.ApplicationStatusApproved
	if err := s.SendApplicationDecision("a@example.com", app); err != nil {
		t.Fatalf("decision: %v", err)
	}
	if err := s.SendDisbursementNotice("a@example.com", loan); err != nil {
		t.Fatalf("disbursement: %v", err)
	}
	if err := s.SendRepaymentReceipt("a@example.com", repayment, loan); err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if err := s.SendOverdueNotice("a@example.com", loan, loanmath.LoanState{DaysOverdue: 5}); err != nil {
		t.Fatalf("overdue: %v", err)
	}

	want := []string{
		"Решение по заявке на кредит",
		"Ваша заявка на кредит одобрена",
		"Уведомление о выдаче кредита",
		"Квитанция о платеже по кредиту",
		"Просрочка платежа по кредиту",
	}
	if len(*sent) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(*sent), len(want))
	}
	for i, m := range *sent {
		if m.subject != want[i] || m.to != "a@example.com" {
			t.Errorf("message %d: %+v", i, m)
		}
	}
}

func TestEmailSendError(t *testing.T) {
	s, _ := newTestEmailService(true, errors.New("connection refused"))

	err := s.SendEmail("a@example.com", "subject", "body")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNotifySkipsEmptyAddress(t *testing.T) {
	called := false
	notify("", "test", func() error {
		called = true
		return nil
	})
	if called {
		t.Fatal("notification sent without address")
	}

	notify("a@example.com", "test", func() error {
		called = true
		return errors.New("smtp down")
	})
	if !called {
		t.Fatal("notification not sent")
	}
}
