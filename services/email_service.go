package services

import (
	"fmt"
	"gopkg.in/gomail.v2"
	"microfinance/config"
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/utils"
	"time"
)

const emailDateLayout = "02.01.2006"

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer  *gomail.Dialer
	from    string
	enabled bool
	send    func(m *gomail.Message) error
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	s := &EmailService{
		dialer:  dialer,
		from:    cfg.SMTP.From,
		enabled: cfg.SMTP.Enabled,
	}
	s.send = func(m *gomail.Message) error {
		return s.dialer.DialAndSend(m)
	}
	return s
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	if !s.enabled {
		utils.LogDebug("SMTP отключен, письмо %q для %s не отправлено", subject, to)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}

	return nil
}

// SendApplicationDecision сообщает заемщику решение по заявке
func (s *EmailService) SendApplicationDecision(to string, app *models.LoanApplication) error {
	if app.Status == models.ApplicationStatusApproved {
		body := fmt.Sprintf(`
		<h2>Заявка одобрена</h2>
		<p>Заявка №%d на сумму %.2f одобрена.</p>
		<p>Срок: %d мес., ставка %.2f%% в месяц</p>
		<p>Ежемесячный платеж: %.2f</p>
		<p>Итого к возврату: %.2f</p>
	`, app.ID, app.Amount, app.TermMonths, app.InterestRate*100, app.MonthlyPayment, app.TotalAmount)
		return s.SendEmail(to, "Ваша заявка на кредит одобрена", body)
	}

	body := fmt.Sprintf(`
		<h2>Заявка отклонена</h2>
		<p>Заявка №%d на сумму %.2f отклонена.</p>
		<p>Причина: %s</p>
	`, app.ID, app.Amount, app.RejectionReason)
	return s.SendEmail(to, "Решение по заявке на кредит", body)
}

// SendDisbursementNotice уведомляет о выдаче кредита
func (s *EmailService) SendDisbursementNotice(to string, loan *models.Loan) error {
	body := fmt.Sprintf(`
		<h2>Кредит выдан</h2>
		<p>Кредит №%d на сумму %.2f выдан %s.</p>
		<p>Ежемесячный платеж: %.2f</p>
		<p>Первый платеж: %s</p>
		<p>Дата погашения: %s</p>
	`, loan.ID, loan.Principal, formatDate(loan.DisbursedAt), loan.MonthlyPayment,
		formatDate(loan.NextPaymentDate), formatDate(loan.MaturityDate))

	return s.SendEmail(to, "Уведомление о выдаче кредита", body)
}

// SendRepaymentReceipt отправляет квитанцию о платеже
func (s *EmailService) SendRepaymentReceipt(to string, repayment *models.Repayment, loan *models.Loan) error {
	body := fmt.Sprintf(`
		<h2>Квитанция о платеже</h2>
		<p>Квитанция: %s</p>
		<p>Кредит №%d</p>
		<p>Сумма: %.2f</p>
		<p>Способ оплаты: %s</p>
		<p>Остаток долга: %.2f</p>
		<p>Дата: %s</p>
	`, repayment.ReceiptNumber, loan.ID, repayment.Amount, repayment.PaymentMethod,
		repayment.BalanceAfter, repayment.PaidAt.Format("02.01.2006 15:04:05"))

	if loan.Status == models.LoanStatusClosed {
		body += "<p>Кредит полностью погашен. Спасибо!</p>"
	}

	return s.SendEmail(to, "Квитанция о платеже по кредиту", body)
}

// SendOverdueNotice уведомляет о просрочке
func (s *EmailService) SendOverdueNotice(to string, loan *models.Loan, state loanmath.LoanState) error {
	body := fmt.Sprintf(`
		<h2>Просрочка платежа</h2>
		<p>Платеж по кредиту №%d просрочен на %d дн.</p>
		<p>Остаток долга: %.2f</p>
		<p>Проценты за просрочку: %.2f</p>
		<p>Итого к оплате: %.2f</p>
	`, loan.ID, state.DaysOverdue, loan.OutstandingBalance,
		loanmath.Round2(state.OverdueInterest), loanmath.Round2(state.TotalBalance))

	return s.SendEmail(to, "Просрочка платежа по кредиту", body)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(emailDateLayout)
}
