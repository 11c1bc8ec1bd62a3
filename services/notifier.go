package services

import (
	"microfinance/loanmath"
	"microfinance/models"
	"microfinance/utils"
)

// Notifier отправляет заемщикам уведомления по кредитам
type Notifier interface {
	SendApplicationDecision(to string, app *models.LoanApplication) error
	SendDisbursementNotice(to string, loan *models.Loan) error
	SendRepaymentReceipt(to string, repayment *models.Repayment, loan *models.Loan) error
	SendOverdueNotice(to string, loan *models.Loan, state loanmath.LoanState) error
}

// EventPublisher рассылает события сотрудникам в реальном времени
type EventPublisher interface {
	Publish(eventType string, data interface{})
	SendToUser(userID uint, eventType string, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) SendApplicationDecision(string, *models.LoanApplication) error {
	return nil
}

func (nopNotifier) SendDisbursementNotice(string, *models.Loan) error {
	return nil
}

func (nopNotifier) SendRepaymentReceipt(string, *models.Repayment, *models.Loan) error {
	return nil
}

func (nopNotifier) SendOverdueNotice(string, *models.Loan, loanmath.LoanState) error {
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

func (nopPublisher) SendToUser(uint, string, interface{}) {}

// notify отправляет уведомление, если у заемщика есть email.
// Ошибка отправки только логируется: бизнес-операция уже выполнена.
func notify(to, kind string, send func() error) {
	if to == "" {
		utils.LogDebug("Уведомление %s пропущено: у заемщика нет email", kind)
		return
	}
	if err := send(); err != nil {
		utils.GetMetrics().RecordNotificationFailure()
		utils.LogError("Ошибка отправки уведомления %s на %s: %v", kind, to, err)
	}
}

func orNotifier(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func orPublisher(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
