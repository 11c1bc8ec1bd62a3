package controllers

import (
	"microfinance/services"
	"microfinance/utils"
	"net/http"
	"strconv"
)

// ConnectionCounter источник числа realtime-подключений
type ConnectionCounter interface {
	ConnectionCount() int
}

// ReportController отчеты по портфелю и метрики сервиса
type ReportController struct {
	reports *services.ReportService
	conns   ConnectionCounter
}

// NewReportController создает новый экземпляр ReportController. conns может быть nil.
func NewReportController(reports *services.ReportService, conns ConnectionCounter) *ReportController {
	return &ReportController{reports: reports, conns: conns}
}

// Portfolio сводка по портфелю, ?fresh=true пропускает кэш
func (c *ReportController) Portfolio(w http.ResponseWriter, r *http.Request) {
	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))

	report, err := c.reports.Portfolio(r.Context(), fresh)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Metrics снимок метрик процесса (ADMIN)
func (c *ReportController) Metrics(w http.ResponseWriter, r *http.Request) {
	snapshot := utils.GetMetrics().GetMetricsSnapshot()
	if c.conns != nil {
		snapshot["websocket_connections"] = c.conns.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, snapshot)
}
