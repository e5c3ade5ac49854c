package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/report"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FeeHandler serves monthly fee periods and their payments.
type FeeHandler struct {
	feeService   *service.FeeService
	classService *service.ClassService
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewFeeHandler creates a new FeeHandler. m may be nil.
func NewFeeHandler(feeService *service.FeeService, classService *service.ClassService, m *metrics.Metrics, log zerolog.Logger) *FeeHandler {
	return &FeeHandler{
		feeService:   feeService,
		classService: classService,
		metrics:      m,
		log:          log.With().Str("component", "fee_handler").Logger(),
	}
}

// GetPeriod godoc
// GET /api/v1/classes/:id/fees/:month
// Returns the class's fee period for the month, creating it from the class's
// current rate on first access.
func (h *FeeHandler) GetPeriod(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}
	month, ok := monthParam(c)
	if !ok {
		return
	}

	period, err := h.feeService.EnsurePeriod(c.Request.Context(), id, middleware.UserID(c), month)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"fee": feeView(period)})
}

// SavePlan godoc
// PUT /api/v1/classes/:id/fees/:month
// Sets the period's rate and enrolment; the amount paid is kept.
func (h *FeeHandler) SavePlan(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}
	month, ok := monthParam(c)
	if !ok {
		return
	}

	var req model.SavePlanRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	period, err := h.feeService.SavePlan(c.Request.Context(), id, middleware.UserID(c), month, req.RatePerStudent, *req.EnrolledCount)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"fee": feeView(period)})
}

// RecordPayment godoc
// POST /api/v1/classes/:id/fees/:month/payments
// Adds a payment to the period and returns the updated period.
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}
	month, ok := monthParam(c)
	if !ok {
		return
	}

	var req model.RecordPaymentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	period, payment, err := h.feeService.RecordPayment(c.Request.Context(), id, middleware.UserID(c), month, req.Amount, req.Method)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"fee":     feeView(period),
		"payment": payment,
	})
}

// ListPayments godoc
// GET /api/v1/classes/:id/fees/:month/payments
func (h *FeeHandler) ListPayments(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}
	month, ok := monthParam(c)
	if !ok {
		return
	}

	payments, err := h.feeService.ListPayments(c.Request.Context(), id, middleware.UserID(c), month)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"payments": payments})
}

// MonthSummary godoc
// GET /api/v1/fees/:month/summary
// Totals the caller's fee periods for the month.
func (h *FeeHandler) MonthSummary(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}

	sum, err := h.feeService.MonthSummary(c.Request.Context(), middleware.UserID(c), month)
	if err != nil {
		failService(c, h.log, err, response.ErrFeePeriodNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": summaryView(sum)})
}

// StreamMonthSummary godoc
// GET /api/v1/fees/:month/summary/stream
// Pushes the month summary over SSE whenever a payment or plan changes.
func (h *FeeHandler) StreamMonthSummary(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}

	sub, err := h.feeService.WatchMonthSummary(c.Request.Context(), middleware.UserID(c), month)
	if err != nil {
		failService(c, h.log, err, response.ErrFeePeriodNotFound)
		return
	}
	streamSnapshots(c, sub, "summary", h.metrics, h.log)
}

// MonthReport godoc
// GET /api/v1/fees/:month/report.xlsx
// Downloads the month's fee periods as a spreadsheet.
func (h *FeeHandler) MonthReport(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ownerID := middleware.UserID(c)

	sum, err := h.feeService.MonthSummary(ctx, ownerID, month)
	if err != nil {
		failService(c, h.log, err, response.ErrFeePeriodNotFound)
		return
	}
	classes, err := h.classService.ListOwned(ctx, ownerID)
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	titles := make(map[string]string, len(classes))
	for _, cl := range classes {
		titles[cl.ID] = cl.Title
	}
	rows := make([]report.FeeRow, 0, len(sum.Periods))
	for _, p := range sum.Periods {
		title, ok := titles[p.ClassID]
		if !ok {
			title = p.ClassID + " (deleted)"
		}
		rows = append(rows, report.FeeRow{ClassTitle: title, Period: p})
	}

	var buf bytes.Buffer
	if err := report.WriteMonthlyFees(&buf, month, rows); err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="fees-`+month+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// feeResponse adds the derived due amount to a period.
type feeResponse struct {
	*model.FeePeriod
	DueAmount string `json:"due_amount"`
}

func feeView(p *model.FeePeriod) feeResponse {
	return feeResponse{FeePeriod: p, DueAmount: p.DueAmount().StringFixed(2)}
}

type summaryResponse struct {
	MonthKey      string        `json:"month_key"`
	Periods       []feeResponse `json:"periods"`
	TotalExpected string        `json:"total_expected"`
	TotalPaid     string        `json:"total_paid"`
	TotalDue      string        `json:"total_due"`
}

func summaryView(sum *service.MonthSummary) summaryResponse {
	periods := make([]feeResponse, 0, len(sum.Periods))
	for i := range sum.Periods {
		periods = append(periods, feeView(&sum.Periods[i]))
	}
	return summaryResponse{
		MonthKey:      sum.MonthKey,
		Periods:       periods,
		TotalExpected: sum.TotalExpected.StringFixed(2),
		TotalPaid:     sum.TotalPaid.StringFixed(2),
		TotalDue:      sum.TotalDue.StringFixed(2),
	}
}
