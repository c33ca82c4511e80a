package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studybridge/studybridge-api/internal/service"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
	"github.com/studybridge/studybridge-api/pkg/response"
)

// PaymentHandler exposes the payment ledger endpoints.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler constructs handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Record godoc
// @Summary Record a payment made to an agent
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param agentId path string true "Agent ID"
// @Param amount formData number true "Amount paid"
// @Param paid_on formData string true "Payment date (RFC3339 or YYYY-MM-DD)"
// @Param description formData string true "What the payment covers"
// @Param institution formData string true "Receiving institution"
// @Param notes formData string false "Free-form notes"
// @Param slip formData file false "Payment slip image or PDF"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/agent/{agentId} [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req, err := parseRecordPaymentForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var slip io.Reader
	if fileHeader, fileErr := c.FormFile("slip"); fileErr == nil {
		req.SlipFileName = fileHeader.Filename
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read payment slip"))
			return
		}
		defer file.Close()
		slip = file
	}

	payment, err := h.service.Record(c.Request.Context(), c.Param("agentId"), claims.UserID, req, slip)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, payment)
}

func parseRecordPaymentForm(c *gin.Context) (service.RecordPaymentRequest, error) {
	var req service.RecordPaymentRequest

	amount, err := strconv.ParseFloat(c.PostForm("amount"), 64)
	if err != nil {
		return req, appErrors.Clone(appErrors.ErrValidation, "amount must be a number")
	}
	req.Amount = amount

	paidOn, err := parsePaymentDate(c.PostForm("paid_on"))
	if err != nil {
		return req, err
	}
	req.PaidOn = paidOn

	req.Description = c.PostForm("description")
	req.Institution = c.PostForm("institution")
	if notes := c.PostForm("notes"); notes != "" {
		req.Notes = &notes
	}
	return req, nil
}

func parsePaymentDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "paid_on must be RFC3339 or YYYY-MM-DD")
}

// ForAgent godoc
// @Summary List payments declared towards the calling agent
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/agent [get]
func (h *PaymentHandler) ForAgent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payments, err := h.service.ListForAgent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payments, nil)
}

// ForStudent godoc
// @Summary List the calling student's declared payments
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/student [get]
func (h *PaymentHandler) ForStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payments, err := h.service.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payments, nil)
}

// Decide godoc
// @Summary Approve or reject a declared payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.DecidePaymentRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [put]
func (h *PaymentHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecidePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	payment, err := h.service.Decide(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete a pending or rejected payment declaration
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Slip godoc
// @Summary Download a payment's slip file
// @Tags Payments
// @Produce octet-stream
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/slip [get]
func (h *PaymentHandler) Slip(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payment, file, err := h.service.OpenSlip(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read payment slip"))
		return
	}

	ext := ""
	if payment.SlipPath != nil {
		ext = filepath.Ext(*payment.SlipPath)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("slip-%s%s", payment.ID, ext)))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
