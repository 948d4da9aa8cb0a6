package admin

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emarket-next/internal/http/response"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"

	"github.com/gin-gonic/gin"
)

const adminTransactionExportBatchSize = 500

// GetPaymentTransactions 支付流水列表，用于排查孤立或卡住的待支付记录
func (h *Handler) GetPaymentTransactions(c *gin.Context) {
	page, pageSize := pageParams(c)
	filter, err := buildTransactionFilter(c, page, pageSize)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	rows, total, err := h.PaymentService.ListTransactions(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ExportPaymentTransactions 导出支付流水 CSV
func (h *Handler) ExportPaymentTransactions(c *gin.Context) {
	filter, err := buildTransactionFilter(c, 1, adminTransactionExportBatchSize)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	rows, _, err := h.PaymentService.ListTransactions(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.payment_fetch_failed", err)
		return
	}

	filename := fmt.Sprintf("payment_transactions_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write([]string{
		"id",
		"reference",
		"status",
		"amount",
		"shipping_cost",
		"currency",
		"customer_phone",
		"email",
		"governorate",
		"created_at",
		"last_callback_at",
	}); err != nil {
		requestLog(c).Errorw("admin_transaction_export_header_write_failed", "error", err)
		return
	}

	page := 1
	for {
		if err := writeTransactionCSVRows(writer, rows); err != nil {
			requestLog(c).Errorw("admin_transaction_export_rows_write_failed", "page", page, "error", err)
			return
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			requestLog(c).Errorw("admin_transaction_export_flush_failed", "page", page, "error", err)
			return
		}
		if len(rows) < adminTransactionExportBatchSize {
			break
		}
		page++
		filter.Page = page
		rows, _, err = h.PaymentService.ListTransactions(filter)
		if err != nil {
			requestLog(c).Errorw("admin_transaction_export_batch_fetch_failed", "page", page, "error", err)
			return
		}
	}
}

// DeletePaymentTransaction 人工删除支付流水
func (h *Handler) DeletePaymentTransaction(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	if err := h.PaymentService.DeleteTransaction(id); err != nil {
		respondWithMappedError(c, err, adminPaymentErrorRules, response.CodeInternal, "error.payment_delete_failed")
		return
	}
	if adminID, ok := c.Get("admin_id"); ok {
		requestLog(c).Infow("admin_payment_transaction_deleted", "admin_id", adminID, "transaction_id", id)
	}
	response.Success(c, gin.H{"deleted": true})
}

func buildTransactionFilter(c *gin.Context, page, pageSize int) (repository.PaymentTransactionListFilter, error) {
	createdBefore, err := parseTimeNullable(strings.TrimSpace(c.Query("created_before")))
	if err != nil {
		return repository.PaymentTransactionListFilter{}, err
	}
	return repository.PaymentTransactionListFilter{
		Page:          page,
		PageSize:      pageSize,
		Status:        strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Reference:     strings.TrimSpace(c.Query("reference")),
		CreatedBefore: createdBefore,
	}, nil
}

func writeTransactionCSVRows(writer *csv.Writer, rows []models.PaymentTransaction) error {
	for _, row := range rows {
		lastCallback := ""
		if row.LastCallbackAt != nil {
			lastCallback = row.LastCallbackAt.Format(time.RFC3339)
		}
		if err := writer.Write([]string{
			strconv.FormatUint(uint64(row.ID), 10),
			row.Reference,
			row.Status,
			row.Amount.String(),
			row.ShippingCost.String(),
			row.Currency,
			row.CustomerPhone,
			row.Email,
			row.Governorate,
			row.CreatedAt.Format(time.RFC3339),
			lastCallback,
		}); err != nil {
			return err
		}
	}
	return nil
}
