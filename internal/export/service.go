package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/nfse-reader/internal/entity"
	"github.com/joseph-ayodele/nfse-reader/internal/repository"
)

const sheet = "Invoices"

var headers = []string{
	"Task ID",
	"Completed At",
	"Issue Date",
	"Invoice Number",
	"Provider",
	"Provider Tax ID",
	"Customer",
	"Customer Tax ID",
	"Service Description",
	"Service Amount",
	"Deduction Amount",
	"Tax Amount",
	"Net Amount",
}

// Service produces XLSX bytes for the results of completed tasks.
type Service struct {
	tasks  repository.TaskRepository
	logger *slog.Logger
}

func NewService(tasks repository.TaskRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: tasks, logger: logger}
}

// TasksXLSX returns a workbook with one row per completed task, oldest first.
// Tasks whose stored result cannot be decoded are skipped.
func (s *Service) TasksXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	tasks, err := s.tasks.ListCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row, skipped := 2, 0
	for _, t := range tasks {
		rec, err := decode(t)
		if err != nil {
			s.logger.Warn("export.xlsx.skip", "task_id", t.ID, "error", err)
			skipped++
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, t.ID)
		if t.CompletedAt != nil {
			write(2, t.CompletedAt.UTC().Format(time.RFC3339))
		}
		write(3, deref(rec.IssueDate))
		write(4, deref(rec.InvoiceNumber))
		write(5, deref(rec.Provider.Name))
		write(6, deref(rec.Provider.TaxID))
		write(7, deref(rec.Customer.Name))
		write(8, deref(rec.Customer.TaxID))
		if len(rec.Services) > 0 {
			write(9, truncate(deref(rec.Services[0].Description), 200))
		}
		write(10, rec.Amounts.ServiceAmount)
		write(11, rec.Amounts.DeductionAmount)
		write(12, rec.Amounts.TaxAmount)
		write(13, rec.Amounts.NetAmount)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 10) // id
	_ = f.SetColWidth(sheet, "B", "D", 22) // dates, number
	_ = f.SetColWidth(sheet, "E", "H", 32) // parties
	_ = f.SetColWidth(sheet, "I", "I", 60) // description
	_ = f.SetColWidth(sheet, "J", "M", 16) // amounts

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", row-2,
		"skipped", skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func decode(t *entity.Task) (*entity.ExtractedRecord, error) {
	if t.ResultJSON == nil {
		return nil, fmt.Errorf("task %d has no result", t.ID)
	}
	var rec entity.ExtractedRecord
	if err := json.Unmarshal([]byte(*t.ResultJSON), &rec); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
