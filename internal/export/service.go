package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/funeral-audit/internal/entity"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
)

const sheet = "Audits"

// Service produces XLSX workbooks of a user's audit jobs.
type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX returns a workbook with one row per job, newest first.
func (s *Service) ExportJobsXLSX(ctx context.Context, userID string) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Created At",
		"Case Number",
		"Branch",
		"Feature",
		"Status",
		"Files",
		"Accuracy",
		"Issues",
		"Completed At",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, job := range jobs {
		writeRow(f, i+2, job.View())
	}

	_ = f.SetColWidth(sheet, "A", "A", 22) // created
	_ = f.SetColWidth(sheet, "B", "E", 16)
	_ = f.SetColWidth(sheet, "F", "F", 40) // files
	_ = f.SetColWidth(sheet, "G", "G", 10)
	_ = f.SetColWidth(sheet, "H", "H", 60) // issues
	_ = f.SetColWidth(sheet, "I", "I", 22)
	_ = f.SetColWidth(sheet, "J", "J", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID,
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, v entity.JobView) {
	write := func(col int, val any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, val)
	}
	names := make([]string, 0, len(v.Files))
	for _, file := range v.Files {
		names = append(names, file.OriginalName)
	}

	write(1, v.CreatedAt.Format(time.RFC3339))
	write(2, v.CaseNumber)
	write(3, v.Branch)
	write(4, v.Feature)
	write(5, v.Status)
	write(6, strings.Join(names, ", "))
	write(7, deref(v.Accuracy))
	write(8, strings.Join(v.Issues, "\n"))
	if v.CompletedAt != nil {
		write(9, v.CompletedAt.Format(time.RFC3339))
	}
	write(10, truncate(deref(v.Error), 500))
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
