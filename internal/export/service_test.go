package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
)

func TestExportJobsXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: repository.SQLiteDSN(filepath.Join(t.TempDir(), "a.db"))}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close(nil)
	if err := repository.EnsureSchema(ctx, db, nil); err != nil {
		t.Fatal(err)
	}
	repo := repository.NewJobRepository(db, nil)

	job := &entity.Job{
		ID: uuid.New(), UserID: "u1", CaseNumber: "C-77", Branch: "Mesa",
		Feature: "general", Status: constants.JobStatusQueued, CreatedAt: time.Now().UTC(),
		Uploads: []entity.Upload{{
			ID: uuid.New(), UserID: "u1", OriginalName: "drw.pdf", FileName: "x_drw.pdf",
			StoragePath: "/tmp/x_drw.pdf", CreatedAt: time.Now().UTC(),
		}},
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := repo.Claim(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	acc := "91%"
	if _, err := repo.Finish(ctx, job.ID, repository.TerminalOutcome{
		Status: constants.JobStatusCompleted, Accuracy: &acc, Issues: []string{"SSN missing", "DOB illegible"},
	}); err != nil {
		t.Fatal(err)
	}

	data, err := NewService(repo, nil).ExportJobsXLSX(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	row := rows[1]
	if row[1] != "C-77" || row[4] != "completed" || row[5] != "drw.pdf" || row[6] != "91%" {
		t.Errorf("row = %q", row)
	}
	if row[7] != "SSN missing\nDOB illegible" {
		t.Errorf("issues cell = %q", row[7])
	}
}
