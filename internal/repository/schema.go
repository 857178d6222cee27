package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the statement builders.
const (
	jobsTable         = "jobs"
	uploadsTable      = "uploads"
	auditResultsTable = "audit_results"
)

var (
	// JobsColumns holds the columns for the "jobs" table.
	JobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeString},
		{Name: "case_number", Type: field.TypeString, Default: ""},
		{Name: "branch", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Default: ""},
		{Name: "feature", Type: field.TypeString},
		{Name: "status", Type: field.TypeString, Default: "queued"},
		{Name: "error", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// JobsTable holds the schema information for the "jobs" table.
	JobsTable = &schema.Table{
		Name:       jobsTable,
		Columns:    JobsColumns,
		PrimaryKey: []*schema.Column{JobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "job_user_id_created_at", Columns: []*schema.Column{JobsColumns[1], JobsColumns[8]}},
			{Name: "job_status", Columns: []*schema.Column{JobsColumns[6]}},
		},
	}
	// UploadsColumns holds the columns for the "uploads" table.
	UploadsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeString},
		{Name: "original_name", Type: field.TypeString},
		{Name: "file_name", Type: field.TypeString, Unique: true},
		{Name: "storage_path", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "job_id", Type: field.TypeUUID},
	}
	// UploadsTable holds the schema information for the "uploads" table.
	UploadsTable = &schema.Table{
		Name:       uploadsTable,
		Columns:    UploadsColumns,
		PrimaryKey: []*schema.Column{UploadsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "uploads_jobs_uploads",
				Columns:    []*schema.Column{UploadsColumns[7]},
				RefColumns: []*schema.Column{JobsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "upload_job_id", Columns: []*schema.Column{UploadsColumns[7]}},
		},
	}
	// AuditResultsColumns holds the columns for the "audit_results" table.
	AuditResultsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "accuracy", Type: field.TypeString, Nullable: true},
		{Name: "issues", Type: field.TypeJSON, Nullable: true},
		{Name: "error", Type: field.TypeString, Nullable: true},
		{Name: "completed_at", Type: field.TypeTime},
		{Name: "job_id", Type: field.TypeUUID, Unique: true},
	}
	// AuditResultsTable holds the schema information for the "audit_results" table.
	AuditResultsTable = &schema.Table{
		Name:       auditResultsTable,
		Columns:    AuditResultsColumns,
		PrimaryKey: []*schema.Column{AuditResultsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "audit_results_jobs_audit_result",
				Columns:    []*schema.Column{AuditResultsColumns[5]},
				RefColumns: []*schema.Column{JobsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		JobsTable,
		UploadsTable,
		AuditResultsTable,
	}
)

func init() {
	UploadsTable.ForeignKeys[0].RefTable = JobsTable
	AuditResultsTable.ForeignKeys[0].RefTable = JobsTable
}

// EnsureSchema creates missing tables and indexes. It never drops anything.
func EnsureSchema(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	drv := entsql.OpenDB(db.Dialect, db.SQL)
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("schema migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema bootstrap failed", "dialect", db.Dialect, "error", err)
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Info("schema ready", "dialect", db.Dialect, "tables", len(Tables))
	return nil
}
