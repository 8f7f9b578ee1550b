package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/planflow/planflow/internal/config"
	"github.com/planflow/planflow/internal/domain/billing"
	"github.com/planflow/planflow/internal/domain/catalog"
	"github.com/planflow/planflow/internal/domain/plan"
	"github.com/planflow/planflow/internal/domain/schedule"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"treatment", "catalog", "scheduling", "billing"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&plan.TreatmentPlan{},
		&plan.Phase{},
		&plan.Item{},
		&plan.AuditLog{},
		&catalog.Service{},
		&schedule.Shift{},
		&schedule.Booking{},
		&schedule.Room{},
		&schedule.RoomService{},
		&schedule.Holiday{},
		&schedule.SpacingRule{},
		&billing.Invoice{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// Plan lookup by code is the hot path for every operation.
		{
			name:  "idx_plans_code",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_code ON treatment.plans (plan_code)`,
		},
		{
			name:  "idx_plan_items_phase_seq",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS idx_plan_items_phase_seq ON treatment.plan_items (phase_id, sequence_number)`,
		},
		// Conflict window scans during slot search.
		{
			name:  "idx_bookings_doctor_window",
			query: `CREATE INDEX IF NOT EXISTS idx_bookings_doctor_window ON scheduling.bookings (doctor_id, start_time, end_time) WHERE status IN ('scheduled', 'checked_in', 'in_progress')`,
		},
		{
			name:  "idx_bookings_patient_service",
			query: `CREATE INDEX IF NOT EXISTS idx_bookings_patient_service ON scheduling.bookings (patient_id, service_id, start_time DESC)`,
		},
		{
			name:  "idx_audit_logs_plan_time",
			query: `CREATE INDEX IF NOT EXISTS idx_audit_logs_plan_time ON treatment.plan_audit_logs (plan_id, created_at)`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
