package database

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"devsnippet/internal/middleware"

	"gorm.io/gorm"
)

// Migration is one NNNNNN_name.up.sql / .down.sql pair.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Checksum fingerprints the up script so edits to applied files are caught.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpScript))
	return hex.EncodeToString(sum[:])
}

// MigrationLog records an applied migration.
type MigrationLog struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:64"`
	AppliedAt time.Time
}

func (MigrationLog) TableName() string { return "migration_logs" }

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() ([]Migration, error) {
	return LoadMigrations(embedded, "migrations")
}

// LoadMigrations reads migration pairs from dir, ordered by version.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []Migration
	seen := map[int]string{}
	for _, entry := range entries {
		file := entry.Name()
		base, ok := strings.CutSuffix(file, ".up.sql")
		if entry.IsDir() || !ok {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: want NNNNNN_name.up.sql", file)
		}
		version, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("migration %s: non-numeric version", file)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, prev, file)
		}
		seen[version] = file

		up, err := fs.ReadFile(fsys, path.Join(dir, file))
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", base, err)
		}
		out = append(out, Migration{Version: version, Name: name, UpScript: string(up), DownScript: string(down)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// Migrator applies and reverts a fixed set of migrations, recording each in
// migration_logs inside the same transaction as its script.
type Migrator struct {
	db  *gorm.DB
	set []Migration
}

func NewMigrator(db *gorm.DB, set []Migration) *Migrator {
	return &Migrator{db: db, set: set}
}

func (m *Migrator) ensureLog(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}
	return nil
}

func (m *Migrator) logs(ctx context.Context) ([]MigrationLog, error) {
	if err := m.ensureLog(ctx); err != nil {
		return nil, err
	}
	var logs []MigrationLog
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

// Applied returns the recorded versions in ascending order.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	logs, err := m.logs(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]int, 0, len(logs))
	for _, l := range logs {
		versions = append(versions, l.Version)
	}
	return versions, nil
}

// Pending returns the migrations not yet recorded. It fails if the log holds a
// version this build does not know or an applied script has been edited.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	logs, err := m.logs(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.verify(logs); err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(logs))
	for _, l := range logs {
		applied[l.Version] = true
	}
	var pending []Migration
	for _, mg := range m.set {
		if !applied[mg.Version] {
			pending = append(pending, mg)
		}
	}
	return pending, nil
}

func (m *Migrator) verify(logs []MigrationLog) error {
	var unknown []string
	for _, l := range logs {
		mg := m.find(l.Version)
		if mg == nil {
			unknown = append(unknown, fmt.Sprintf("%06d", l.Version))
			continue
		}
		if l.Checksum != "" && l.Checksum != mg.Checksum() {
			return fmt.Errorf("migration %s was edited after it was applied", mg)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (m *Migrator) find(version int) *Migration {
	for i := range m.set {
		if m.set[i].Version == version {
			return &m.set[i]
		}
	}
	return nil
}

// Up applies every pending migration in order and returns what it applied.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for i, mg := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mg.UpScript).Error; err != nil {
				return fmt.Errorf("apply %s: %w", mg, err)
			}
			return tx.Create(&MigrationLog{
				Version:   mg.Version,
				Name:      mg.Name,
				Checksum:  mg.Checksum(),
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return pending[:i], err
		}
		middleware.Logger.Info("Migration applied", slog.String("migration", mg.String()))
	}
	return pending, nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mg := m.find(version)
	if mg == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mg.DownScript).Error; err != nil {
			return fmt.Errorf("revert %s: %w", mg, err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back", slog.String("migration", mg.String()))
	return nil
}

func embeddedMigrator(db *gorm.DB) (*Migrator, error) {
	set, err := Embedded()
	if err != nil {
		return nil, err
	}
	return NewMigrator(db, set), nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	m, err := embeddedMigrator(db)
	if err != nil {
		return err
	}
	_, err = m.Up(ctx)
	return err
}

// RollbackMigration reverts one embedded migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m, err := embeddedMigrator(db)
	if err != nil {
		return err
	}
	return m.Down(ctx, version)
}
