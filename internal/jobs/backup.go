package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/model"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

type snapshot struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Plans       []model.Plan   `json:"plans"`
	Clients     []model.Client `json:"clients"`
}

func (t *tasks) dataBackup(ctx context.Context) error {
	now := t.now()
	plans, err := t.Storage.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed reading plans for backup: %w", err)
	}
	clients, err := t.Storage.FindClients(ctx, model.ClientFilter{})
	if err != nil {
		return fmt.Errorf("failed reading clients for backup: %w", err)
	}

	path, err := writeSnapshot(t.BackupDir, snapshot{GeneratedAt: now, Plans: plans, Clients: clients})
	if err != nil {
		return err
	}

	t.Security.Log(audit.Event{
		Event: "DATA_BACKUP_COMPLETED",
		IP:    audit.SystemIP,
		Details: map[string]any{
			"backupType": "scheduled",
			"file":       path,
			"plans":      len(plans),
			"clients":    len(clients),
		},
		Success: true,
	})
	log.WithField("file", path).Info("Data backup written")
	return nil
}

// writeSnapshot moves the file into place only once it is fully written.
func writeSnapshot(dir string, data snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed creating backup directory %s: %w", dir, err)
	}

	file, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed creating backup file: %w", err)
	}
	defer os.Remove(file.Name())

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(data); err != nil {
		file.Close()
		return "", fmt.Errorf("failed encoding backup: %w", err)
	}
	if err = file.Close(); err != nil {
		return "", fmt.Errorf("failed writing backup: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("backup-%s.json", data.GeneratedAt.UTC().Format("20060102-150405")))
	if err = os.Rename(file.Name(), path); err != nil {
		return "", fmt.Errorf("failed finalizing backup %s: %w", path, err)
	}
	return path, nil
}
