package tasks

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/importers"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/services"
)

// ImportQueueName is the backlite queue imports are enqueued on.
const ImportQueueName = "legacy_import"

// Importer runs one import.
type Importer interface {
	Run(ctx context.Context, req services.ImportRequest, reporter progress.Reporter) (importers.Summary, error)
}

// ImportTask imports a legacy dataset in the background. Blank fields fall
// back to stored settings and configuration.
type ImportTask struct {
	LegacyPath string   `json:"legacy_path,omitempty"`
	Tables     []string `json:"tables,omitempty"`
	Threshold  int      `json:"threshold,omitempty"`
	Trigger    string   `json:"trigger"`
}

// Config returns the queue configuration for import tasks. An import is not
// retried: the rows it already committed would be skipped anyway, so a rerun
// is left to the operator.
func (t ImportTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        ImportQueueName,
		MaxAttempts: 1,
		Timeout:     DefaultConfig().TaskTimeout,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Request converts the task into an import request.
func (t ImportTask) Request() services.ImportRequest {
	return services.ImportRequest{
		LegacyPath: t.LegacyPath,
		Tables:     t.Tables,
		Threshold:  t.Threshold,
		Trigger:    t.Trigger,
	}
}

// ImportProcessor creates a processor function for ImportTask. timeout bounds
// a single import; zero leaves only the queue timeout.
func ImportProcessor(importer Importer, timeout time.Duration) backlite.QueueProcessor[ImportTask] {
	return func(ctx context.Context, task ImportTask) error {
		if importer == nil {
			return errors.New("importer not configured")
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		log := logrus.WithFields(logrus.Fields{"component": "tasks", "trigger": task.Trigger})
		summary, err := importer.Run(ctx, task.Request(), progress.NewLogReporter(log))
		if err != nil {
			return errors.Wrap(err, "legacy import")
		}

		log.WithFields(logrus.Fields{
			"run_id":    summary.RunID,
			"completed": summary.Completed(),
			"failed":    summary.Failed,
		}).Info("Background import finished")
		return nil
	}
}

// NewImportQueue creates a backlite queue for import tasks.
func NewImportQueue(importer Importer, timeout time.Duration) backlite.Queue {
	return backlite.NewQueue(ImportProcessor(importer, timeout))
}
