package entrypoint

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/config"
)

// ConfigureLogging applies the level and format of cfg to the standard
// logrus logger.
func ConfigureLogging(cfg config.Logging) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
