package importers

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/crypto"
	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/keyindex"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/rules"
)

// Env is everything a mapper needs for one run. The driver builds it once per
// import and swaps People after people-producing mappers.
type Env struct {
	Gateway *database.Gateway
	People  *keyindex.Index

	// Actor is the alias recorded as creator of imported rows. Nil when no
	// person is available yet.
	Actor      *uint
	ImportedAt time.Time

	Threshold int
	Reporter  progress.Reporter
	Log       *logrus.Entry

	Attributes   *rules.Table
	Requirements *rules.Table
	Hasher       *crypto.AccountHasher

	// DefaultCampus is the campus name or short code used when nothing in a
	// row identifies one. Empty means the first campus.
	DefaultCampus string

	// Total is the row count of the table being imported, 0 when unknown.
	Total int
}

// Stamp returns the provenance of a row imported under foreignID.
func (e *Env) Stamp(foreignID *int) entities.Provenance {
	return entities.Stamp(foreignID, e.Actor, e.ImportedAt)
}

func (e *Env) report(percent int, message string) {
	if e.Reporter != nil {
		e.Reporter.Report(percent, message)
	}
}

func (e *Env) logger() *logrus.Entry {
	if e.Log != nil {
		return e.Log
	}
	return logrus.WithField("component", "importers")
}

func (e *Env) threshold() int {
	if e.Threshold < 1 {
		return 100
	}
	return e.Threshold
}
