package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExtractPath returns the object key of one table extract written by an
// ETL run, partitioned by the UTC day the run started.
func BuildExtractPath(table string, runAt time.Time, runID string) (string, error) {
	if err := validateKeyComponent(table, "table"); err != nil {
		return "", err
	}
	if err := validateKeyComponent(runID, "run id"); err != nil {
		return "", err
	}
	return path.Join(table, "date="+runAt.UTC().Format(time.DateOnly), "part-"+runID+".parquet"), nil
}

func validateKeyComponent(value, field string) error {
	if !keyComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
