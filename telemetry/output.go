package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/beaker/config"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir          string
	cycleFile    *os.File
	mutationFile *os.File

	// Track if headers have been written
	cycleHeaderWritten    bool
	mutationHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "cycles.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating cycles.csv: %w", err)
	}
	om.cycleFile = f

	f, err = os.Create(filepath.Join(dir, "mutations.csv"))
	if err != nil {
		om.cycleFile.Close()
		return nil, fmt.Errorf("creating mutations.csv: %w", err)
	}
	om.mutationFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteCycle writes a cycle record to cycles.csv.
func (om *OutputManager) WriteCycle(stats CycleStats) error {
	if om == nil {
		return nil
	}
	if err := writeRecords([]CycleStats{stats}, om.cycleFile, &om.cycleHeaderWritten); err != nil {
		return fmt.Errorf("writing cycle: %w", err)
	}
	return nil
}

// WriteMutations writes mutation records to mutations.csv.
func (om *OutputManager) WriteMutations(records []MutationRecord) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	if err := writeRecords(records, om.mutationFile, &om.mutationHeaderWritten); err != nil {
		return fmt.Errorf("writing mutations: %w", err)
	}
	return nil
}

// writeRecords marshals records, emitting the header only on the first write.
func writeRecords(records interface{}, f *os.File, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.cycleFile, om.mutationFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
