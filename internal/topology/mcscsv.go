package topology

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/joshuamhtsang/sine/internal/modulation"
)

// mcsCSVColumns is the required, ordered column header for an MCS table
// CSV file.
var mcsCSVColumns = []string{"mcs_index", "modulation", "code_rate", "fec_type", "bandwidth_mhz", "min_snr_db"}

// LoadMCSTable reads an MCS table CSV file and validates it into a
// [modulation.MCSTable].
func LoadMCSTable(path string) (*modulation.MCSTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topology: opening mcs table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("topology: parsing mcs table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("topology: mcs table %s is empty", path)
	}

	header := records[0]
	if err := checkHeader(header); err != nil {
		return nil, fmt.Errorf("topology: mcs table %s: %w", path, err)
	}

	entries := make([]modulation.MCSEntry, 0, len(records)-1)
	for i, row := range records[1:] {
		entry, err := parseMCSRow(row)
		if err != nil {
			return nil, fmt.Errorf("topology: mcs table %s row %d: %w", path, i+2, err)
		}
		entries = append(entries, entry)
	}

	table, err := modulation.NewMCSTable(entries)
	if err != nil {
		return nil, fmt.Errorf("topology: mcs table %s: %w", path, err)
	}
	return table, nil
}

func checkHeader(header []string) error {
	if len(header) != len(mcsCSVColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(mcsCSVColumns), len(header))
	}
	for i, want := range mcsCSVColumns {
		if header[i] != want {
			return fmt.Errorf("column %d: expected %q, got %q", i, want, header[i])
		}
	}
	return nil
}

func parseMCSRow(row []string) (modulation.MCSEntry, error) {
	if len(row) != len(mcsCSVColumns) {
		return modulation.MCSEntry{}, fmt.Errorf("expected %d fields, got %d", len(mcsCSVColumns), len(row))
	}
	index, err := strconv.Atoi(row[0])
	if err != nil {
		return modulation.MCSEntry{}, fmt.Errorf("mcs_index: %w", err)
	}
	codeRate, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return modulation.MCSEntry{}, fmt.Errorf("code_rate: %w", err)
	}
	bandwidthMHz, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return modulation.MCSEntry{}, fmt.Errorf("bandwidth_mhz: %w", err)
	}
	minSNRDB, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return modulation.MCSEntry{}, fmt.Errorf("min_snr_db: %w", err)
	}
	return modulation.MCSEntry{
		Index:        index,
		Modulation:   modulation.Kind(row[1]),
		CodeRate:     codeRate,
		FEC:          modulation.FECType(row[3]),
		BandwidthMHz: bandwidthMHz,
		MinSNRDB:     minSNRDB,
	}, nil
}
