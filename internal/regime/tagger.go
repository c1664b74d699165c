package regime

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/s0_data"
)

// Range is one row of the regime table: dates [Start, End] belong to RegimeID
type Range struct {
	RegimeID int
	Start    time.Time
	End      time.Time
}

// Tagger maps dates to regime ids and regimes to macro clusters
// ⭐ SSOT: 레짐/매크로 클러스터 판정은 여기서만
type Tagger struct {
	ranges []Range
	macro  map[int]int
}

// NewTagger creates a tagger. Ranges are searched in the given order and
// the first containing range wins.
func NewTagger(ranges []Range, macro map[int]int) *Tagger {
	if macro == nil {
		macro = make(map[int]int)
	}
	return &Tagger{ranges: ranges, macro: macro}
}

// LoadTagger reads the regime table and the regime→macro mapping files
func LoadTagger(regimePath, macroPath string) (*Tagger, error) {
	rf, err := os.Open(regimePath)
	if err != nil {
		return nil, fmt.Errorf("open regime table: %w", err)
	}
	defer rf.Close()

	ranges, err := ParseRegimes(rf, filepath.Base(regimePath))
	if err != nil {
		return nil, err
	}

	mf, err := os.Open(macroPath)
	if err != nil {
		return nil, fmt.Errorf("open macro map: %w", err)
	}
	defer mf.Close()

	macro, err := ParseMacroMap(mf, filepath.Base(macroPath))
	if err != nil {
		return nil, err
	}

	return NewTagger(ranges, macro), nil
}

// Regime returns the regime containing date. Dates after cutoff are never
// tagged so that nothing past the decision date leaks into a run.
func (t *Tagger) Regime(date, cutoff time.Time) (int, bool) {
	d := contracts.Day(date)
	if d.After(contracts.Day(cutoff)) {
		return 0, false
	}
	for _, r := range t.ranges {
		if !d.Before(r.Start) && !d.After(r.End) {
			return r.RegimeID, true
		}
	}
	return 0, false
}

// Macro returns the macro cluster of a regime
func (t *Tagger) Macro(regimeID int) (int, bool) {
	m, ok := t.macro[regimeID]
	return m, ok
}

// Tag sets Regime and Macro on rows in place and returns how many got a macro group
func (t *Tagger) Tag(rows []contracts.FeatureRow, cutoff time.Time) int {
	tagged := 0
	for i := range rows {
		rows[i].Regime, rows[i].Macro = nil, nil

		reg, ok := t.Regime(rows[i].Date, cutoff)
		if !ok {
			continue
		}
		rows[i].Regime = intPtr(reg)

		if m, ok := t.Macro(reg); ok {
			rows[i].Macro = intPtr(m)
			tagged++
		}
	}
	return tagged
}

// Covers reports whether date falls inside some regime range
func (t *Tagger) Covers(date time.Time) bool {
	_, ok := t.Regime(date, date)
	return ok
}

// MacroGroups returns the distinct macro cluster ids
func (t *Tagger) MacroGroups() []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range t.macro {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Ints(out)
	return out
}

func intPtr(v int) *int { return &v }

// ParseRegimes reads regime_id,start_date,end_date rows
func ParseRegimes(r io.Reader, source string) ([]Range, error) {
	rows, err := readTable(r, source, "REGIME_ID", "START_DATE", "END_DATE")
	if err != nil {
		return nil, err
	}

	ranges := make([]Range, 0, len(rows))
	for _, row := range rows {
		id, err := parseID(row.values[0])
		if err != nil {
			return nil, row.integrity(source, "regime_id", err.Error())
		}
		start, ok := s0_data.ParseDate(row.values[1])
		if !ok {
			return nil, row.integrity(source, "start_date", fmt.Sprintf("unparseable date %q", row.values[1]))
		}
		end, ok := s0_data.ParseDate(row.values[2])
		if !ok {
			return nil, row.integrity(source, "end_date", fmt.Sprintf("unparseable date %q", row.values[2]))
		}
		if end.Before(start) {
			return nil, row.integrity(source, "end_date", "end before start")
		}
		ranges = append(ranges, Range{RegimeID: id, Start: start, End: end})
	}
	return ranges, nil
}

// ParseMacroMap reads regime_id,macro_group rows
func ParseMacroMap(r io.Reader, source string) (map[int]int, error) {
	rows, err := readTable(r, source, "REGIME_ID", "MACRO_GROUP")
	if err != nil {
		return nil, err
	}

	out := make(map[int]int, len(rows))
	for _, row := range rows {
		id, err := parseID(row.values[0])
		if err != nil {
			return nil, row.integrity(source, "regime_id", err.Error())
		}
		macro, err := parseID(row.values[1])
		if err != nil {
			return nil, row.integrity(source, "macro_group", err.Error())
		}
		if _, dup := out[id]; !dup {
			out[id] = macro
		}
	}
	return out, nil
}

type tableRow struct {
	line   int
	values []string
}

func (r tableRow) integrity(source, column, reason string) error {
	return &contracts.DataIntegrityError{Source: source, Column: column, Line: r.line, Reason: reason}
}

// readTable returns the requested columns of every data row
func readTable(r io.Reader, source string, columns ...string) ([]tableRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &contracts.DataIntegrityError{Source: source, Column: columns[0], Reason: "empty file"}
		}
		return nil, fmt.Errorf("read %s header: %w", source, err)
	}

	index := make(map[string]int, len(head))
	for i, h := range head {
		index[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	pos := make([]int, len(columns))
	for i, col := range columns {
		p, ok := index[col]
		if !ok {
			return nil, &contracts.DataIntegrityError{Source: source, Column: strings.ToLower(col), Reason: "missing required column"}
		}
		pos[i] = p
	}

	var out []tableRow
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &contracts.DataIntegrityError{Source: source, Line: line, Column: "*", Reason: err.Error()}
		}

		values := make([]string, len(pos))
		blank := true
		for i, p := range pos {
			if p < len(rec) {
				values[i] = strings.TrimSpace(rec[p])
			}
			if values[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		out = append(out, tableRow{line: line, values: values})
	}
	return out, nil
}

// parseID accepts integer ids written as floats ("3.0")
func parseID(s string) (int, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v != math.Trunc(v) {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int(v), nil
}
