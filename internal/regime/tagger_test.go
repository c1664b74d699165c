package regime

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/internal/contracts"
)

func day(s string) time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return t
}

const regimesCSV = `regime_id,start_date,end_date
0,2024-01-01,2024-06-30
1.0,2024-07-01,2025-03-31
2,2025-04-01,2025-12-31
`

const macroCSV = `regime_id,macro_group
0,10
1,11
2,10
`

func newTestTagger(t *testing.T) *Tagger {
	t.Helper()
	ranges, err := ParseRegimes(strings.NewReader(regimesCSV), "regimes.csv")
	require.NoError(t, err)
	macro, err := ParseMacroMap(strings.NewReader(macroCSV), "macro.csv")
	require.NoError(t, err)
	return NewTagger(ranges, macro)
}

func TestRegime(t *testing.T) {
	tagger := newTestTagger(t)
	cutoff := day("2025-12-05")

	tests := []struct {
		date string
		want int
		ok   bool
	}{
		{"2024-01-01", 0, true},
		{"2024-06-30", 0, true},
		{"2024-07-01", 1, true},
		{"2025-12-05", 2, true},
		{"2025-12-08", 0, false}, // after cutoff
		{"2023-12-31", 0, false}, // before any range
	}

	for _, tt := range tests {
		got, ok := tagger.Regime(day(tt.date), cutoff)
		assert.Equal(t, tt.ok, ok, tt.date)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.date)
		}
	}
}

func TestTag(t *testing.T) {
	tagger := newTestTagger(t)
	rows := []contracts.FeatureRow{
		{Symbol: "A", Date: day("2024-03-01")},
		{Symbol: "A", Date: day("2025-12-05")},
		{Symbol: "A", Date: day("2025-12-08")},
	}

	n := tagger.Tag(rows, day("2025-12-05"))
	assert.Equal(t, 2, n)

	require.NotNil(t, rows[0].Macro)
	assert.Equal(t, 10, *rows[0].Macro)
	require.NotNil(t, rows[1].Regime)
	assert.Equal(t, 2, *rows[1].Regime)
	assert.Nil(t, rows[2].Regime, "rows after the decision date stay untagged")
	assert.Nil(t, rows[2].Macro)

	assert.Equal(t, []int{10, 11}, tagger.MacroGroups())
	assert.True(t, tagger.Covers(day("2025-01-15")))
}

func TestTagUnknownMacro(t *testing.T) {
	tagger := NewTagger([]Range{{RegimeID: 7, Start: day("2025-01-01"), End: day("2025-12-31")}}, nil)
	rows := []contracts.FeatureRow{{Symbol: "A", Date: day("2025-05-05")}}

	assert.Equal(t, 0, tagger.Tag(rows, day("2025-12-31")))
	require.NotNil(t, rows[0].Regime)
	assert.Nil(t, rows[0].Macro)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"missing column", func() error {
			_, err := ParseRegimes(strings.NewReader("regime_id,start_date\n1,2024-01-01\n"), "r.csv")
			return err
		}},
		{"bad date", func() error {
			_, err := ParseRegimes(strings.NewReader("regime_id,start_date,end_date\n1,soon,2024-01-01\n"), "r.csv")
			return err
		}},
		{"end before start", func() error {
			_, err := ParseRegimes(strings.NewReader("regime_id,start_date,end_date\n1,2024-02-01,2024-01-01\n"), "r.csv")
			return err
		}},
		{"fractional macro", func() error {
			_, err := ParseMacroMap(strings.NewReader("regime_id,macro_group\n1,2.5\n"), "m.csv")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrDataIntegrity))
		})
	}
}

func TestLoadTagger(t *testing.T) {
	dir := t.TempDir()
	rp := filepath.Join(dir, "regimes_from_breakpoints.csv")
	mp := filepath.Join(dir, "regime_to_macro_mapping.csv")
	require.NoError(t, os.WriteFile(rp, []byte(regimesCSV), 0o644))
	require.NoError(t, os.WriteFile(mp, []byte(macroCSV), 0o644))

	tagger, err := LoadTagger(rp, mp)
	require.NoError(t, err)
	m, ok := tagger.Macro(1)
	assert.True(t, ok)
	assert.Equal(t, 11, m)

	_, err = LoadTagger(filepath.Join(dir, "missing.csv"), mp)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
