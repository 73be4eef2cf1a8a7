package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPreset_FallbackAndCaseInsensitive(t *testing.T) {
	r := &Rules{Presets: map[string]Preset{
		"Default": {Calendar: &CalendarPage{Item: ".i"}},
		"jbis":    {Calendar: &CalendarPage{Item: ".j"}},
	}}
	p, ok := r.GetPreset("JBIS")
	require.True(t, ok)
	require.Equal(t, ".j", p.Calendar.Item)

	p, ok = r.GetPreset("DEFAULT")
	require.True(t, ok)
	require.Equal(t, ".i", p.Calendar.Item)

	_, ok = (&Rules{}).GetPreset("jbis")
	require.False(t, ok)
	var nilRules *Rules
	_, ok = nilRules.GetPreset("jbis")
	require.False(t, ok)
}

func TestLoad_ShippedRulesAreValid(t *testing.T) {
	r, err := Load(filepath.Join("..", "..", "rules.yaml"))
	require.NoError(t, err)
	p, ok := r.GetPreset("jbis")
	require.True(t, ok)
	require.NoError(t, p.Validate())
	require.Equal(t, "td.name a@href", p.RaceList.Link)
	require.Equal(t, "h1 .date", p.RaceResult.Page.Date)
}

func TestValidate_ReportsMissingPages(t *testing.T) {
	err := Preset{DateLayouts: []string{"2006-01-02"}}.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "calendar")
	require.Contains(t, err.Error(), "horse")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}
