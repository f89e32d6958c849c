package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleBulletin() Bulletin {
	return Bulletin{
		Region:       "Sub-Saharan Africa",
		GeneratedAt:  time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
		URLsAnalyzed: 7,
		Analysis: "Current Drought Conditions: Rainfall was 40% below average in Somalia.\n\n" +
			"Food Security and Production:\nHarvests in Kenya are delayed.\n\n" +
			"Water Resources: Reservoirs are low.\n\n" +
			"Food Prices: Maize prices rose in Malawi – up 12%.",
		Sources: []string{"https://fews.net/east-africa", "https://example.org/report.pdf"},
	}
}

func TestWrite_ProducesPDF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleBulletin()))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	require.Greater(t, buf.Len(), 500)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bulletin.pdf")
	require.NoError(t, WriteFile(path, sampleBulletin()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())

	err = WriteFile(filepath.Join(t.TempDir(), "missing", "bulletin.pdf"), sampleBulletin())
	require.Error(t, err)
}

func TestSplitHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line, header, rest string
		ok                 bool
	}{
		{"Current Drought Conditions: severe", "Current Drought Conditions", "severe", true},
		{"2. Water Resources:", "Water Resources", "", true},
		{"**Food Prices**: rising", "Food Prices", "rising", true},
		{"food security and production: mixed", "Food Security and Production", "mixed", true},
		{"Water Resources are low", "", "", false},
		{"Prices rose sharply.", "", "", false},
	}
	for _, tc := range cases {
		header, rest, ok := splitHeader(tc.line)
		require.Equal(t, tc.ok, ok, tc.line)
		require.Equal(t, tc.header, header, tc.line)
		require.Equal(t, tc.rest, rest, tc.line)
	}
}

func TestTitleDefaults(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Drought Bulletin: Global Overview", title(Bulletin{}))
	require.Equal(t, "Custom", title(Bulletin{Title: "Custom", Region: "South Asia"}))
}
