package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeField(t *testing.T) {
	assert.Equal(t, "plain", EscapeField("plain"))
	assert.Equal(t, " leading space", EscapeField(" leading space"))
	assert.Equal(t, `"Intro, ""Basics"""`, EscapeField(`Intro, "Basics"`))
	assert.Equal(t, "\"two\nlines\"", EscapeField("two\nlines"))
	assert.Equal(t, "\"cr\rhere\"", EscapeField("cr\rhere"))
	assert.Equal(t, "", EscapeField(""))
}

func TestCSVRenderJoinsWithNewline(t *testing.T) {
	data := Dataset{
		Headers: []string{"Code", "Title", "Credits", "Status"},
		Rows: [][]string{
			{"CS101", `Intro, "Basics"`, "3", "Active"},
			{"HIST200", "World History", "4", "Inactive"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Code,Title,Credits,Status\nCS101,\"Intro, \"\"Basics\"\"\",3,Active\nHIST200,World History,4,Inactive", string(out))
}

func TestCSVRenderEmptyCollectionIsHeaderOnly(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{Headers: []string{"Email", "Name"}})
	require.NoError(t, err)
	assert.Equal(t, "Email,Name", string(out))
}

func TestCSVRenderRejectsRaggedRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"A", "B"}, Rows: [][]string{{"1"}}})
	require.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVRoundTripThroughReader(t *testing.T) {
	data := Dataset{
		Headers: []string{"Title"},
		Rows:    [][]string{{`Intro, "Basics"`}, {"multi\nline"}},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	records, err := ReadCSV(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Title"}, {`Intro, "Basics"`}, {"multi\nline"}}, records)
}

func TestReadCSVKeepsRaggedRows(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("a,b\n1\n2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1"}, {"2", "3", "4"}}, records)
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 34, 56, 789000000, time.UTC)
	assert.Equal(t, "students-2024-05-01T12-34.csv", Filename("students", FormatCSV, at))

	local := time.Date(2024, 5, 1, 14, 34, 0, 0, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "courses-2024-05-01T12-34.pdf", Filename("courses", FormatPDF, local))
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatCSV, f)

	f, ok = ParseFormat(" PDF ")
	assert.True(t, ok)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, ok = ParseFormat("xlsx")
	assert.False(t, ok)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Dataset{
		Title:   "Students",
		Headers: []string{"Email", "Name"},
		Rows:    [][]string{{"alice@example.com", "Alice"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
