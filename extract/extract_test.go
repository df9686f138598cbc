package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		number   string
		title    string
	}{
		{
			name:     "organized archive convention",
			filename: "bylaw-4742-tree-protection.pdf",
			number:   "4742",
			title:    "tree protection",
		},
		{
			name:     "comma separated",
			filename: "4013, Animal Control Bylaw, 1999 (CONSOLIDATED)",
			number:   "4013",
			title:    "Animal Control Bylaw",
		},
		{
			name:     "space separated",
			filename: "4100 Street and Traffic Bylaw.pdf",
			number:   "4100",
			title:    "Street and Traffic Bylaw",
		},
		{
			name:     "prose style number only",
			filename: "Bylaw No. 4742.pdf",
			number:   "4742",
			title:    "",
		},
		{
			name:     "no pattern matches",
			filename: "meeting-minutes.pdf",
			number:   "",
			title:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)

			md := Extract(tt.filename, "")
			assert.Equal(tt.number, md.Number)
			assert.Equal(tt.title, md.Title)
		})
	}
}

func TestExtractConsolidated(t *testing.T) {
	assert := assert.New(t)

	md := Extract("4013, Animal Control Bylaw, 1999 (CONSOLIDATED)", "")
	assert.True(md.IsConsolidated)

	md = Extract("bylaw-4742-tree-protection.pdf", "")
	assert.False(md.IsConsolidated)
}

func TestExtractAmendedBylaws(t *testing.T) {
	assert := assert.New(t)

	text := `This bylaw was amended by Bylaw No. 4800 and later
amended by Bylaw No. 4912. Unrelated reference to Bylaw No. 4100.`

	md := Extract("bylaw-4742-tree-protection.pdf", text)
	assert.Equal([]string{"4800", "4912"}, md.AmendedBylaws)
}

func TestExtractDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		date string
	}{
		{
			name: "iso date",
			text: "Consolidated as of 2020-05-04 for convenience.",
			date: "2020-05-04",
		},
		{
			name: "long form",
			text: "Consolidated on May 4, 2020 by authority of Council.",
			date: "2020-05-04",
		},
		{
			name: "day first",
			text: "Enacted 4 May 2020.",
			date: "2020-05-04",
		},
		{
			name: "month year only",
			text: "Adopted in May 2020.",
			date: "2020-05-01",
		},
		{
			name: "first hit wins",
			text: "Consolidated 2020-05-04. Amended January 1, 2021.",
			date: "2020-05-04",
		},
		{
			name: "no date",
			text: "No dates here.",
			date: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := Extract("bylaw-1-x.pdf", tt.text)
			assert.Equal(t, tt.date, md.ConsolidatedDate)
		})
	}
}

func TestExtractStopsAtFirstFilenamePattern(t *testing.T) {
	assert := assert.New(t)

	// Matches both the organized and the prose pattern; the organized
	// pattern has priority and supplies the title.
	md := Extract("bylaw-4742-bylaw-no-4800.pdf", "")
	assert.Equal("4742", md.Number)
	assert.Equal("bylaw no 4800", md.Title)
}
