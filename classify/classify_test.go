package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeading(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		ok      bool
		section string
		title   string
	}{
		{
			name:    "numbered heading",
			text:    "5. Hours of Work\nNo person shall carry out construction...",
			ok:      true,
			section: "5",
			title:   "Hours of Work",
		},
		{
			name:    "subsection heading",
			text:    "5(7)(a) Construction Hours\nBetween the hours of 7:00 a.m...",
			ok:      true,
			section: "5(7)(a)",
			title:   "Construction Hours",
		},
		{
			name:    "section prefix",
			text:    "Section 12: Permit Fees\nEvery applicant shall pay...",
			ok:      true,
			section: "12",
			title:   "Permit Fees",
		},
		{
			name:    "part heading",
			text:    "Part IV - Enforcement\nAn officer may...",
			ok:      true,
			section: "Part IV",
			title:   "Enforcement",
		},
		{
			name:    "division heading",
			text:    "Division 3: Parking Restrictions\nNo vehicle shall...",
			ok:      true,
			section: "Division 3",
			title:   "Parking Restrictions",
		},
		{
			name:    "schedule heading",
			text:    "Schedule A: Fee Table\nTree removal permit...",
			ok:      true,
			section: "Schedule A",
			title:   "Fee Table",
		},
		{
			name:    "bare subsection number",
			text:    "5(7)(a) between the hours of 7:00 a.m. and 7:00 p.m.",
			ok:      true,
			section: "5(7)(a)",
		},
		{
			name: "no heading",
			text: "continuation of the previous provision without any marker",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)

			s, ok := Heading(tt.text)
			assert.Equal(tt.ok, ok)
			assert.Equal(tt.section, s.Number)
			assert.Equal(tt.title, s.Title)
		})
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		text     string
		category string
	}{
		{
			name:     "title beats body",
			title:    "Zoning Map Amendments",
			text:     "fees are payable to the building department",
			category: "zoning",
		},
		{
			name:     "body fallback",
			title:    "",
			text:     "no vehicle shall be parked on any highway",
			category: "traffic",
		},
		{
			name:     "ordered groups first hit wins",
			title:    "",
			text:     "construction near a water main requires a permit",
			category: "building",
		},
		{
			name:     "default",
			title:    "Interpretation",
			text:     "in this bylaw, the following definitions apply",
			category: "general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, Category(tt.title, tt.text))
		})
	}
}
