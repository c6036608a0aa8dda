package dataset

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Year,Jan,Feb,Mar,April,May,June,July,Aug,Sept,Oct,Nov,Dec,Total\n"

func TestLoad_OriginalHeader(t *testing.T) {
	csv := header +
		"1901,0,1.5,2,3,4,100,150,200,120,60,10,0,651.5\n" +
		"1902,1,2,3,4,5,110,160,210,130,70,11,1,707\n"

	ds, err := Load(strings.NewReader(csv))
	require.NoError(t, err)

	records := ds.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1901, records[0].Year)
	assert.InDelta(t, 1.5, records[0].Months[1], 1e-9)
	assert.InDelta(t, 120.0, records[0].Months[8], 1e-9) // Sept
	assert.InDelta(t, 707.0, records[1].Total, 1e-9)

	assert.Equal(t, Summary{FirstYear: 1901, LastYear: 1902, Years: 2, Months: 24}, ds.Summary())

	series, err := ds.Series()
	require.NoError(t, err)
	assert.Equal(t, 24, series.Len())
	assert.Equal(t, time.Date(1902, time.December, 1, 0, 0, 0, 0, time.UTC), series.LastMonth())
}

func TestLoad_ColumnOrderAndCase(t *testing.T) {
	csv := "total,DECEMBER,november,october,september,august,july,june,may,april,march,february,january,year\n" +
		"78,12,11,10,9,8,7,6,5,4,3,2,1,1950\n"

	ds, err := Load(strings.NewReader(csv))
	require.NoError(t, err)

	rec := ds.Records()[0]
	assert.Equal(t, 1950, rec.Year)
	for m := 0; m < 12; m++ {
		assert.InDelta(t, float64(m+1), rec.Months[m], 1e-9)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{"empty", "", "empty"},
		{"missing year column", "Jan,Feb,Mar,April,May,June,July,Aug,Sept,Oct,Nov,Dec,Total\n", "Year"},
		{"missing total column", "Year,Jan,Feb,Mar,April,May,June,July,Aug,Sept,Oct,Nov,Dec\n", "Total"},
		{"missing month column", "Year,Jan,Feb,Mar,April,May,June,July,Aug,Sept,Oct,Nov,Total\n", "December"},
		{"missing cell", header + "1901,0,1,2,3,4,5,6,7,8,9,10,,55\n", "missing value"},
		{"bad number", header + "1901,0,1,2,3,4,5,6,7,8,9,10,x,55\n", "invalid value"},
		{"bad year", header + "19x1,0,1,2,3,4,5,6,7,8,9,10,11,66\n", "invalid Year"},
		{"year gap", header + "1901,0,1,2,3,4,5,6,7,8,9,10,11,66\n1903,0,1,2,3,4,5,6,7,8,9,10,11,66\n", "consecutive"},
		{"negative", header + "1901,0,-1,2,3,4,5,6,7,8,9,10,11,66\n", "negative"},
		{"header only", header, "no rainfall records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecords_ReturnsCopy(t *testing.T) {
	ds, err := Load(strings.NewReader(header + "1901,0,1,2,3,4,5,6,7,8,9,10,11,66\n"))
	require.NoError(t, err)

	recs := ds.Records()
	recs[0].Months[0] = 999

	assert.InDelta(t, 0.0, ds.Records()[0].Months[0], 1e-9)
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile("does-not-exist.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open dataset")
}

func TestParse_LeavesRangeChecksToNew(t *testing.T) {
	csv := header +
		"1901,0,-1,2,3,4,5,6,7,8,9,10,11,64\n" +
		"1905,0,1,2,3,4,5,6,7,8,9,10,11,66\n"

	records, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1905, records[1].Year)

	_, err = New(records)
	require.Error(t, err)
}

func TestLoadFile_SampleData(t *testing.T) {
	ds, err := LoadFile("../../data/hyd-monthly-rains.csv")
	require.NoError(t, err)

	sum := ds.Summary()
	assert.Equal(t, 1901, sum.FirstYear)
	assert.Equal(t, 2021, sum.LastYear)
	assert.Equal(t, sum.Years*12, sum.Months)
}
