package attendance

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCSV(t *testing.T) {
	groups, _ := GroupByDate(sampleRecords())
	out := ToCSV(groups)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, ReportHeader, lines[0])
	assert.Equal(t, `2024-03-01,"Ann",1,0,0,1,100.00%`, lines[1])
	assert.Equal(t, `2024-03-01,"Ben",1,0,0,1,100.00%`, lines[2])
	assert.Equal(t, `2024-03-02,"Ann",1,0,0,1,100.00%`, lines[3])
}

func TestToCSVHeaderOnly(t *testing.T) {
	assert.Equal(t, ReportHeader+"\n", ToCSV(nil))
}

func TestToCSVQuotesNames(t *testing.T) {
	groups := []DailyGroup{{Date: "2024-03-01", Students: []StudentSummary{
		{Name: `Ann "The Ace", Jr`, AttendedClasses: 1, TotalClasses: 1},
		{Name: "Zero", TotalClasses: 0},
	}}}
	lines := strings.Split(strings.TrimSuffix(ToCSV(groups), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `2024-03-01,"Ann ""The Ace"", Jr",1,0,0,1,100.00%`, lines[1])
	assert.Equal(t, `2024-03-01,"Zero",0,0,0,0,0%`, lines[2])
}

func TestToCSVPercentPrecision(t *testing.T) {
	groups := []DailyGroup{{Date: "2024-03-01", Students: []StudentSummary{
		{Name: "A", AttendedClasses: 2, TotalClasses: 3},
	}}}
	assert.Contains(t, ToCSV(groups), ",66.67%\n")
}

func TestWriteRecordsCSV(t *testing.T) {
	clock, odd := "09:30", `9,30 "am"`
	records := []Record{
		{Date: "2024-03-01", Time: &clock, StudentName: "Ann", StudentID: 1, CourseID: 5, AssistantID: 9},
		{Date: "2024-03-01", Time: &odd, StudentName: "Al", StudentID: 4, CourseID: 5, AssistantID: 9},
		{Date: "2024-03-02T14:05:00", StudentName: "Ben", StudentID: 2, CourseID: 5, AssistantID: 9},
		{Date: "2024-03-03", StudentName: "Cy", StudentID: 3, CourseID: 5},
	}
	var sb strings.Builder
	require.NoError(t, WriteRecordsCSV(&sb, records, "Go 101"))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, RecordsHeader, lines[0])
	assert.Equal(t, `"Ann",1,5,"Go 101",2024-03-01,"09:30",9`, lines[1])
	assert.Equal(t, `"Al",4,5,"Go 101",2024-03-01,"9,30 ""am""",9`, lines[2])
	assert.Equal(t, `"Ben",2,5,"Go 101",2024-03-02,"14:05:00",9`, lines[3])
	assert.Equal(t, `"Cy",3,5,"Go 101",2024-03-03,,0`, lines[4])
}

func TestFilenames(t *testing.T) {
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "attendance_course_12_2024-03-09.csv", ExportFilename(12, day))
	assert.Equal(t, "Go_101__Intro_Attendance_2024-03-09.csv", RecordsFilename("Go 101: Intro", day))
}
