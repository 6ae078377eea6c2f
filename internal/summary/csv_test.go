package summary

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `repo_name,display_name,prs_opened,prs_merged,issues_ready_for_qa,issues_qa_completed,days_since_last_release,fetched_at
org/api,API,12,10,3,2,5,2025-06-15T00:00:00Z
org/web,Web,4,x,1,,,2025-06-15T00:00:00Z
org/cli,CLI,1,1
`

func TestParse(t *testing.T) {
	rows, err := Parse(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	api := rows[0]
	assert.Equal(t, "org/api", api.RepoName)
	assert.Equal(t, "API", api.DisplayName)
	assert.Equal(t, 12, api.PRsOpened)
	assert.Equal(t, 10, api.PRsMerged)
	require.NotNil(t, api.DaysSinceLastRelease)
	assert.Equal(t, 5, *api.DaysSinceLastRelease)
	assert.Equal(t, "2025-06-15T00:00:00Z", api.FetchedAt)

	web := rows[1]
	assert.Equal(t, 0, web.PRsMerged, "malformed integers default to 0")
	assert.Equal(t, 0, web.IssuesQACompleted, "blank integers default to 0")
	assert.Nil(t, web.DaysSinceLastRelease, "blank release age is absent")

	cli := rows[2]
	assert.Equal(t, 1, cli.PRsMerged)
	assert.Equal(t, 0, cli.IssuesReadyForQA, "short rows are padded")
	assert.Empty(t, cli.FetchedAt)
}

func TestParse_MissingColumn(t *testing.T) {
	doc := "repo_name,prs_merged,issues_ready_for_qa,issues_qa_completed,extra\n" +
		"org/api,7,2,1,ignored\n" +
		"org/web,3,0,4,ignored\n"

	rows, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].PRsOpened)
	assert.Nil(t, rows[0].DaysSinceLastRelease)

	totals := Sum(rows)
	assert.Equal(t, Totals{PRsOpened: 0, PRsMerged: 10, IssuesReadyForQA: 2, IssuesQACompleted: 5}, totals)
}

func TestParse_HeaderOrderIndependent(t *testing.T) {
	doc := "fetched_at,prs_opened,repo_name\nyesterday,9,org/api\n"
	rows, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "org/api", rows[0].RepoName)
	assert.Equal(t, 9, rows[0].PRsOpened)
	assert.Equal(t, "yesterday", rows[0].FetchedAt)
}

func TestParse_EmptyDocument(t *testing.T) {
	rows, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestWrite(t *testing.T) {
	days := 3
	rows := []Row{
		{RepoName: "org/api", DisplayName: "API", PRsOpened: 2, PRsMerged: 1, DaysSinceLastRelease: &days, FetchedAt: "now"},
		{RepoName: "org/web", DisplayName: "Web"},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.Equal(t, "org/api,API,2,1,0,0,3,now", lines[1])
	assert.Equal(t, "org/web,Web,0,0,0,0,,", lines[2])

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)
}
