package mupdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
)

const samplePage = `<div id="page0" style="width:720pt;height:540pt">
<p style="top:40pt;left:36pt"><span style="font-size:28pt">Team   Apollo</span></p>
<p style="top:90pt;left:36pt"><span>Problem:</span> <span>late deliveries</span></p>
<p style="top:120pt;left:36pt"><span>   </span></p>
<img style="top:200pt" src="data:image/png;base64,AAAA" alt="Architecture diagram">
<img style="top:300pt" src="data:image/png;base64,BBBB">
<table><tr><th>Metric</th><th>Value</th></tr><tr><td>Users</td><td>1,200</td></tr></table>
</div>`

func TestParsePageHTML(t *testing.T) {
	els, err := parsePageHTML(3, samplePage)
	require.NoError(t, err)
	require.Len(t, els, 5)

	for _, el := range els {
		assert.Equal(t, 3, el.PageNo())
	}

	assert.Equal(t, extract.Text{Page: 3, Content: "Team Apollo"}, els[0])
	assert.Equal(t, extract.Text{Page: 3, Content: "Problem: late deliveries"}, els[1])
	assert.Equal(t, extract.KindPicture, els[2].Kind())
	assert.Equal(t, extract.KindPicture, els[3].Kind())
	assert.Equal(t, extract.Table{Page: 3, Rows: [][]string{{"Metric", "Value"}, {"Users", "1,200"}}}, els[4])

	records := extract.BuildPageRecords(&extract.Document{Pages: 3, Elements: els})
	p := records[2]
	assert.Equal(t, 2, p.ElementCounts.TextBlocks)
	assert.Equal(t, 1, p.ElementCounts.Tables)
	assert.Equal(t, 1, p.ElementCounts.Pictures)
	require.NotNil(t, p.ImagesOCRText)
	assert.Equal(t, "Architecture diagram", *p.ImagesOCRText)
}

func TestParsePageHTML_Empty(t *testing.T) {
	els, err := parsePageHTML(1, "")
	require.NoError(t, err)
	assert.Empty(t, els)
}
