package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const listPage = `<html><body><table>
<tr class="athing" id="41001">
  <td class="title"><span class="titleline">
    <a href="https://blog.example.com/go-release">Go 1.24 released</a>
    <span class="sitebit comhead"> (<span class="sitestr">blog.example.com</span>)</span>
  </span></td>
</tr>
<tr><td class="subtext">
  <a href="user?id=alice" class="hnuser">alice</a>
  <span class="age" title="2024-05-06T12:00:00 1714996800"><a href="item?id=41001">2 hours ago</a></span>
  | <a href="hide?id=41001">hide</a>
  | <a href="item?id=41001">128&nbsp;comments</a>
</td></tr>
<tr class="spacer"></tr>
<tr class="athing" id="41002">
  <td class="title"><span class="titleline">
    <a href="item?id=41002">Ask: how do you test crawlers?</a>
  </span></td>
</tr>
<tr><td class="subtext">
  <a href="user?id=bob" class="hnuser">bob</a>
  <span class="age" title="2024-05-06T11:30:00 1714994600"><a href="item?id=41002">3 hours ago</a></span>
  | <a href="item?id=41002">discuss</a>
</td></tr>
</table></body></html>`

const bareListPage = `<html><body><table>
<tr class="athing" id="41003">
  <td class="title"><span class="titleline"><a href="https://example.org/post">Untracked post</a></span></td>
</tr>
<tr class="athing" id="41004">
  <td class="title"><span class="titleline"><a href="">   </a></span></td>
</tr>
</table></body></html>`

const threadPage = `<html><body><table>
<tr class="athing comtr" id="41101"><td>
  <a href="user?id=carol" class="hnuser">carol</a>
  <span class="age" title="2024-05-06T13:00:00 1715000400"><a href="item?id=41101">1 hour ago</a></span>
  <div class="commtext c00">Great writeup, thanks.</div>
</td></tr>
<tr class="athing comtr" id="41102"><td>
  <span class="age" title="not-a-timestamp"></span>
</td></tr>
</table></body></html>`

func TestParseArticleList(t *testing.T) {
	t.Parallel()

	records, err := ParseArticleList(listPage, "https://news.ycombinator.com/")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, "Go 1.24 released", first.Title)
	require.Equal(t, "https://blog.example.com/go-release", first.URL)
	require.Equal(t, "blog.example.com", first.Source)
	require.Equal(t, "alice", first.Author)
	require.Equal(t, "https://news.ycombinator.com/item?id=41001", first.CommentsURL)
	require.NotNil(t, first.PublishedDate)
	require.Equal(t,
		time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC),
		first.PublishedDate.UTC())

	second := records[1]
	require.Equal(t, "Ask: how do you test crawlers?", second.Title)
	require.Equal(t, "https://news.ycombinator.com/item?id=41002", second.URL)
	require.Empty(t, second.Source)
	require.Equal(t, "https://news.ycombinator.com/item?id=41002", second.CommentsURL)
}

func TestParseArticleListDegradesMissingFragments(t *testing.T) {
	t.Parallel()

	records, err := ParseArticleList(bareListPage, "https://news.ycombinator.com/")
	require.NoError(t, err)

	// The second row has no usable title link and is dropped; the first
	// keeps going with everything but the title and URL empty.
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, "Untracked post", rec.Title)
	require.Empty(t, rec.Author)
	require.Empty(t, rec.CommentsURL)
	require.Nil(t, rec.PublishedDate)
}

func TestParseComments(t *testing.T) {
	t.Parallel()

	comments, err := ParseComments(threadPage)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	require.Equal(t, "carol", comments[0].Author)
	require.Equal(t, "Great writeup, thanks.", comments[0].Text)
	require.NotNil(t, comments[0].PublishedDate)
	require.Equal(t,
		time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC),
		comments[0].PublishedDate.UTC())

	// Deleted comment row: placeholder author, empty body, bad timestamp.
	require.Equal(t, "Anonymous", comments[1].Author)
	require.Empty(t, comments[1].Text)
	require.Nil(t, comments[1].PublishedDate)
}

func TestParseAgeTitle(t *testing.T) {
	t.Parallel()

	ts := parseAgeTitle("2024-05-06T12:00:00 1714996800")
	require.NotNil(t, ts)
	require.Equal(t, time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC), ts.UTC())

	require.Nil(t, parseAgeTitle(""))
	require.Nil(t, parseAgeTitle("yesterday"))
}
