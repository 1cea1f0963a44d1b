package dataset

import (
	"bytes"
	"strings"
	"testing"

	"txtinspect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	input := "id,text,sentiment,topics\n" +
		"1,hello world,pos,sports\n" +
		"2,\"quoted, text\",neg,tech\n"

	ds, stats, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "text", "sentiment", "topics"}, ds.Columns)
	assert.Equal(t, []string{"id"}, ds.ExtraColumns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, models.Record{Text: "hello world", Sentiment: "pos", Topics: "sports", Extra: []string{"1"}}, ds.Records[0])
	assert.Equal(t, "quoted, text", ds.Records[1].Text)
	assert.Equal(t, 2, stats.Rows)
	assert.Zero(t, stats.DroppedRows)
}

func TestLoadDropsIllFormedBytes(t *testing.T) {
	input := []byte("text,sentiment,topics\ncaf\xe9 au lait,pos,food\n")

	ds, _, err := Load(bytes.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "caf au lait", ds.Records[0].Text)
}

func TestLoadLenientRows(t *testing.T) {
	input := "text,sentiment,topics\n" +
		"short,pos\n" +
		"too,many,fields,here\n" +
		"ok,neg,tech\n"

	ds, stats, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	assert.Equal(t, models.Record{Text: "short", Sentiment: "pos", Topics: ""}, ds.Records[0])
	assert.Equal(t, "ok", ds.Records[1].Text)
	assert.Equal(t, 1, stats.DroppedRows)
	assert.Equal(t, 1, stats.PaddedRows)
}

func TestLoadMissingColumn(t *testing.T) {
	_, _, err := Load(strings.NewReader("text,sentiment\na,pos\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "topics")

	_, _, err = Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestWriteRoundTripKeepsColumnOrder(t *testing.T) {
	input := "topics,text,note,sentiment\n" +
		"sports,a,x,pos\n" +
		"tech,\"b, with comma\",y,neg\n"

	ds, _, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	out, err := Encode(ds)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestWriteHasNoIndexColumn(t *testing.T) {
	ds := &models.Dataset{
		Columns: []string{"text", "sentiment", "topics"},
		Records: []models.Record{{Text: "b", Sentiment: "neg", Topics: "tech"}},
	}

	out, err := Encode(ds)
	require.NoError(t, err)
	assert.Equal(t, "text,sentiment,topics\nb,neg,tech\n", string(out))
}

func TestNormalizeHeaders(t *testing.T) {
	got := NormalizeHeaders([]string{"\ufefftext", "", "text", " sentiment ", "text", "  "})
	assert.Equal(t, []string{"text", "Unnamed: 1", "text.1", " sentiment ", "text.2", "Unnamed: 5"}, got)
}

func TestLoadPaddedHeaderExportsSourceNames(t *testing.T) {
	input := "\" text \",\" sentiment \",topics,text\n" +
		"a,pos,sports,dup\n"

	ds, _, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"text", "sentiment", "topics", "text"}, ds.Columns)
	assert.Equal(t, []string{"text"}, ds.ExtraColumns)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, models.Record{Text: "a", Sentiment: "pos", Topics: "sports", Extra: []string{"dup"}}, ds.Records[0])

	out, err := Encode(ds)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))

	out, err = Encode(ds.Clone())
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}
