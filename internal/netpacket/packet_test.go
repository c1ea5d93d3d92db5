package netpacket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesListLenAndLength(t *testing.T) {
	p := New(NetHeader{FromSys: 1, MainType: MainTypeEmail}, []uint16{2, 3}, []byte("hello"))
	assert.EqualValues(t, 2, p.Header.ListLen)
	assert.EqualValues(t, 5, p.Header.Length)
	assert.EqualValues(t, NoNode, p.Header.ToSys)
}

func TestValidateRejectsMismatchedLengths(t *testing.T) {
	p := Packet{Header: NetHeader{Length: 10}, Text: []byte("short")}
	assert.Error(t, p.Validate())
}

func TestValidateRejectsListAddressedWithToSys(t *testing.T) {
	p := Packet{Header: NetHeader{ToSys: 5, ListLen: 1}, List: []uint16{9}}
	assert.Error(t, p.Validate())
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	orig := New(NetHeader{FromSys: 1, ToUser: 7, MainType: MainTypePost, Daten: 12345, Method: 1}, []uint16{10, 20}, []byte("payload"))

	data, err := orig.MarshalBinary()
	require.NoError(t, err)

	var got Packet
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, orig.Header, got.Header)
	assert.Equal(t, orig.List, got.List)
	assert.Equal(t, orig.Text, got.Text)
}

func TestDeletedReportsTombstone(t *testing.T) {
	p := Packet{Header: NetHeader{MainType: MainTypeDead}}
	assert.True(t, p.Deleted())
}

func TestParseAndBuildPostRoundTrip(t *testing.T) {
	text := Build(MainTypePost, 0, ParsedText{
		Title:  "hello world",
		Sender: "Sysop",
		Date:   "Mon Jan  2 15:04:05 2006",
		Body:   []byte("the body"),
	})

	parsed, err := Parse(MainTypePost, 0, text)
	require.NoError(t, err)
	assert.Equal(t, "hello world", parsed.Title)
	assert.Equal(t, "Sysop", parsed.Sender)
	assert.Equal(t, "Mon Jan  2 15:04:05 2006", parsed.Date)
	assert.Equal(t, "the body", string(parsed.Body))
	assert.Empty(t, parsed.Subtype)
}

func TestParseAndBuildNewPostRoundTrip(t *testing.T) {
	text := Build(MainTypeNewPost, 0, ParsedText{
		Subtype: "GENERAL",
		Title:   "hello world",
		Sender:  "Sysop",
		Date:    "Mon Jan  2 15:04:05 2006",
		Body:    []byte("the body"),
	})

	parsed, err := Parse(MainTypeNewPost, 0, text)
	require.NoError(t, err)
	assert.Equal(t, "GENERAL", parsed.Subtype)
	assert.Equal(t, "hello world", parsed.Title)
	assert.Equal(t, "Sysop", parsed.Sender)
	assert.Equal(t, "the body", string(parsed.Body))
}

func TestParseAndBuildEmailRoundTrip(t *testing.T) {
	text := Build(MainTypeEmail, 0, ParsedText{
		Title:  "subject line",
		Sender: "Alice",
		Date:   "Mon Jan  2 15:04:05 2006",
		Body:   []byte("email body"),
	})

	parsed, err := Parse(MainTypeEmail, 0, text)
	require.NoError(t, err)
	assert.Equal(t, "subject line", parsed.Title)
	assert.Equal(t, "Alice", parsed.Sender)
	assert.Equal(t, "email body", string(parsed.Body))
}

func TestParseAndBuildNetInfoFileRoundTrip(t *testing.T) {
	text := Build(MainTypeNetInfo, MinorTypeFile, ParsedText{
		NetInfoFlags:    NetInfoOverwrite,
		NetInfoBasename: "bbslist",
		Body:            []byte("node data"),
	})

	parsed, err := Parse(MainTypeNetInfo, MinorTypeFile, text)
	require.NoError(t, err)
	assert.Equal(t, uint16(NetInfoOverwrite), parsed.NetInfoFlags)
	assert.Equal(t, "bbslist", parsed.NetInfoBasename)
	assert.Equal(t, "node data", string(parsed.Body))
}

func TestParseRejectsMissingTerminator(t *testing.T) {
	_, err := Parse(MainTypeEmail, 0, []byte("no nul here"))
	assert.Error(t, err)
}

func TestPrependRouteIsIdempotent(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body := []byte("the message")
	once := PrependRoute(body, "5.0", "fsxnet", 1, when)
	twice := PrependRoute(once, "5.0", "fsxnet", 1, when)
	assert.Equal(t, once, twice)
}

func TestPrependRouteAddsDistinctHops(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body := []byte("the message")
	afterFirstHop := PrependRoute(body, "5.0", "fsxnet", 1, when)
	afterSecondHop := PrependRoute(afterFirstHop, "5.0", "fsxnet", 2, when)
	assert.NotEqual(t, afterFirstHop, afterSecondHop)
	assert.Contains(t, string(afterSecondHop), "->2\r\n")
}

func TestPrependRouteSkipsWhenOverBudget(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body := make([]byte, maxRoutedBodySize)
	out := PrependRoute(body, "5.0", "fsxnet", 9, when)
	assert.Equal(t, body, out)
}
