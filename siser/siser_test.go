package siser

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestRecordMarshal(t *testing.T) {
	var r Record
	assert.NoError(t, r.Write("req", "POST / 200", "ipaddr", "1.2.3.4"))
	assert.NoError(t, r.WriteNonEmpty("host", "", "ua", "curl"))
	assert.Error(t, r.Write("odd"))
	exp := "req: POST / 200\nipaddr: 1.2.3.4\nua: curl\n"
	assert.Equal(t, exp, string(r.Marshal()))

	r.Reset()
	long := strings.Repeat("a", 130)
	assert.NoError(t, r.Write("msg", "line1\nline2", "long", long))
	exp = "msg:+11\nline1\nline2\nlong:+130\n" + long + "\n"
	assert.Equal(t, exp, string(r.Marshal()))
}

func TestMarshalLine(t *testing.T) {
	tm := time.UnixMilli(1700000000123)
	got := MarshalLine("httplog", tm, []byte("a: b\n"), nil)
	assert.Equal(t, "--- 5 1700000000123 httplog\na: b\n", string(got))

	got = MarshalLine("", time.Time{}, []byte("no newline"), nil)
	assert.Equal(t, "--- 10\nno newline\n", string(got))

	got = MarshalLine("empty", time.Time{}, nil, nil)
	assert.Equal(t, "--- 0 empty\n", string(got))
}

func TestWriterWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var r Record
	r.Name = "event"
	r.Timestamp = time.UnixMilli(42)
	assert.NoError(t, r.Write("k", "v"))
	_, err := w.WriteRecord(&r)
	assert.NoError(t, err)
	assert.Equal(t, "--- 5 42 event\nk: v\n", buf.String())
	// record is reset after writing
	assert.Equal(t, 0, len(r.Marshal()))
	assert.Equal(t, "", r.Name)

	buf.Reset()
	w.NoTimestamp = true
	_, err = w.Write([]byte("x\n"), time.Now(), "n")
	assert.NoError(t, err)
	assert.Equal(t, "--- 2 n\nx\n", buf.String())
}
