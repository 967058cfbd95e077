package siser

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

/*
Record is a list of key/value pairs serialized in a human-readable,
line-oriented format:

	key: value

A value that has a newline or is longer than maxInlineValueLen is written as:

	key:+$len
	value
*/
type Record struct {
	buf  bytes.Buffer
	Name string
	// when writing, if zero we use current time
	Timestamp time.Time
}

const maxInlineValueLen = 120

func serializableOnLine(s string) bool {
	if len(s) > maxInlineValueLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b < 32 || b > 127 {
			return false
		}
	}
	return true
}

func (r *Record) marshalKeyVal(k, v string) {
	r.buf.WriteString(k)
	if serializableOnLine(v) {
		r.buf.WriteString(": ")
		r.buf.WriteString(v)
		r.buf.WriteByte('\n')
		return
	}
	r.buf.WriteString(":+")
	r.buf.WriteString(strconv.Itoa(len(v)))
	r.buf.WriteByte('\n')
	r.buf.WriteString(v)
	r.buf.WriteByte('\n')
}

// Write adds key/value pairs to the record
func (r *Record) Write(args ...string) error {
	n := len(args)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("invalid number of args: %d. Should be multiple of 2", n)
	}
	for i := 0; i < n; i += 2 {
		r.marshalKeyVal(args[i], args[i+1])
	}
	return nil
}

// WriteNonEmpty is like Write but skips pairs with empty value
func (r *Record) WriteNonEmpty(args ...string) error {
	n := len(args)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("invalid number of args: %d. Should be multiple of 2", n)
	}
	for i := 0; i < n; i += 2 {
		if args[i+1] != "" {
			r.marshalKeyVal(args[i], args[i+1])
		}
	}
	return nil
}

// Marshal returns serialized record, valid until next Reset() or Write()
func (r *Record) Marshal() []byte {
	return r.buf.Bytes()
}

// Reset makes the record re-usable
func (r *Record) Reset() {
	r.buf.Reset()
	r.Name = ""
	r.Timestamp = time.Time{}
}
