// Package form turns a submitted form into a record and stores it.
//
// Columns are configured once, at startup, with [NewColumns]: a list of
// form-sourced columns (values taken from the submission) followed by
// auto-generated columns (values computed at write time, like a timestamp).
//
// [Handler.HandleSubmission] builds the record, writes the header if the
// store is new and appends the record. The outcome is a [Result], never a
// panic.
package form
