// Package csvstore is an append-only CSV file used as a record store.
//
// The first row of the file is a header with column names. Every
// following row is one record with values in the same order.
//
// # Basic Usage
//
//	s := csvstore.New("./data/data.csv")
//	err := s.EnsureHeader([]string{"name", "email", "timestamp"})
//	if err != nil {
//	    return err
//	}
//	err = s.AppendRow([]string{"Taro", "t@example.com", "2025-01-02 15:04:05"})
//
// The header is written only if the file doesn't exist or is empty. If the
// file already has content, its header is kept as-is even if it differs
// from the one passed in.
//
// Every call opens and closes the file, there is no long-lived handle.
//
// # Errors
//
// A failure to open or write the file is returned as [*WriteError].
// Invalid input (a row without fields) is [ErrEmptyRow].
//
// # Thread Safety
//
// Package-level functions do no locking. Methods of [Store] serialize
// writes to the file within a process. Nothing protects against
// other processes appending to the same file.
package csvstore
