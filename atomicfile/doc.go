/*
Package atomicfile writes a file so that readers see either the old
content or the complete new content, never a partially written file.

Data goes to a temporary file in the destination directory. Close()
syncs it and renames it over the destination. If any Write() failed,
or the file is abandoned with RemoveIfNotClosed(), the temporary file
is deleted and the destination is left untouched.

	func writeSnapshot(path string, r io.Reader) error {
		f, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		defer f.RemoveIfNotClosed()
		if _, err = io.Copy(f, r); err != nil {
			return err
		}
		return f.Close()
	}
*/
package atomicfile
