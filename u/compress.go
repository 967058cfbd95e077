package u

import (
	"io"
	"os"

	"github.com/andybalholm/brotli"
)

func getErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// BrCompressFile compresses path into dstPath. dstPath is removed on failure
func BrCompressFile(dstPath string, path string, level int) error {
	r, err := os.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	w := brotli.NewWriterLevel(f, level)
	_, err = io.Copy(w, r)
	err2 := w.Close()
	err3 := f.Close()
	if err = getErr(err, err2, err3); err != nil {
		os.Remove(dstPath)
		return err
	}
	return nil
}

func BrCompressFileBest(dstPath string, path string) error {
	return BrCompressFile(dstPath, path, brotli.BestCompression)
}
