package ffms

import (
	"crypto/sha1"
	"io"
	"os"
)

// DigestSize is the length of a source file digest.
const DigestSize = sha1.Size

const digestBlock = 1 << 20

// FileDigest hashes the first and the last MiB of path (each zero padded to a
// full MiB) and returns it with the file size. It identifies a source file
// cheaply enough to check on every index load.
func FileDigest(path string) (int64, [DigestSize]byte, error) {
	var sum [DigestSize]byte
	f, err := os.Open(path)
	if err != nil {
		return 0, sum, wrapError(KindOpen, "FileDigest", err, "cannot open source file")
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, sum, wrapError(KindOpen, "FileDigest", err, "cannot stat source file")
	}
	size := st.Size()

	h := sha1.New()
	buf := make([]byte, digestBlock)
	if err := readBlockAt(f, buf, 0); err != nil {
		return 0, sum, wrapError(KindOpen, "FileDigest", err, "cannot read source file")
	}
	h.Write(buf)

	tail := size - digestBlock
	if tail < 0 {
		tail = 0
	}
	clear(buf)
	if err := readBlockAt(f, buf, tail); err != nil {
		return 0, sum, wrapError(KindOpen, "FileDigest", err, "cannot read source file")
	}
	h.Write(buf)

	copy(sum[:], h.Sum(nil))
	return size, sum, nil
}

// readBlockAt fills buf from off, leaving the bytes past EOF untouched.
func readBlockAt(r io.ReaderAt, buf []byte, off int64) error {
	_, err := r.ReadAt(buf, off)
	if err == io.EOF {
		return nil
	}
	return err
}
