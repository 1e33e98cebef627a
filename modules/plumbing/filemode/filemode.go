// Package filemode defines the small, fixed set of tree-entry modes this
// repository understands: Regular, Executable, Symlink and Subtree.
package filemode

import (
	"fmt"
	"os"
	"strconv"
)

// FileMode mirrors a (small) subset of the Unix file mode bits, encoded in the
// octal-ASCII form tree entries use on the wire.
type FileMode uint32

const (
	sMask FileMode = 0170000
	sREG  FileMode = 0100000
	sDIR  FileMode = 0040000
	sLNK  FileMode = 0120000
)

const (
	Empty      FileMode = 0
	Dir        FileMode = sDIR
	Regular    FileMode = sREG | 0644
	Executable FileMode = sREG | 0755
	Symlink    FileMode = sLNK
	// Subtree is an alias for Dir, named to match the vocabulary of the tree
	// entry mode enumeration (Regular, Executable, Symlink, Subtree).
	Subtree = Dir
)

// New parses an octal-ASCII mode string, as found in a tree entry.
func New(s string) (FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("filemode: invalid mode %q: %w", s, err)
	}
	return FileMode(n), nil
}

func (m FileMode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

func (m FileMode) IsRegular() bool    { return m&sMask == sREG && m&0111 == 0 }
func (m FileMode) IsExecutable() bool { return m&sMask == sREG && m&0111 != 0 }
func (m FileMode) IsSymlink() bool    { return m&sMask == sLNK }
func (m FileMode) IsDir() bool        { return m&sMask == sDIR }

// ToOSFileMode converts to the nearest os.FileMode, for materializing a
// checkout onto a real filesystem.
func (m FileMode) ToOSFileMode() (os.FileMode, error) {
	switch {
	case m.IsDir():
		return os.ModeDir | 0755, nil
	case m.IsSymlink():
		return os.ModeSymlink | 0777, nil
	case m.IsExecutable():
		return 0755, nil
	case m.IsRegular():
		return 0644, nil
	default:
		return 0, fmt.Errorf("filemode: unsupported mode %s", m)
	}
}

// MarshalJSON / UnmarshalJSON keep FileMode a plain number on the wire.
func (m FileMode) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(m), 10)), nil
}

func (m *FileMode) UnmarshalJSON(b []byte) error {
	n, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return err
	}
	*m = FileMode(n)
	return nil
}
