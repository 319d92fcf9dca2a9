package infra

import (
	"encoding/binary"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// PE header layout.
const (
	peOffsetField   = 0x3C
	machineAMD64    = 0x8664
	machineI386     = 0x014c
	maxHeaderOffset = 64 * 1024
)

// BinaryInspectorImpl implements domain.BinaryInspector by reading PE headers.
type BinaryInspectorImpl struct {
	fs domain.FileSystem
}

// NewBinaryInspector creates a new binary inspector.
func NewBinaryInspector(fs domain.FileSystem) *BinaryInspectorImpl {
	if fs == nil {
		fs = NewFileSystem()
	}
	return &BinaryInspectorImpl{fs: fs}
}

// Bitness reads the MZ magic, follows e_lfanew to the "PE\0\0" signature and
// classifies the COFF machine field. Any failure yields unknown.
func (bi *BinaryInspectorImpl) Bitness(path string) domain.Bitness {
	if path == "" {
		return domain.BitnessUnknown
	}
	f, err := os.Open(bi.fs.ExpandHome(path))
	if err != nil {
		return domain.BitnessUnknown
	}
	defer f.Close()
	return readBitness(f)
}

func readBitness(r io.ReaderAt) domain.Bitness {
	var dos [peOffsetField + 4]byte
	if _, err := r.ReadAt(dos[:], 0); err != nil {
		return domain.BitnessUnknown
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		return domain.BitnessUnknown
	}

	offset := binary.LittleEndian.Uint32(dos[peOffsetField:])
	if offset == 0 || offset > maxHeaderOffset {
		return domain.BitnessUnknown
	}

	var nt [6]byte
	if _, err := r.ReadAt(nt[:], int64(offset)); err != nil {
		return domain.BitnessUnknown
	}
	if nt[0] != 'P' || nt[1] != 'E' || nt[2] != 0 || nt[3] != 0 {
		return domain.BitnessUnknown
	}

	switch binary.LittleEndian.Uint16(nt[4:]) {
	case machineAMD64:
		return domain.BitnessX64
	case machineI386:
		return domain.BitnessX86
	default:
		return domain.BitnessUnknown
	}
}

var (
	bits64Token = regexp.MustCompile(`(?i)x64|64`)
	bits32Token = regexp.MustCompile(`(?i)x86|32`)
)

// SiblingPath swaps bitness tokens (x64<->x86, 64<->32) in the tool's directory
// and file name. Returns "" when nothing changes or the result does not exist.
func (bi *BinaryInspectorImpl) SiblingPath(basePath string, target domain.Bitness) string {
	if basePath == "" || target == domain.BitnessUnknown {
		return ""
	}
	base := bi.fs.ExpandHome(basePath)

	var from *regexp.Regexp
	var swap func(string) string
	switch target {
	case domain.BitnessX86:
		from = bits64Token
		swap = func(tok string) string {
			if strings.EqualFold(tok, "x64") {
				return keepCase(tok, "x86")
			}
			return "32"
		}
	case domain.BitnessX64:
		from = bits32Token
		swap = func(tok string) string {
			if strings.EqualFold(tok, "x86") {
				return keepCase(tok, "x64")
			}
			return "64"
		}
	default:
		return ""
	}

	prefix, tail := splitTail(base, 2)
	derived := prefix + from.ReplaceAllStringFunc(tail, swap)
	if derived == base || !bi.fs.Exists(derived) {
		return ""
	}
	return derived
}

// splitTail cuts path before its last n elements.
func splitTail(path string, n int) (prefix, tail string) {
	cut := len(path)
	for i := 0; i < n; i++ {
		idx := strings.LastIndexAny(path[:cut], `/\`)
		if idx < 0 {
			return "", path
		}
		cut = idx
	}
	return path[:cut], path[cut:]
}

func keepCase(src, repl string) string {
	if strings.ToUpper(src) == src {
		return strings.ToUpper(repl)
	}
	return repl
}

// Ensure BinaryInspectorImpl implements domain.BinaryInspector.
var _ domain.BinaryInspector = (*BinaryInspectorImpl)(nil)
