package fixtures

import (
	"encoding/binary"
	"os"
)

// PE machine types written by WriteFakePE.
const (
	MachineI386  uint16 = 0x014c
	MachineAMD64 uint16 = 0x8664
)

// FakePE returns a minimal PE image: MZ header, e_lfanew at 0x3C, "PE\0\0" and
// the COFF machine field. Nothing else is valid.
func FakePE(machine uint16) []byte {
	const peOffset = 0x80
	buf := make([]byte, peOffset+24)
	buf[0], buf[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(buf[0x3C:], peOffset)
	copy(buf[peOffset:], []byte{'P', 'E', 0, 0})
	binary.LittleEndian.PutUint16(buf[peOffset+4:], machine)
	return buf
}

// WriteFakePE writes FakePE(machine) to path.
func WriteFakePE(path string, machine uint16) error {
	return os.WriteFile(path, FakePE(machine), 0755)
}
