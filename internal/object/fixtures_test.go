// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package object

import (
	"debug/elf"
	"debug/pe"
	"encoding/binary"
)

// buildMinimalELF64 assembles a hand-built little-endian ELF64 relocatable
// object with a single ".text" section carrying code, classified with
// sectionFlags. It exists so Parse's ELF path, including elfSectionKind, can
// be exercised against real bytes rather than only the format-sniffing
// rejection paths.
func buildMinimalELF64(code []byte, sectionFlags elf.SectionFlag) []byte {
	const ehdrSize = 64
	const shdrSize = 64

	shstrtab := []byte("\x00.text\x00.shstrtab\x00")
	const textNameOff = 1
	const shstrtabNameOff = 7

	textOff := uint64(ehdrSize)
	shstrtabOff := textOff + uint64(len(code))
	shoff := shstrtabOff + uint64(len(shstrtab))
	if pad := shoff % 8; pad != 0 {
		shoff += 8 - pad
	}

	buf := make([]byte, shoff+3*shdrSize)

	// e_ident
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT

	le := binary.LittleEndian
	le.PutUint16(buf[16:], 1)                    // e_type = ET_REL
	le.PutUint16(buf[18:], uint16(elf.EM_X86_64)) // e_machine
	le.PutUint32(buf[20:], 1)                     // e_version
	le.PutUint64(buf[40:], shoff)                 // e_shoff
	le.PutUint16(buf[52:], ehdrSize)              // e_ehsize
	le.PutUint16(buf[58:], shdrSize)              // e_shentsize
	le.PutUint16(buf[60:], 3)                     // e_shnum
	le.PutUint16(buf[62:], 2)                     // e_shstrndx

	copy(buf[textOff:], code)
	copy(buf[shstrtabOff:], shstrtab)

	sh := func(i int) []byte { return buf[shoff+uint64(i)*shdrSize:] }

	// section 1: .text
	s1 := sh(1)
	le.PutUint32(s1[0:], textNameOff)
	le.PutUint32(s1[4:], uint32(elf.SHT_PROGBITS))
	le.PutUint64(s1[8:], uint64(sectionFlags))
	le.PutUint64(s1[16:], 0x1000) // sh_addr
	le.PutUint64(s1[24:], textOff)
	le.PutUint64(s1[32:], uint64(len(code)))
	le.PutUint64(s1[56:], 0)

	// section 2: .shstrtab
	s2 := sh(2)
	le.PutUint32(s2[0:], shstrtabNameOff)
	le.PutUint32(s2[4:], uint32(elf.SHT_STRTAB))
	le.PutUint64(s2[24:], shstrtabOff)
	le.PutUint64(s2[32:], uint64(len(shstrtab)))

	return buf
}

// buildMinimalMachO64 assembles a hand-built little-endian Mach-O 64-bit
// object file with a single __text section inside one LC_SEGMENT_64 load
// command, classified with sectionFlags.
func buildMinimalMachO64(code []byte, sectionFlags uint32) []byte {
	const headerSize = 32
	const segCmdSize = 72
	const sectSize = 80

	cmdsize := uint32(segCmdSize + sectSize)
	textOff := uint32(headerSize) + cmdsize
	buf := make([]byte, int(textOff)+len(code))
	le := binary.LittleEndian

	le.PutUint32(buf[0:], 0xfeedfacf) // Magic64
	le.PutUint32(buf[4:], 0x01000007) // CPU_TYPE_X86_64
	le.PutUint32(buf[8:], 3)          // CPU_SUBTYPE_X86_64_ALL
	le.PutUint32(buf[12:], 1)         // MH_OBJECT
	le.PutUint32(buf[16:], 1)         // ncmds
	le.PutUint32(buf[20:], cmdsize)   // sizeofcmds
	le.PutUint32(buf[24:], 0)         // flags
	le.PutUint32(buf[28:], 0)         // reserved

	seg := buf[headerSize:]
	le.PutUint32(seg[0:], 0x19) // LC_SEGMENT_64
	le.PutUint32(seg[4:], cmdsize)
	copy(seg[8:24], "__TEXT")
	le.PutUint64(seg[24:], 0x1000)            // vmaddr
	le.PutUint64(seg[32:], uint64(len(code))) // vmsize
	le.PutUint64(seg[40:], uint64(textOff))   // fileoff
	le.PutUint64(seg[48:], uint64(len(code))) // filesize
	le.PutUint32(seg[56:], 7)                 // maxprot
	le.PutUint32(seg[60:], 7)                 // initprot
	le.PutUint32(seg[64:], 1)                 // nsects
	le.PutUint32(seg[68:], 0)                 // flags

	sect := seg[segCmdSize:]
	copy(sect[0:16], "__text")
	copy(sect[16:32], "__TEXT")
	le.PutUint64(sect[32:], 0x1000)            // addr
	le.PutUint64(sect[40:], uint64(len(code))) // size
	le.PutUint32(sect[48:], textOff)           // offset
	le.PutUint32(sect[52:], 0)                 // align
	le.PutUint32(sect[56:], 0)                 // reloff
	le.PutUint32(sect[60:], 0)                 // nreloc
	le.PutUint32(sect[64:], sectionFlags)      // flags

	copy(buf[textOff:], code)
	return buf
}

// buildMinimalPE assembles a hand-built PE/COFF object file with a single
// ".text" section, classified with characteristics. The optional header is
// omitted (SizeOfOptionalHeader=0), which debug/pe accepts.
func buildMinimalPE(code []byte, characteristics uint32) []byte {
	const dosHeaderSize = 96
	const coffHeaderSize = 20
	const sectionHeaderSize = 40

	sigOff := uint32(dosHeaderSize)
	fileHeaderOff := sigOff + 4
	sectionHeaderOff := fileHeaderOff + coffHeaderSize
	textOff := sectionHeaderOff + sectionHeaderSize

	buf := make([]byte, int(textOff)+len(code))
	le := binary.LittleEndian

	buf[0], buf[1] = 'M', 'Z'
	le.PutUint32(buf[0x3c:], sigOff)
	copy(buf[sigOff:], []byte("PE\x00\x00"))

	fh := buf[fileHeaderOff:]
	le.PutUint16(fh[0:], pe.IMAGE_FILE_MACHINE_AMD64)
	le.PutUint16(fh[2:], 1) // NumberOfSections

	sh := buf[sectionHeaderOff:]
	copy(sh[0:8], ".text")
	le.PutUint32(sh[8:], uint32(len(code)))  // VirtualSize
	le.PutUint32(sh[12:], 0x1000)            // VirtualAddress
	le.PutUint32(sh[16:], uint32(len(code))) // SizeOfRawData
	le.PutUint32(sh[20:], textOff)           // PointerToRawData
	le.PutUint32(sh[36:], characteristics)   // Characteristics

	copy(buf[textOff:], code)
	return buf
}
