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

// Package disasm adapts a per-ISA decoder and exposes the sequential and
// parallel region-split disassembly strategies of spec.md §4.2. The decode
// idiom (one source line maps to a block of instructions, unresolved bytes
// get a synthetic placeholder entry rather than aborting) is grounded in
// coprocessor/objdump/objdump.go's regex-driven resynchronisation against
// "objdump -S" output; this package resynchronises against DWARF line
// records instead of objdump text.
package disasm

import (
	"github.com/knightsc/gapstone"

	"github.com/nevakrien/sourceviewer/internal/object"
	"github.com/nevakrien/sourceviewer/internal/xerrors"
)

// unknownMnemonic is substituted whenever the decoder's own output is
// missing a mnemonic/operand pair, or when skip-data decoded a byte it
// could not identify (Capstone's own skip-data placeholder mnemonic is
// ".byte"; spec.md calls for the literal "unknown" instead).
const unknownMnemonic = "unknown"

// newEngine builds a Capstone decoder for arch, detail disabled and
// skip-data enabled per spec.md §4.2.
func newEngine(arch object.Arch) (gapstone.Engine, error) {
	var csArch gapstone.Arch
	var csMode gapstone.Mode

	switch arch {
	case object.ArchX86:
		csArch, csMode = gapstone.CS_ARCH_X86, gapstone.CS_MODE_32
	case object.ArchX86_64:
		csArch, csMode = gapstone.CS_ARCH_X86, gapstone.CS_MODE_64
	case object.ArchARM:
		csArch, csMode = gapstone.CS_ARCH_ARM, gapstone.CS_MODE_ARM
	case object.ArchARM64:
		csArch, csMode = gapstone.CS_ARCH_ARM64, gapstone.CS_MODE_ARM
	case object.ArchMIPS32:
		csArch, csMode = gapstone.CS_ARCH_MIPS, gapstone.CS_MODE_32
	case object.ArchMIPS64:
		csArch, csMode = gapstone.CS_ARCH_MIPS, gapstone.CS_MODE_64
	case object.ArchPPC32:
		csArch, csMode = gapstone.CS_ARCH_PPC, gapstone.CS_MODE_32
	case object.ArchPPC64:
		csArch, csMode = gapstone.CS_ARCH_PPC, gapstone.CS_MODE_64
	case object.ArchSPARC:
		csArch, csMode = gapstone.CS_ARCH_SPARC, gapstone.CS_MODE_BIG_ENDIAN
	case object.ArchRISCV32:
		csArch, csMode = gapstone.CS_ARCH_RISCV, gapstone.CS_MODE_RISCV32
	case object.ArchRISCV64:
		csArch, csMode = gapstone.CS_ARCH_RISCV, gapstone.CS_MODE_RISCV64
	default:
		return gapstone.Engine{}, xerrors.New(xerrors.KindUnsupportedArchitecture, "disasm: unsupported architecture: %s", arch)
	}

	eng, err := gapstone.New(csArch, csMode)
	if err != nil {
		return gapstone.Engine{}, xerrors.New(xerrors.KindDisassemblyFailed, "disasm: decoder init: %s", err)
	}
	if err := eng.SetOption(gapstone.CS_OPT_DETAIL, gapstone.CS_OPT_OFF); err != nil {
		eng.Close()
		return gapstone.Engine{}, xerrors.New(xerrors.KindDisassemblyFailed, "disasm: decoder init: %s", err)
	}
	if err := eng.SetOption(gapstone.CS_OPT_SKIPDATA, gapstone.CS_OPT_ON); err != nil {
		eng.Close()
		return gapstone.Engine{}, xerrors.New(xerrors.KindDisassemblyFailed, "disasm: decoder init: %s", err)
	}

	return eng, nil
}

// decodeBlock decodes every instruction in data starting at addr using eng,
// normalising missing or skip-data mnemonics/operands to "unknown".
func decodeBlock(eng gapstone.Engine, data []byte, addr uint64) ([]object.Instruction, error) {
	if len(data) == 0 {
		return nil, nil
	}

	raw, err := eng.Disasm(data, addr, 0)
	if err != nil {
		return nil, xerrors.New(xerrors.KindDisassemblyFailed, "disasm: %s", err)
	}

	out := make([]object.Instruction, 0, len(raw))
	for _, ins := range raw {
		mnem, opstr := ins.Mnemonic, ins.OpStr
		if mnem == "" || mnem == ".byte" {
			mnem = unknownMnemonic
			opstr = unknownMnemonic
		} else if opstr == "" {
			opstr = unknownMnemonic
		}
		out = append(out, object.Instruction{
			Address:  ins.Address,
			Size:     uint8(ins.Size),
			Mnemonic: mnem,
			OpStr:    opstr,
		})
	}
	return out, nil
}
