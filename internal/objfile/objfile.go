// Package objfile loads a compiled object file and exposes its executable
// code and architecture, independent of container format. ELF and PE are
// recognized; both are handled through the matching debug/* package.
package objfile

import (
	"debug/elf"
	"debug/pe"
	"fmt"
	"sort"

	"wcet/internal/archctx"
)

// Section is one loaded, executable region of code.
type Section struct {
	Name string
	Addr uint64
	Data []byte
}

// File is a loaded object file's architecture and executable sections.
type File struct {
	Ctx      archctx.Context
	Sections []Section
}

// Open loads path, sniffing ELF and PE magic in turn.
func Open(path string) (*File, error) {
	if ef, err := elf.Open(path); err == nil {
		defer ef.Close()
		return fromELF(ef)
	}
	if pf, err := pe.Open(path); err == nil {
		defer pf.Close()
		return fromPE(pf)
	}
	return nil, fmt.Errorf("objfile: %s is not a recognized ELF or PE object file", path)
}

func fromELF(ef *elf.File) (*File, error) {
	ctx, err := archctx.FromELFMachine(ef.Class, ef.Machine)
	if err != nil {
		return nil, err
	}
	var sections []Section
	for _, s := range ef.Sections {
		if s.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("objfile: reading ELF section %s: %w", s.Name, err)
		}
		if len(data) == 0 {
			continue
		}
		sections = append(sections, Section{Name: s.Name, Addr: s.Addr, Data: data})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("objfile: no executable section found")
	}
	sortSections(sections)
	return &File{Ctx: ctx, Sections: sections}, nil
}

func fromPE(pf *pe.File) (*File, error) {
	ctx, err := archctx.FromPEMachine(pf.Machine)
	if err != nil {
		return nil, err
	}
	imageBase, err := peImageBase(pf)
	if err != nil {
		return nil, err
	}
	var sections []Section
	const imageScnMemExecute = 0x20000000
	for _, s := range pf.Sections {
		if s.Characteristics&imageScnMemExecute == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("objfile: reading PE section %s: %w", s.Name, err)
		}
		if len(data) == 0 {
			continue
		}
		sections = append(sections, Section{Name: s.Name, Addr: imageBase + uint64(s.VirtualAddress), Data: data})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("objfile: no executable section found")
	}
	sortSections(sections)
	return &File{Ctx: ctx, Sections: sections}, nil
}

func peImageBase(pf *pe.File) (uint64, error) {
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return uint64(oh.ImageBase), nil
	case *pe.OptionalHeader64:
		return oh.ImageBase, nil
	default:
		return 0, fmt.Errorf("objfile: PE file has no optional header")
	}
}

func sortSections(s []Section) {
	sort.Slice(s, func(i, j int) bool { return s[i].Addr < s[j].Addr })
}

// Code concatenates every executable section's bytes in address order and
// returns the load address of the first one, matching how
// internal/cfgbuild expects a single contiguous instruction stream to
// disassemble starting at a known base address.
func (f *File) Code() (base uint64, code []byte) {
	base = f.Sections[0].Addr
	for _, s := range f.Sections {
		gap := int(s.Addr - (base + uint64(len(code))))
		for i := 0; i < gap; i++ {
			code = append(code, 0)
		}
		code = append(code, s.Data...)
	}
	return base, code
}
