// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// CapabilityEntry is one record of a capability descriptor.
type CapabilityEntry struct {
	// Path is absolute as seen from inside the jail.
	Path string
	// Capability is in cap_from_text(3) syntax ("cap_net_raw+ep").
	Capability string
	// Offset is the byte offset of the record in the descriptor.
	Offset int
}

// DescriptorScanner walks the records of a capability descriptor:
//
//	path \0 capability \0 \n
//
// repeated with no other framing. Every read is bounded by the slice
// handed to NewDescriptorScanner; the descriptor comes from inside the
// jail and nothing in it is trusted.
//
// Scan reports framing only. Whether a path is acceptable is up to the
// caller.
type DescriptorScanner struct {
	data   []byte
	offset int
	entry  CapabilityEntry
	err    error
}

// NewDescriptorScanner returns a scanner over data.
func NewDescriptorScanner(data []byte) *DescriptorScanner {
	return &DescriptorScanner{data: data}
}

// Scan advances to the next record. It returns false at the end of the
// data or at the first framing error, which Err then reports.
func (s *DescriptorScanner) Scan() bool {
	if s.err != nil || s.offset >= len(s.data) {
		return false
	}
	start := s.offset

	path, ok := s.field()
	if !ok {
		s.err = fmt.Errorf("%w: premature end of descriptor in record at offset %d", ErrCapabilityParse, start)
		return false
	}
	capability, ok := s.field()
	if !ok {
		s.err = fmt.Errorf("%w: premature end of descriptor in record at offset %d", ErrCapabilityParse, start)
		return false
	}
	if s.data[s.offset] != '\n' {
		s.err = fmt.Errorf("%w: expected newline at offset %d, found %q", ErrCapabilityParse, s.offset, s.data[s.offset])
		return false
	}
	s.offset++

	s.entry = CapabilityEntry{Path: path, Capability: capability, Offset: start}
	return true
}

// field reads up to the next NUL. It fails unless the NUL exists and at
// least one byte follows it.
func (s *DescriptorScanner) field() (string, bool) {
	remaining := s.data[s.offset:]
	length := bytes.IndexByte(remaining, 0)
	if length < 0 || length+1 >= len(remaining) {
		return "", false
	}
	value := string(remaining[:length])
	s.offset += length + 1
	return value, true
}

// Entry returns the record found by the last successful Scan.
func (s *DescriptorScanner) Entry() CapabilityEntry { return s.entry }

// Err returns the framing error that stopped the scan, if any.
func (s *DescriptorScanner) Err() error { return s.err }

// checkEntry rejects records whose path is not absolute.
func checkEntry(entry CapabilityEntry) error {
	if !strings.HasPrefix(entry.Path, "/") {
		return fmt.Errorf("%w: illegal path %q at offset %d", ErrCapabilityParse, entry.Path, entry.Offset)
	}
	return nil
}

// ParseDescriptor parses a whole descriptor. Records with a relative
// path are left out of the result and reported in the error; parsing
// continues past them. A framing error stops parsing. The entries read
// before any error are always returned.
func ParseDescriptor(data []byte) ([]CapabilityEntry, error) {
	var entries []CapabilityEntry
	var errs []error

	scanner := NewDescriptorScanner(data)
	for scanner.Scan() {
		entry := scanner.Entry()
		if err := checkEntry(entry); err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	return entries, errors.Join(errs...)
}
