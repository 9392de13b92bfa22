// Package vcf provides the line-classification convenience layer spec.md
// scopes field interpretation out of: classifying a VCF line as meta,
// header, or data, and splitting the #CHROM header line into its sample
// (genome) names. It consumes pkg/streamio line records and performs no
// variant-field parsing of its own.
package vcf

import "strings"

// LineKind classifies one line of a VCF file.
type LineKind int

const (
	// Data is an ordinary variant record line.
	Data LineKind = iota
	// Meta is a "##key=value" metadata line.
	Meta
	// Header is the "#CHROM ..." column header line.
	Header
)

const (
	headerChar       = '#'
	metaPrefix       = "##"
	chromFragment    = "#CHROM"
	fieldSeparator   = "\t"
	mandatoryColumns = 9 // CHROM POS ID REF ALT QUAL FILTER INFO FORMAT
)

// ClassifyLine reports whether line is a data record, a "##" metadata
// line, or the "#CHROM" column header line, mirroring the original's
// HEADER_CHAR_ / FIELD_NAME_FRAGMENT_ checks.
func ClassifyLine(line string) LineKind {
	if len(line) == 0 || line[0] != headerChar {
		return Data
	}
	if strings.HasPrefix(line, chromFragment) {
		return Header
	}
	if strings.HasPrefix(line, metaPrefix) {
		return Meta
	}
	return Meta
}

// MetaPair splits a "##key=value" line into its key and value, with the
// "##" prefix and a single "=" separator removed. ok is false if line is
// not a meta line or carries no "=" separator.
func MetaPair(line string) (key, value string, ok bool) {
	if ClassifyLine(line) != Meta {
		return "", "", false
	}
	body := strings.TrimPrefix(line, metaPrefix)
	idx := strings.Index(body, "=")
	if idx < 0 {
		return "", "", false
	}
	return body[:idx], body[idx+1:], true
}

// HeaderIndex is the parsed "#CHROM" column header line: the mandatory
// column names plus the trailing per-genome sample names.
type HeaderIndex struct {
	Columns []string // the 9 mandatory column names, in file order
	Samples []string // genome/sample names following FORMAT
}

// ParseHeader splits a "#CHROM ..." line into HeaderIndex. ok is false if
// line is not classified as Header.
func ParseHeader(line string) (HeaderIndex, bool) {
	if ClassifyLine(line) != Header {
		return HeaderIndex{}, false
	}
	fields := strings.Split(line, fieldSeparator)

	idx := HeaderIndex{}
	for i, f := range fields {
		if i < mandatoryColumns {
			idx.Columns = append(idx.Columns, f)
		} else {
			idx.Samples = append(idx.Samples, f)
		}
	}
	return idx, true
}
