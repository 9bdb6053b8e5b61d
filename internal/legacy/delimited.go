package legacy

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of a file is inspected for encoding and delimiter.
const sniffSize = 64 * 1024

// DelimitedOptions controls how a delimited extract is read.
type DelimitedOptions struct {
	// Delimiter is the field separator; zero sniffs comma or tab from the first line.
	Delimiter rune
	// Columns names positional fields of a header-less file. When empty the
	// first line is the header.
	Columns []string
}

// delimitedSource streams records from a decoded CSV/TSV file.
type delimitedSource struct {
	table   string
	file    *os.File
	reader  *csv.Reader
	columns []string
	line    int
}

// OpenDelimited opens a delimited extract for table, detecting its text
// encoding and decoding it to UTF-8.
func OpenDelimited(path, table string, opts DelimitedOptions) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	sample := make([]byte, sniffSize)
	n, err := io.ReadFull(file, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		file.Close()
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	sample = sample[:n]
	if n == sniffSize {
		sample = trimPartialRune(sample)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "failed to rewind %s", path)
	}

	enc := DetectEncoding(sample)
	decoded := transform.NewReader(file, unicode.BOMOverride(enc.NewDecoder()))

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = sniffDelimiter(sample)
	}

	reader := csv.NewReader(bufio.NewReader(decoded))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	src := &delimitedSource{table: table, file: file, reader: reader, columns: opts.Columns}
	if len(src.columns) == 0 {
		header, err := reader.Read()
		if err == io.EOF {
			return src, nil
		}
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "failed to read header of %s", path)
		}
		src.line = 1
		src.columns = make([]string, len(header))
		for i, h := range header {
			src.columns[i] = strings.TrimSpace(h)
		}
	}
	return src, nil
}

func (s *delimitedSource) Next() (Record, bool, error) {
	for {
		fields, err := s.reader.Read()
		if err == io.EOF {
			return Record{}, false, nil
		}
		s.line++
		if err != nil {
			return Record{}, false, errors.Wrapf(err, "%s line %d", s.table, s.line)
		}
		if isEmptyLine(fields) {
			continue
		}

		names := s.columns
		if len(fields) > len(names) {
			names = extendColumns(names, len(fields))
		}
		values := make([]any, len(fields))
		for i, f := range fields {
			values[i] = f
		}
		return NewRecord(s.table, names, values), true, nil
	}
}

func (s *delimitedSource) Close() error {
	return s.file.Close()
}

// DetectEncoding picks the text encoding of a legacy extract. Valid UTF-8 wins;
// otherwise the best chardet guess is used, falling back to Windows-1252 which
// is what most legacy exports were written in.
func DetectEncoding(sample []byte) encoding.Encoding {
	if utf8.Valid(sample) {
		return unicode.UTF8
	}

	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || result == nil {
		return charmap.Windows1252
	}

	switch strings.ToUpper(result.Charset) {
	case "UTF-8":
		return unicode.UTF8
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "ISO-8859-1", "WINDOWS-1252":
		return charmap.Windows1252
	}

	if enc, err := ianaindex.IANA.Encoding(result.Charset); err == nil && enc != nil {
		return enc
	}
	return charmap.Windows1252
}

// trimPartialRune drops a multi-byte sequence cut off at the end of a sample.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

func sniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	if bytes.Count(line, []byte{'\t'}) > bytes.Count(line, []byte{','}) {
		return '\t'
	}
	return ','
}

func isEmptyLine(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func extendColumns(names []string, n int) []string {
	out := make([]string, n)
	copy(out, names)
	for i := len(names); i < n; i++ {
		out[i] = columnName(i)
	}
	return out
}
