package upload

import (
	"bufio"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
)

const (
	SniffBytes            = 2048
	DefaultMaxUploadBytes = 50 << 20
)

var allowedExtensions = map[string]bool{
	".csv": true,
	".tsv": true,
	".txt": true,
	".tab": true,
}

type Options struct {
	MaxBytes   int64
	SampleRows int
	Policy     Policy
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxUploadBytes
	}
	if o.SampleRows <= 0 {
		o.SampleRows = DefaultSampleRows
	}
	if o.Policy == "" {
		o.Policy = PolicyStrict
	}
	return o
}

func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Inspect runs the full check chain on an uploaded file: extension, size,
// encoding of the leading sample, delimiter, then parse and validate.
func Inspect(filename string, size int64, r io.Reader, opts Options) (*Metadata, error) {
	opts = opts.withDefaults()

	if !AllowedExtension(filename) {
		return nil, apierr.InputFormat("%s", msgBadExtension)
	}
	if size > opts.MaxBytes {
		return nil, apierr.InputFormat("%s", msgTooLarge)
	}

	br := bufio.NewReaderSize(io.LimitReader(r, opts.MaxBytes+1), SniffBytes)
	sample, err := br.Peek(SniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, apierr.InputFormat("Error reading file: %v", err)
	}
	text, ok := decodeSample(sample, len(sample) == SniffBytes)
	if !ok {
		return nil, apierr.InputFormat("%s", msgBadEncoding)
	}

	delim, ok := DetectDelimiter(text)
	if !ok {
		return nil, apierr.InputFormat("%s", msgNoDelimiter)
	}

	t, err := Parse(br, delim, opts.SampleRows)
	if err != nil {
		return nil, err
	}
	md, err := Validate(t, opts.Policy)
	if err != nil {
		return nil, err
	}
	md.Filename = filename
	md.Format = FormatFor(delim)
	return md, nil
}

// decodeSample checks the sample is UTF-8. When the sample was cut at the
// byte limit, an incomplete rune at the end is tolerated.
func decodeSample(b []byte, truncated bool) (string, bool) {
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(b) > 0; i++ {
			if utf8.Valid(b) {
				break
			}
			last, _ := utf8.DecodeLastRune(b)
			if last != utf8.RuneError {
				break
			}
			b = b[:len(b)-1]
		}
	}
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}
