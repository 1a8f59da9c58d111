package mpfd

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	maxBoundaryLen = 70
	maxHeaderSize  = 16 * 1024
)

// BoundaryFromContentType extracts the boundary from the Content-Type of a
// multipart/form-data body
func BoundaryFromContentType(ct string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", fmt.Errorf("%w: bad content type %q: %v", ErrMalformed, ct, err)
	}
	if mediaType != "multipart/form-data" {
		return "", fmt.Errorf("%w: content type %q is not multipart/form-data", ErrMalformed, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" || len(boundary) > maxBoundaryLen {
		return "", fmt.Errorf("%w: invalid boundary %q", ErrMalformed, boundary)
	}
	return boundary, nil
}

// Options configures a Decoder
type Options struct {
	// Storage for uploaded files
	Storage Storage

	// Namer creating temporary files; required for StoreInFilesystem
	Namer Namer

	// MaxFieldSize limits the content of a single field, 0 for no limit
	MaxFieldSize int64

	// MaxFields limits the number of fields, 0 for no limit
	MaxFields int
}

type state int

const (
	statePreamble state = iota // before the first boundary
	stateBoundary              // right after a boundary, before CRLF or "--"
	stateHeaders               // part headers
	stateBody                  // part content
	stateEpilogue              // after the closing boundary
)

// Decoder decodes a multipart/form-data body fed to it in arbitrary chunks.
//
// Fields become available once Close reports that the whole body has been
// consumed. The caller owns the fields and must release them with Release
// when done. After an error the decoder has already released every field.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	opts Options

	dashBoundary []byte // "--boundary"
	delimiter    []byte // "\n--boundary"

	state     state
	lineStart bool // buf starts at the beginning of a line
	buf       []byte

	header  []byte
	current Field
	size    int64
	fields  map[string]Field
	closed  bool
	err     error
}

// NewDecoder creates a decoder for the given boundary
func NewDecoder(boundary string, opts Options) (*Decoder, error) {
	if boundary == "" || len(boundary) > maxBoundaryLen {
		return nil, fmt.Errorf("%w: invalid boundary %q", ErrMalformed, boundary)
	}
	if opts.Storage == StoreInFilesystem && opts.Namer == nil {
		return nil, ErrNoTempDir
	}
	return &Decoder{
		opts:         opts,
		dashBoundary: []byte("--" + boundary),
		delimiter:    []byte("\n--" + boundary),
		fields:       map[string]Field{},
		lineStart:    true,
	}, nil
}

// Storage returns where the decoder keeps uploaded files
func (d *Decoder) Storage() Storage {
	return d.opts.Storage
}

// Write feeds the next chunk of the body
func (d *Decoder) Write(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.closed {
		return 0, fmt.Errorf("%w: write after close", ErrMalformed)
	}
	if d.state == stateEpilogue {
		return len(p), nil
	}
	d.buf = append(d.buf, p...)
	for {
		progress, err := d.step()
		if err != nil {
			return 0, d.fail(err)
		}
		if !progress {
			break
		}
	}
	return len(p), nil
}

// Close tells the decoder the body has ended
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if d.closed {
		return nil
	}
	if d.state != stateEpilogue {
		return d.fail(fmt.Errorf("%w: body ended before the closing boundary", ErrIncomplete))
	}
	d.closed = true
	return nil
}

// Fields returns the decoded fields by name
func (d *Decoder) Fields() (map[string]Field, error) {
	if d.err != nil {
		return nil, d.err
	}
	if !d.closed {
		return nil, ErrIncomplete
	}
	return d.fields, nil
}

// Field returns the field with the given name
func (d *Decoder) Field(name string) (Field, error) {
	fields, err := d.Fields()
	if err != nil {
		return nil, err
	}
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("no multipart field %q", name)
	}
	return f, nil
}

// Names returns the sorted names of the decoded fields
func (d *Decoder) Names() []string {
	if !d.closed || d.err != nil {
		return nil
	}
	names := maps.Keys(d.fields)
	slices.Sort(names)
	return names
}

// Release closes every field, deleting temporary files. The fields are not
// usable afterwards.
func (d *Decoder) Release() error {
	var errs []error
	if d.current != nil {
		errs = append(errs, d.current.Close())
		d.current = nil
	}
	for _, f := range d.fields {
		errs = append(errs, f.Close())
	}
	d.fields = map[string]Field{}
	return errors.Join(errs...)
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.buf = nil
	_ = d.Release()
	return err
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

// step advances the state machine as far as the buffered input allows in
// one state. It returns false when more input is needed.
func (d *Decoder) step() (bool, error) {
	switch d.state {
	case statePreamble:
		return d.stepPreamble(), nil
	case stateBoundary:
		return d.stepBoundary()
	case stateHeaders:
		return d.stepHeaders()
	case stateBody:
		return d.stepBody()
	default:
		d.buf = nil
		return false, nil
	}
}

func (d *Decoder) stepPreamble() bool {
	from := 0
	for {
		i := bytes.Index(d.buf[from:], d.dashBoundary)
		if i < 0 {
			// keep what may be the start of the boundary
			if keep := len(d.dashBoundary); len(d.buf) > keep {
				n := len(d.buf) - keep
				d.lineStart = d.buf[n-1] == '\n'
				d.consume(n)
			}
			return false
		}
		i += from
		if (i == 0 && d.lineStart) || (i > 0 && d.buf[i-1] == '\n') {
			d.consume(i + len(d.dashBoundary))
			d.state = stateBoundary
			return true
		}
		from = i + 1
	}
}

func (d *Decoder) stepBoundary() (bool, error) {
	if len(d.buf) < 2 {
		return false, nil
	}
	if d.buf[0] == '-' && d.buf[1] == '-' {
		d.state = stateEpilogue
		d.buf = nil
		return false, nil
	}
	i := bytes.IndexByte(d.buf, '\n')
	if i < 0 {
		if len(d.buf) > maxHeaderSize {
			return false, fmt.Errorf("%w: garbage after boundary", ErrMalformed)
		}
		return false, nil
	}
	// transport padding is allowed after the boundary
	if len(bytes.TrimRight(d.buf[:i], " \t\r")) != 0 {
		return false, fmt.Errorf("%w: garbage after boundary", ErrMalformed)
	}
	d.consume(i + 1)
	d.header = d.header[:0]
	d.state = stateHeaders
	return true, nil
}

func (d *Decoder) stepHeaders() (bool, error) {
	i := bytes.IndexByte(d.buf, '\n')
	if i < 0 {
		if len(d.header)+len(d.buf) > maxHeaderSize {
			return false, fmt.Errorf("%w: part headers too long", ErrMalformed)
		}
		return false, nil
	}
	line := bytes.TrimRight(d.buf[:i], "\r")
	if len(d.header)+len(line) > maxHeaderSize {
		return false, fmt.Errorf("%w: part headers too long", ErrMalformed)
	}
	if len(line) != 0 {
		d.header = append(d.header, line...)
		d.header = append(d.header, '\n')
		d.consume(i + 1)
		return true, nil
	}
	d.consume(i + 1)

	field, err := d.newField(string(d.header))
	if err != nil {
		return false, err
	}
	d.current = field
	d.size = 0
	// creates the temporary file even if the content turns out empty
	if err := field.Append(nil); err != nil {
		return false, err
	}
	d.state = stateBody
	return true, nil
}

func (d *Decoder) stepBody() (bool, error) {
	i := bytes.Index(d.buf, d.delimiter)
	if i < 0 {
		// the delimiter may start in the last bytes, possibly after a CR
		if keep := len(d.delimiter); len(d.buf) > keep {
			if err := d.appendContent(d.buf[:len(d.buf)-keep]); err != nil {
				return false, err
			}
			d.consume(len(d.buf) - keep)
		}
		return false, nil
	}
	end := i
	if end > 0 && d.buf[end-1] == '\r' {
		end--
	}
	if err := d.appendContent(d.buf[:end]); err != nil {
		return false, err
	}
	d.consume(i + len(d.delimiter))
	d.fields[d.current.Name()] = d.current
	d.current = nil
	d.state = stateBoundary
	return true, nil
}

func (d *Decoder) appendContent(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	d.size += int64(len(p))
	if d.opts.MaxFieldSize > 0 && d.size > d.opts.MaxFieldSize {
		return fmt.Errorf("%w: field %q is larger than %d bytes", ErrTooLarge, d.current.Name(), d.opts.MaxFieldSize)
	}
	return d.current.Append(p)
}

func (d *Decoder) newField(header string) (Field, error) {
	var disposition, contentType string
	for _, line := range strings.Split(strings.TrimSuffix(header, "\n"), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad part header %q", ErrMalformed, line)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "content-disposition":
			disposition = strings.TrimSpace(value)
		case "content-type":
			contentType = strings.TrimSpace(value)
		}
	}
	if disposition == "" {
		return nil, fmt.Errorf("%w: part without Content-Disposition", ErrMalformed)
	}
	dispType, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return nil, fmt.Errorf("%w: bad Content-Disposition %q: %v", ErrMalformed, disposition, err)
	}
	if dispType != "form-data" {
		return nil, fmt.Errorf("%w: Content-Disposition %q is not form-data", ErrMalformed, dispType)
	}
	name := params["name"]
	if name == "" {
		return nil, fmt.Errorf("%w: part without a name", ErrMalformed)
	}
	if _, ok := d.fields[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateField, name)
	}
	if d.opts.MaxFields > 0 && len(d.fields) >= d.opts.MaxFields {
		return nil, fmt.Errorf("%w: more than %d fields", ErrTooLarge, d.opts.MaxFields)
	}

	filename, isFile := params["filename"]
	if !isFile {
		return NewTextField(name), nil
	}
	info := FileInfo{Filename: filename, ContentType: contentType}
	if d.opts.Storage == StoreInFilesystem {
		return NewDiskFile(name, info, d.opts.Namer), nil
	}
	return NewMemoryFile(name, info), nil
}
