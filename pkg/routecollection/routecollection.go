// Package routecollection implements the streamed, self-describing binary
// file that stores sampled routes between a sample run and later reuse
// (comparison, inspection via the "routes" CLI subcommand).
//
// Layout mirrors pkg/graph's binary convention: fixed-width little-endian
// integers, length-prefixed strings and slices, a mutable header that is
// rewritten in place once the true route count is known.
package routecollection

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// MajorVersion is bumped on incompatible layout changes.
	MajorVersion = uint16(1)
	MinorVersion = uint16(0)
)

// ErrVersionMismatch is returned by Open when a file's major version is
// incompatible with this reader.
var ErrVersionMismatch = errors.New("routecollection: incompatible major version")

// Header describes a route collection file.
type Header struct {
	Major, Minor   uint16
	OsrmFile       string
	Scenario       string
	NumberOfRoutes uint64
}

// Route is one sampled origin-destination path.
type Route struct {
	StartLatE6, StartLonE6 int32
	EndLatE6, EndLonE6     int32
	NodeIDs                []int64
	Distance               float64 // meters
}

// Writer streams routes to a file with a header that is rewritten on
// Finish with the true route count. If Finish is never called, the header
// on disk keeps its initial count of 0 and a Reader sees no routes at all.
type Writer struct {
	f     *os.File
	count uint64
	hdr   Header
}

// New creates path and writes a provisional header with count=0.
func New(path, osrmFile, scenario string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("routecollection: create %s: %w", path, err)
	}

	hdr := Header{
		Major:          MajorVersion,
		Minor:          MinorVersion,
		OsrmFile:       osrmFile,
		Scenario:       scenario,
		NumberOfRoutes: 0,
	}

	if err := writeHeader(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("routecollection: write header: %w", err)
	}

	return &Writer{f: f, hdr: hdr}, nil
}

// WriteRoute serializes route and increments the in-memory route count.
// The header on disk is not updated until Finish.
func (w *Writer) WriteRoute(route Route) error {
	if err := writeRoute(w.f, route); err != nil {
		return fmt.Errorf("routecollection: write route %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Finish seeks back to the start of the file, rewrites the header with the
// true route count, and flushes. The file is not durable -- a reader will
// see zero routes -- until this has been called.
func (w *Writer) Finish() error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("routecollection: seek to start: %w", err)
	}

	w.hdr.NumberOfRoutes = w.count
	if err := writeHeader(w.f, w.hdr); err != nil {
		return fmt.Errorf("routecollection: rewrite header: %w", err)
	}

	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("routecollection: sync: %w", err)
	}

	return w.f.Close()
}

// Reader is a finite iterator over a route collection file, yielding
// exactly Header.NumberOfRoutes routes.
type Reader struct {
	f      *os.File
	Header Header
	read   uint64
}

// Open reads and validates the header, and returns a Reader ready to
// iterate over Header.NumberOfRoutes routes.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("routecollection: open %s: %w", path, err)
	}

	hdr, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("routecollection: read header: %w", err)
	}
	if hdr.Major != MajorVersion {
		f.Close()
		return nil, fmt.Errorf("%w: file major=%d, reader major=%d", ErrVersionMismatch, hdr.Major, MajorVersion)
	}

	return &Reader{f: f, Header: hdr}, nil
}

// Next returns the next route, or io.EOF once Header.NumberOfRoutes routes
// have been yielded. A decoding error is returned immediately and leaves
// the reader unusable.
func (r *Reader) Next() (Route, error) {
	if r.read >= r.Header.NumberOfRoutes {
		return Route{}, io.EOF
	}
	route, err := readRoute(r.f)
	if err != nil {
		return Route{}, fmt.Errorf("routecollection: decode route %d: %w", r.read, err)
	}
	r.read++
	return route, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

func writeHeader(w io.Writer, hdr Header) error {
	if err := binary.Write(w, binary.LittleEndian, hdr.Major); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.Minor); err != nil {
		return err
	}
	if err := writeString(w, hdr.OsrmFile); err != nil {
		return err
	}
	if err := writeString(w, hdr.Scenario); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, hdr.NumberOfRoutes)
}

func readHeader(r io.Reader) (Header, error) {
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr.Major); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Minor); err != nil {
		return Header{}, err
	}
	var err error
	if hdr.OsrmFile, err = readString(r); err != nil {
		return Header{}, err
	}
	if hdr.Scenario, err = readString(r); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.NumberOfRoutes); err != nil {
		return Header{}, err
	}
	return hdr, nil
}

func writeRoute(w io.Writer, route Route) error {
	for _, v := range []int32{route.StartLatE6, route.StartLonE6, route.EndLatE6, route.EndLonE6} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(route.NodeIDs))); err != nil {
		return err
	}
	for _, id := range route.NodeIDs {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, route.Distance)
}

func readRoute(r io.Reader) (Route, error) {
	var route Route
	for _, dst := range []*int32{&route.StartLatE6, &route.StartLonE6, &route.EndLatE6, &route.EndLonE6} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return Route{}, err
		}
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return Route{}, err
	}
	route.NodeIDs = make([]int64, n)
	for i := range route.NodeIDs {
		if err := binary.Read(r, binary.LittleEndian, &route.NodeIDs[i]); err != nil {
			return Route{}, err
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &route.Distance); err != nil {
		return Route{}, err
	}

	return route, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
