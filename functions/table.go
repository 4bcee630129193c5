package functions

import (
	"strings"

	"github.com/tingold/geoblob/fgb"
	"github.com/tingold/geoblob/host"
	"github.com/tingold/geoblob/vsi"
)

// ResolvePath maps a user path onto the connection's filesystem by adding the
// connection prefix. Paths that already name a virtual filesystem are left
// alone. The connection's state is created on first use.
func ResolvePath(conn *host.Connection, fm *vsi.FileManager, path string) (string, error) {
	if strings.HasPrefix(path, "/vsi") {
		return path, nil
	}
	s, err := vsi.GetOrCreate(conn, fm)
	if err != nil {
		return "", err
	}
	return s.Path(path), nil
}

// ReadFlatGeobuf returns every feature of the FlatGeobuf file at path.
func ReadFlatGeobuf(conn *host.Connection, fm *vsi.FileManager, path string) ([]fgb.Feature, error) {
	r, err := openFlatGeobuf(conn, fm, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}

// ReadFlatGeobufMeta returns the header of the FlatGeobuf file at path.
func ReadFlatGeobufMeta(conn *host.Connection, fm *vsi.FileManager, path string) (*fgb.Header, error) {
	r, err := openFlatGeobuf(conn, fm, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Header(), nil
}

// WriteFlatGeobuf writes features to path, replacing any existing file.
func WriteFlatGeobuf(conn *host.Connection, fm *vsi.FileManager, path string, features []fgb.Feature, opts *fgb.Options) (int, error) {
	resolved, err := ResolvePath(conn, fm, path)
	if err != nil {
		return 0, err
	}
	return fgb.WriteFile(fm, resolved, features, opts)
}

func openFlatGeobuf(conn *host.Connection, fm *vsi.FileManager, path string) (*fgb.Reader, error) {
	resolved, err := ResolvePath(conn, fm, path)
	if err != nil {
		return nil, err
	}
	return fgb.Open(fm, resolved)
}
