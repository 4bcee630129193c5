package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/tingold/geoblob"
	"github.com/tingold/geoblob/fgb"
	"github.com/tingold/geoblob/functions"
	"github.com/tingold/geoblob/host"
	"github.com/tingold/geoblob/internal/logger"
	"github.com/tingold/geoblob/vsi"
)

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 3669491, true},
}

const dataFile = "data.fgb"

func main() {
	log := logger.Build(logger.Config{Level: os.Getenv("GEOBLOB_LOG_LEVEL"), Console: true, Component: "demo"}, os.Stderr)

	conn := host.NewConnection(host.NewMemFileSystem(), host.WithLogger(log))
	defer conn.Close()

	srv, err := newServer(conn, vsi.NewFileManager(vsi.WithManagerLogger(log)), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create FlatGeobuf")
	}

	// Get the directory of the client files (one level up from server)
	clientDir := filepath.Join("..", "client")
	srv.static = http.FileServer(http.Dir(clientDir))

	log.Info().Str("addr", "http://localhost:8080").Str("client", clientDir).Msg("server starting")
	if err := http.ListenAndServe(":8080", srv); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// cityFeatures converts the city table to blob features.
func cityFeatures() ([]fgb.Feature, error) {
	arena := geoblob.NewArena()
	features := make([]fgb.Feature, 0, len(cities))
	for _, city := range cities {
		arena.Reset()
		g, err := geoblob.FromOrb(arena, orb.Point{city.Longitude, city.Latitude})
		if err != nil {
			return nil, err
		}
		blob, err := geoblob.Serialize(g)
		if err != nil {
			return nil, err
		}
		features = append(features, fgb.Feature{
			Geometry: blob,
			Properties: geojson.Properties{
				"name":       city.Name,
				"country":    city.Country,
				"population": city.Population,
				"capital":    city.Capital,
			},
		})
	}
	return features, nil
}

type server struct {
	conn   *host.Connection
	fm     *vsi.FileManager
	log    zerolog.Logger
	static http.Handler
}

// newServer writes the city layer to the connection's filesystem.
func newServer(conn *host.Connection, fm *vsi.FileManager, log zerolog.Logger) (*server, error) {
	features, err := cityFeatures()
	if err != nil {
		return nil, err
	}
	opts := &fgb.Options{
		Name:         "world_cities",
		Description:  "Major world cities",
		IncludeIndex: true,
		CRS:          fgb.WGS84(),
	}
	if _, err := functions.WriteFlatGeobuf(conn, fm, dataFile, features, opts); err != nil {
		return nil, err
	}
	return &server{conn: conn, fm: fm, log: log, static: http.NotFoundHandler()}, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/data.fgb":
		s.serveData(w)
	case "/cities":
		s.serveCities(w, r)
	default:
		s.static.ServeHTTP(w, r)
	}
}

func (s *server) serveData(w http.ResponseWriter) {
	path, err := functions.ResolvePath(s.conn, s.fm, dataFile)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	h, err := s.fm.Open(path, "rb")
	if err != nil {
		s.fail(w, err, http.StatusNotFound)
		return
	}
	data, err := vsi.ReadAll(h)
	if rc := h.Close(); err == nil && rc != 0 {
		err = errors.Wrapf(vsi.ErrIOFailed, "close %s", dataFile)
	}
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, err := w.Write(data); err != nil {
		s.log.Warn().Err(err).Str("path", dataFile).Msg("write response")
	}
}

// serveCities returns the names of cities inside ?bbox=minx,miny,maxx,maxy.
func (s *server) serveCities(w http.ResponseWriter, r *http.Request) {
	query, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	features, err := functions.ReadFlatGeobuf(s.conn, s.fm, dataFile)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}

	names := []string{}
	for _, f := range features {
		if functions.IntersectsExtent(f.Geometry, query) {
			if name, ok := f.Properties["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

// parseBBox returns the query box as a polygon blob.
func parseBBox(s string) ([]byte, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.Newf("bbox %q: want minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bbox %q", s)
		}
		v[i] = f
	}
	g, err := geoblob.FromOrb(geoblob.NewArena(), orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}})
	if err != nil {
		return nil, err
	}
	return geoblob.Serialize(g)
}

func (s *server) fail(w http.ResponseWriter, err error, code int) {
	s.log.Warn().Err(err).Int("status", code).Msg("request failed")
	http.Error(w, err.Error(), code)
}
