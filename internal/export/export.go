// Package export writes dashboard snapshots to JSON and KML files.
package export

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/storskegg/aranet-dash/internal/app"
	"github.com/storskegg/aranet-dash/internal/location"
)

const stampLayout = "2006-01-02_15-04-05"

// Positioner returns where the sensor is.
type Positioner interface {
	Current() (location.Fix, bool)
}

// Exporter writes readings_<timestamp>.json and, when a position is known,
// readings_<timestamp>.kml into a directory. Existing files are never
// overwritten.
type Exporter struct {
	dir  string
	name string
	pos  Positioner
	now  func() time.Time
}

var _ app.Exporter = (*Exporter)(nil)

// New returns an exporter writing into dir. pos may be nil.
func New(dir, sensorName string, pos Positioner) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{
		dir:  dir,
		name: sensorName,
		pos:  pos,
		now:  time.Now,
	}
}

// Export writes snap and returns the paths written.
func (e *Exporter) Export(snap app.Snapshot) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create export dir %s", e.dir)
	}

	var fix *location.Fix
	if e.pos != nil {
		if f, ok := e.pos.Current(); ok {
			fix = &f
		}
	}

	prefix := filepath.Join(e.dir, "readings_"+e.now().Format(stampLayout))

	jsonPath, err := e.writeFile(prefix, ".json", func(f *os.File) error {
		return writeJSON(f, e.name, snap, fix)
	})
	if err != nil {
		return nil, err
	}
	paths := []string{jsonPath}

	if fix == nil {
		return paths, nil
	}
	kmlPath, err := e.writeFile(prefix, ".kml", func(f *os.File) error {
		return writeKML(f, e.name, snap, *fix)
	})
	if err != nil {
		return paths, err
	}
	return append(paths, kmlPath), nil
}

func (e *Exporter) writeFile(prefix, ext string, write func(*os.File) error) (string, error) {
	f, err := createNew(prefix, ext)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrapf(err, "write %s", f.Name())
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", f.Name())
	}
	return f.Name(), nil
}

// createNew creates prefix+ext, or prefix-N+ext for the first free N.
func createNew(prefix, ext string) (*os.File, error) {
	path := prefix + ext
	for i := 1; i < 10000; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, errors.Wrapf(err, "create %s", path)
		}
		path = fmt.Sprintf("%s-%d%s", prefix, i, ext)
	}
	return nil, errors.Errorf("no free file name for %s%s", prefix, ext)
}
