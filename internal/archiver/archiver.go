package archiver

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// Archiver packages finished mirror bundles into zip files.
type Archiver struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Archiver {
	return &Archiver{
		logger: logger.With().Str("component", "Archiver").Logger(),
	}
}

// ArchiveName returns the download filename for a bundle created now.
func ArchiveName(now time.Time) string {
	return fmt.Sprintf("website_%s.zip", now.Format("20060102_150405"))
}

// CreateZip writes every file under bundleDir into a zip at zipPath.
// Entry names are bundle-relative with forward slashes so the archive
// unpacks identically everywhere.
func (a *Archiver) CreateZip(bundleDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return errorwrapper.WrapError(err, "failed to create archive file")
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	walkErr := filepath.Walk(bundleDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return err
		}
		return a.addFile(zw, path, filepath.ToSlash(rel), info)
	})
	if walkErr != nil {
		zw.Close()
		return errorwrapper.WrapError(walkErr, "failed to archive bundle")
	}

	if err := zw.Close(); err != nil {
		return errorwrapper.WrapError(err, "failed to finalize archive")
	}

	a.logger.Debug().Str("zip", zipPath).Msg("Bundle archived")
	return nil
}

func (a *Archiver) addFile(zw *zip.Writer, path, name string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(w, in)
	return err
}
