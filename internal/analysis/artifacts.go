package analysis

import (
	"errors"
	"path/filepath"

	"shotdetect/internal/config"
	"shotdetect/internal/export"
	"shotdetect/internal/imagehook"
	"shotdetect/internal/live"
)

// artifacts owns the per-run output writers.
type artifacts struct {
	dir      string
	fanout   export.Fanout
	saver    *imagehook.Saver
	videoXML *export.VideoXML
	audioXML *export.AudioXML
	records  *export.RecordLog
}

func openArtifacts(cfg *config.Config, dir string, media mediaInfo, liveSrv *live.Server) (*artifacts, error) {
	art := &artifacts{dir: dir}
	ok := false
	defer func() {
		if !ok {
			art.abort()
		}
	}()

	if cfg.Detection.CaptureBeginImage || cfg.Detection.CaptureEndImage {
		saver, err := imagehook.NewSaver(dir, imagehook.Options{
			Format:         cfg.Images.Format,
			JPEGQuality:    cfg.Images.JPEGQuality,
			Thumbnails:     cfg.Images.Thumbnails,
			ThumbnailWidth: cfg.Images.ThumbnailWidth,
		})
		if err != nil {
			return nil, err
		}
		if err := saver.Remove(); err != nil {
			return nil, err
		}
		art.saver = saver
	}
	if cfg.Export.VideoXML {
		doc, err := export.NewVideoXML(filepath.Join(dir, export.VideoXMLFileName), cfg.Detection.Threshold, media.fps)
		if err != nil {
			return nil, err
		}
		art.videoXML = doc
		art.fanout.Add(doc)
	}
	if cfg.Export.AudioXML && media.audio {
		doc, err := export.NewAudioXML(filepath.Join(dir, export.AudioXMLFileName),
			media.sampleRate, media.channels, cfg.Detection.AudioWindowMs)
		if err != nil {
			return nil, err
		}
		art.audioXML = doc
		art.fanout.Add(doc)
	}
	if cfg.Export.RecordLog {
		records, err := export.NewRecordLog(filepath.Join(dir, export.RecordLogFileName))
		if err != nil {
			return nil, err
		}
		art.records = records
		art.fanout.Add(records)
	}
	if liveSrv != nil {
		art.fanout.Add(liveSrv)
	}
	ok = true
	return art, nil
}

// finish publishes the documents of a successful run or discards them
// after a failure. The record log is always kept. It returns the paths of
// the files left on disk.
func (a *artifacts) finish(success bool) ([]string, error) {
	var (
		paths []string
		errs  []error
	)
	if a.videoXML != nil {
		if success {
			if err := a.videoXML.Close(); err != nil {
				errs = append(errs, err)
			} else {
				paths = append(paths, a.videoXML.Path())
			}
		} else {
			_ = a.videoXML.Abort()
		}
	}
	if a.audioXML != nil {
		if success {
			if err := a.audioXML.Close(); err != nil {
				errs = append(errs, err)
			} else {
				paths = append(paths, a.audioXML.Path())
			}
		} else {
			_ = a.audioXML.Abort()
		}
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil {
			errs = append(errs, err)
		} else {
			paths = append(paths, filepath.Join(a.dir, export.RecordLogFileName))
		}
	}
	return paths, errors.Join(errs...)
}

func (a *artifacts) abort() {
	if a.videoXML != nil {
		_ = a.videoXML.Abort()
	}
	if a.audioXML != nil {
		_ = a.audioXML.Abort()
	}
	if a.records != nil {
		_ = a.records.Close()
	}
}
