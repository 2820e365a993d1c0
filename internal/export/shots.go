package export

import (
	"encoding/json"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"shotdetect/internal/fileutil"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
)

const (
	ShotsJSONFileName = "shots.json"
	ShotsYAMLFileName = "shots.yaml"
)

// ShotList is the exported form of a run's shot list.
type ShotList struct {
	RunID     string      `json:"run_id" yaml:"run_id"`
	Input     string      `json:"input" yaml:"input"`
	Status    string      `json:"status" yaml:"status"`
	FPS       float64     `json:"fps" yaml:"fps"`
	Threshold float64     `json:"threshold" yaml:"threshold"`
	Frames    int         `json:"frames" yaml:"frames"`
	Shots     []shot.Shot `json:"shots" yaml:"shots"`
}

// WriteShotsJSON writes list as indented JSON.
func WriteShotsJSON(path string, list ShotList) error {
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(normalizeList(list))
	})
	if err != nil {
		return services.Wrap(services.ErrSink, "export", "shots json", path, err)
	}
	return nil
}

// WriteShotsYAML writes list as a YAML document.
func WriteShotsYAML(path string, list ShotList) error {
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(normalizeList(list)); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return services.Wrap(services.ErrSink, "export", "shots yaml", path, err)
	}
	return nil
}

// ReadShotList loads a shot list written by WriteShotsJSON or WriteShotsYAML.
// YAML is a superset of JSON, so one decoder serves both.
func ReadShotList(path string) (ShotList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ShotList{}, err
	}
	var list ShotList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return ShotList{}, err
	}
	return list, nil
}

func normalizeList(list ShotList) ShotList {
	if list.Shots == nil {
		list.Shots = []shot.Shot{}
	}
	return list
}
