package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/san-kum/vlasim/internal/geom"
)

var ErrMissingData = errors.New("scene: dataset file missing")

type instance struct {
	TemplateName string     `json:"template_name"`
	Translation  [3]float64 `json:"translation"`
	Rotation     [4]float64 `json:"rotation"`
	FixedBase    bool       `json:"fixed_base"`
}

// rotation returns the instance rotation, identity when the dataset omits it.
func (in instance) rotation() [4]float64 {
	if in.Rotation == ([4]float64{}) {
		return [4]float64{1, 0, 0, 0}
	}
	return in.Rotation
}

type sceneInstance struct {
	Stage struct {
		TemplateName string `json:"template_name"`
	} `json:"stage_instance"`
	Objects     []instance `json:"object_instances"`
	Articulated []instance `json:"articulated_object_instances"`
}

type assetConfig struct {
	RenderAsset string `json:"render_asset"`
}

// Placement is one dataset object in simulation (z-up) coordinates.
type Placement struct {
	Name  string
	Asset string
	Pose  geom.Pose
	Scale float64
	Fixed bool
}

// Layout is a parsed ReplicaCAD scene instance.
type Layout struct {
	StageAsset  string
	Objects     []Placement
	Articulated []Placement
}

func readJSON(file string, v interface{}) error {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingData, file)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return nil
}

// LoadReplicaCAD reads configs/scenes/<name>.scene_instance.json under root
// and resolves every object template to its render asset. Dataset poses are
// y-up and are converted on the way in.
func LoadReplicaCAD(root, name string) (*Layout, error) {
	var sc sceneInstance
	if err := readJSON(filepath.Join(root, "configs", "scenes", name+".scene_instance.json"), &sc); err != nil {
		return nil, err
	}

	stageName := path.Base(sc.Stage.TemplateName)
	var stage assetConfig
	if err := readJSON(filepath.Join(root, "configs", "stages", stageName+".stage_config.json"), &stage); err != nil {
		return nil, err
	}

	layout := &Layout{StageAsset: filepath.Join(root, "stages", path.Base(stage.RenderAsset))}
	for _, obj := range sc.Objects {
		objName := path.Base(obj.TemplateName)
		var cfg assetConfig
		if err := readJSON(filepath.Join(root, "configs", "objects", objName+".object_config.json"), &cfg); err != nil {
			return nil, err
		}
		layout.Objects = append(layout.Objects, Placement{
			Name:  objName,
			Asset: filepath.Join(root, "objects", path.Base(cfg.RenderAsset)),
			Pose:  geom.FromYUp(obj.Translation, obj.rotation()),
			Scale: 1,
			Fixed: true,
		})
	}
	for _, art := range sc.Articulated {
		layout.Articulated = append(layout.Articulated, Placement{
			Name:  art.TemplateName,
			Asset: filepath.Join(root, "urdf", art.TemplateName, art.TemplateName+".urdf"),
			Pose:  geom.FromYUp(art.Translation, art.rotation()),
			Scale: 1,
			Fixed: art.FixedBase,
		})
	}
	return layout, nil
}
