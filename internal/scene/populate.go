package scene

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/sim"
)

type Options struct {
	// DataDir is the ReplicaCAD dataset root. Empty skips the stage.
	DataDir string
	// AssetDir holds object assets. When set, every object asset must exist.
	AssetDir string
	Log      *zap.SugaredLogger
}

type placed struct {
	obj    Object
	entity sim.Entity
}

// Scene is a populated preset.
type Scene struct {
	Preset Preset
	placed []placed
	stage  int
}

// Populate adds the stage and the preset's objects to an unbuilt session.
func Populate(s sim.Session, p Preset, opts Options) (*Scene, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	sc := &Scene{Preset: p}

	if p.Stage != nil && opts.DataDir != "" {
		n, err := addStage(s, p.Stage, opts.DataDir, log)
		if err != nil {
			return nil, fmt.Errorf("load stage %s: %w", p.Stage.Instance, err)
		}
		sc.stage = n
	}

	for _, obj := range p.Objects {
		if opts.AssetDir != "" && obj.Asset != "" {
			file := filepath.Join(opts.AssetDir, obj.Asset)
			if _, err := os.Stat(file); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("object %s: %w: %s", obj.Name, ErrMissingData, file)
				}
				return nil, err
			}
		}
		spec := sim.EntitySpec{
			Name:      obj.Name,
			Asset:     obj.Asset,
			Pose:      obj.Pose,
			Scale:     obj.Scale,
			Radius:    obj.Radius,
			Size:      obj.Size,
			Fixed:     obj.Fixed,
			Collision: obj.Collision,
			Hidden:    obj.Hidden,
		}
		if obj.Kind == AssetPrimitive {
			spec.Shape = sim.ShapeBox
		}
		e, err := s.AddEntity(spec)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", obj.Name, err)
		}
		sc.placed = append(sc.placed, placed{obj: obj, entity: e})
	}
	log.Infow("scene populated", "scene", p.Name, "objects", len(sc.placed), "stage_entities", sc.stage)
	return sc, nil
}

func addStage(s sim.Session, st *Stage, root string, log *zap.SugaredLogger) (int, error) {
	layout, err := LoadReplicaCAD(root, st.Instance)
	if err != nil {
		return 0, err
	}

	// The stage mesh is authored y-up at the origin. It is visual only.
	base := filepath.Base(layout.StageAsset)
	if _, err := s.AddEntity(sim.EntitySpec{
		Name:  strings.TrimSuffix(base, filepath.Ext(base)),
		Asset: layout.StageAsset,
		Pose:  geom.NewPose(geom.Vec3{}, geom.RotX(math.Pi/2)),
		Scale: 1,
		Fixed: true,
	}); err != nil {
		return 0, err
	}
	n := 1

	for _, pl := range layout.Objects {
		if slices.Contains(st.Skip, pl.Name) {
			log.Debugw("skip loading object", "name", pl.Name)
			continue
		}
		if _, err := s.AddEntity(sim.EntitySpec{
			Name:      pl.Name,
			Asset:     pl.Asset,
			Pose:      pl.Pose,
			Scale:     pl.Scale,
			Fixed:     true,
			Collision: slices.Contains(st.KeepAsRigid, pl.Name),
		}); err != nil {
			return n, err
		}
		n++
	}

	if !st.LoadArticulated {
		return n, nil
	}
	for _, pl := range layout.Articulated {
		scale := pl.Scale
		if v, ok := st.ArticulatedScale[pl.Name]; ok {
			scale = v
		}
		keep := slices.Contains(st.KeepArticulated, pl.Name)
		if _, err := s.AddEntity(sim.EntitySpec{
			Name:      pl.Name,
			Asset:     pl.Asset,
			Pose:      pl.Pose,
			Scale:     scale,
			Fixed:     keep || pl.Fixed,
			Collision: keep,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Objects returns the preset objects in authoring order.
func (sc *Scene) Objects() []sim.Entity {
	out := make([]sim.Entity, len(sc.placed))
	for i, p := range sc.placed {
		out[i] = p.entity
	}
	return out
}

// ResetObjects moves every movable object to its reset pose.
func (sc *Scene) ResetObjects() {
	for _, p := range sc.placed {
		if p.obj.Fixed {
			continue
		}
		p.entity.SetPos(p.obj.ResetPose.Pos)
		p.entity.SetQuat(p.obj.ResetPose.Rot)
	}
}
