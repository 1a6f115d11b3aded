package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/robot"
)

var ErrUnknownScene = errors.New("scene: unknown scene")

type Name string

const (
	Apt0PlusObjs       Name = "replicad_apt0_plus_objs"
	Apt5Kitchen        Name = "replicad_apt5_kitchen"
	Apt4GoogleScanObjs Name = "replicad_apt4_google_scan_objs"
)

type AssetKind string

const (
	AssetURDF      AssetKind = "urdf"
	AssetMJCF      AssetKind = "mjcf"
	AssetReplica   AssetKind = "replicacad"
	AssetPrimitive AssetKind = "box"
)

// Object is a scene-owned entity. Pose is where it is authored; ResetPose is
// written back by ResetObjects.
type Object struct {
	Name      string
	Kind      AssetKind
	Asset     string
	Scale     float64
	Radius    float64
	Size      geom.Vec3
	Pose      geom.Pose
	ResetPose geom.Pose
	Fixed     bool
	Collision bool
	Hidden    bool
}

// Stage is a ReplicaCAD apartment layout.
type Stage struct {
	Instance        string
	KeepAsRigid     []string
	Skip            []string
	LoadArticulated bool
	KeepArticulated []string
	// ArticulatedScale overrides the scale of templates the dataset ships
	// without one.
	ArticulatedScale map[string]float64
}

type Preset struct {
	Name           Name
	Dt             float64
	StepsPerAction int
	RenderAllSteps bool
	Base           geom.Pose
	RestPose       []float64
	Stage          *Stage
	Objects        []Object
}

func fixedPose(pos geom.Vec3, q [4]float64) geom.Pose {
	return geom.NewPose(pos, geom.Quat(q))
}

func upright(pos geom.Vec3) geom.Pose {
	return geom.NewPose(pos, geom.Identity)
}

var presets = map[Name]func() Preset{
	Apt0PlusObjs: func() Preset {
		bottle := fixedPose(geom.Vec3{0.95, -2.55, 0.95}, [4]float64{1 / math.Sqrt2, 0, 1 / math.Sqrt2, 0})
		bowl := fixedPose(geom.Vec3{0.6, -2.3, 1}, [4]float64{0.7071, 0.7071, 0, 0})
		return Preset{
			Name:           Apt0PlusObjs,
			Dt:             0.01,
			StepsPerAction: 7,
			Base:           fixedPose(geom.Vec3{0.7, -2.9, 0.9}, [4]float64{math.Cos(math.Pi / 8), 0, 0, math.Sin(math.Pi / 8)}),
			RestPose:       robot.DroidRestPose(),
			Stage: &Stage{
				Instance:    "apt_0",
				KeepAsRigid: []string{"frl_apartment_table_02"},
				Skip:        []string{"frl_apartment_lamp_02"},
			},
			Objects: []Object{
				{
					Name: "bottle", Kind: AssetURDF, Asset: "3763/mobility_vhacd_fixed.urdf",
					Scale: 0.09, Radius: 0.5, Pose: bottle, ResetPose: bottle, Collision: true,
				},
				{
					Name: "frl_apartment_bowl_07", Kind: AssetReplica, Asset: "frl_apartment_bowl_07.glb",
					Scale: 1, Radius: 0.08, Pose: bowl, ResetPose: bowl, Collision: true,
				},
			},
		}
	},
	Apt4GoogleScanObjs: func() Preset {
		heli := fixedPose(geom.Vec3{2.375, -5.225, 0.41}, [4]float64{0.7071, 0, 0, 0.7071})
		truck := upright(geom.Vec3{2.15, -5.2, 0.41})
		return Preset{
			Name:           Apt4GoogleScanObjs,
			Dt:             0.01,
			StepsPerAction: 7,
			Base:           fixedPose(geom.Vec3{2.75, -5.1, 0.4}, [4]float64{0, 0, 0, 1}),
			RestPose:       []float64{0, -0.4, 0, -1.8, 0, 1.4, 0, 0, 0},
			Stage:          &Stage{Instance: "apt_4"},
			Objects: []Object{
				{
					Name: "table_plane", Kind: AssetPrimitive,
					Size: geom.Vec3{0.7, 1.2, 0.1}, Pose: upright(geom.Vec3{2.27, -5.33, 0.363}),
					Fixed: true, Collision: true, Hidden: true,
				},
				{
					Name: "chicken_racer", Kind: AssetMJCF, Asset: "CHICKEN_RACER/model.xml", Radius: 0.04,
					Pose: upright(geom.Vec3{2.3, -5.4, 0.42}), ResetPose: upright(geom.Vec3{2.3, -5.25, 0.45}), Collision: true,
				},
				{
					Name: "basket", Kind: AssetMJCF, Asset: "Target_Basket_Medium/model.xml", Radius: 0.1,
					Pose: upright(geom.Vec3{2.3, -4.95, 0.52}), ResetPose: upright(geom.Vec3{2.3, -4.95, 0.42}), Collision: true,
				},
				{
					Name: "helicopter", Kind: AssetMJCF, Asset: "HELICOPTER/model.xml", Radius: 0.05,
					Pose: heli, ResetPose: heli, Collision: true,
				},
				{
					Name: "fire_truck", Kind: AssetMJCF, Asset: "FIRE_TRUCK/model.xml", Radius: 0.05,
					Pose: truck, ResetPose: truck, Collision: true,
				},
			},
		}
	},
	Apt5Kitchen: func() Preset {
		return Preset{
			Name:           Apt5Kitchen,
			Dt:             0.01,
			StepsPerAction: 7,
			Base:           fixedPose(geom.Vec3{-1.3, -2.5, 0.9}, [4]float64{0, 0, 0, -1}),
			RestPose:       robot.DroidRestPose(),
			Stage: &Stage{
				Instance:         "apt_5",
				LoadArticulated:  true,
				KeepArticulated:  []string{"fridge"},
				ArticulatedScale: map[string]float64{"kitchenCupboard_01": 0.4},
			},
		}
	},
}

// Lookup returns a fresh copy of the named preset.
func Lookup(name Name) (Preset, error) {
	f, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownScene, name, Names())
	}
	return f(), nil
}

func Names() []Name {
	names := make([]Name, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
