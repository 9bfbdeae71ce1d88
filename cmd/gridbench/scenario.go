package main

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ScottBrooks/collisiongrid"
	"github.com/ScottBrooks/collisiongrid/scene"
)

//go:embed scenario.yaml
var defaultScenario []byte

type Coordinates struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type EdgeLength struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type SphereConstraint struct {
	Center Coordinates `yaml:"center"`
	Radius float64     `yaml:"radius"`
}

type BoxConstraint struct {
	Center Coordinates `yaml:"center"`
	Edge   EdgeLength  `yaml:"edge"`
}

type RelativeSphereConstraint struct {
	Radius float64 `yaml:"radius"`
}

type RelativeBoxConstraint struct {
	Edge EdgeLength `yaml:"edge"`
}

// QueryConstraint is one entry of the per tick query mix. Exactly one shape
// is set. Relative shapes are centred on a random wanderer each time.
type QueryConstraint struct {
	Name           string                    `yaml:"name"`
	PerTick        int                       `yaml:"per_tick"`
	Flags          []string                  `yaml:"flags"`
	Sphere         *SphereConstraint         `yaml:"sphere"`
	Box            *BoxConstraint            `yaml:"box"`
	RelativeSphere *RelativeSphereConstraint `yaml:"relative_sphere"`
	RelativeBox    *RelativeBoxConstraint    `yaml:"relative_box"`
}

type Scenario struct {
	Seed  int64   `yaml:"seed"`
	Ticks int     `yaml:"ticks"`
	DT    float32 `yaml:"dt"`

	World struct {
		Min [3]float32 `yaml:"min"`
		Max [3]float32 `yaml:"max"`
	} `yaml:"world"`

	Brushes struct {
		Count   int     `yaml:"count"`
		MinSize float32 `yaml:"min_size"`
		MaxSize float32 `yaml:"max_size"`
	} `yaml:"brushes"`

	Wanderers struct {
		Count      int     `yaml:"count"`
		Radius     float32 `yaml:"radius"`
		HalfHeight float32 `yaml:"half_height"`
		Speed      float32 `yaml:"speed"`
		TurnRate   float32 `yaml:"turn_rate"`
	} `yaml:"wanderers"`

	Projectiles struct {
		FireEvery int     `yaml:"fire_every"`
		Speed     float32 `yaml:"speed"`
		Damage    float32 `yaml:"damage"`
		Life      float32 `yaml:"life"`
	} `yaml:"projectiles"`

	Queries []QueryConstraint `yaml:"queries"`
}

func loadScenario(path string) (*Scenario, error) {
	data := defaultScenario
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("reading scenario: %w", err)
		}
	}
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Ticks <= 0 || sc.DT <= 0 {
		return fmt.Errorf("scenario needs positive ticks and dt, got %d and %g", sc.Ticks, sc.DT)
	}
	for _, q := range sc.Queries {
		n := 0
		for _, set := range []bool{q.Sphere != nil, q.Box != nil, q.RelativeSphere != nil, q.RelativeBox != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("query %q must have exactly one shape, has %d", q.Name, n)
		}
		if _, err := parseFlags(q.Flags); err != nil {
			return fmt.Errorf("query %q: %w", q.Name, err)
		}
	}
	return nil
}

func (sc *Scenario) worldBox() collisiongrid.Box {
	return collisiongrid.NewBox(
		collisiongrid.NewVector(sc.World.Min[0], sc.World.Min[1], sc.World.Min[2]),
		collisiongrid.NewVector(sc.World.Max[0], sc.World.Max[1], sc.World.Max[2]),
	)
}

func parseFlags(names []string) (uint32, error) {
	if len(names) == 0 {
		return scene.FlagAll, nil
	}
	var f uint32
	for _, n := range names {
		switch n {
		case "actor":
			f |= scene.FlagActor
		case "projectile":
			f |= scene.FlagProjectile
		case "brush":
			f |= scene.FlagBrush
		default:
			return 0, fmt.Errorf("unknown flag %q", n)
		}
	}
	return f, nil
}

func (c Coordinates) vector() collisiongrid.Vector {
	return collisiongrid.NewVector(float32(c.X), float32(c.Y), float32(c.Z))
}

func (e EdgeLength) half() collisiongrid.Vector {
	return collisiongrid.NewVector(float32(e.X/2), float32(e.Y/2), float32(e.Z/2))
}
