// Command swarm renders a cloud of instanced spheres orbited by the camera.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/gekko3d/swarm"
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/gekko3d/swarm/render/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

type config struct {
	count    int
	extent   float32
	msaa     uint
	workers  int
	lifetime float64
	orbit    float64
	rainbow  bool
	debug    bool
}

func parseFlags() config {
	var c config
	flag.IntVar(&c.count, "count", 1_000_000, "number of instances")
	var extent float64
	flag.Float64Var(&extent, "extent", 500, "instances are scattered in [-extent, extent] on every axis")
	flag.UintVar(&c.msaa, "msaa", 4, "MSAA sample count (1 or 4)")
	flag.IntVar(&c.workers, "workers", 0, "encoding and queueing workers, 0 for GOMAXPROCS")
	flag.Float64Var(&c.lifetime, "lifetime", 0, "seconds before the swarm despawns, 0 to keep it")
	flag.Float64Var(&c.orbit, "orbit", 10, "camera orbit speed in degrees per second")
	flag.BoolVar(&c.rainbow, "rainbow", false, "color instances by position instead of white")
	flag.BoolVar(&c.debug, "debug", false, "enable debug logging")
	flag.Parse()
	if !pipeline.ValidMsaaSamples(uint32(c.msaa)) {
		fmt.Fprintf(os.Stderr, "swarm: -msaa must be 1 or 4, got %d\n", c.msaa)
		flag.Usage()
		os.Exit(2)
	}
	c.extent = float32(extent)
	return c
}

// swarmModule spawns the instanced sphere cloud and the orbiting camera.
type swarmModule struct {
	cfg config
}

func (m swarmModule) Install(app *swarm.App, cmd *swarm.Commands) {
	app.UseSystem(
		swarm.System(m.setup).
			InStage(swarm.PreUpdate).
			RunAlways(),
	)
}

func (m swarmModule) setup(cmd *swarm.Commands, assets *swarm.AssetServer, ws *swarm.WindowState) {
	if assets.MeshCount() > 0 {
		return
	}
	sphere := assets.LoadMesh(mesh.UVSphere(0.1, 2, 2))

	components := []any{
		swarm.TransformComponent{},
		swarm.Mesh3d{Mesh: sphere},
		swarm.InstanceMaterialData{Group: scatter(m.cfg)},
	}
	if m.cfg.lifetime > 0 {
		components = append(components, swarm.LifetimeComponent{TimeLeft: float32(m.cfg.lifetime)})
	}
	cmd.AddEntity(components...)

	cmd.AddEntity(
		swarm.CameraComponent{
			Position: mgl32.Vec3{0, 1.5, 5},
			Fov:      mgl32.DegToRad(45),
			Aspect:   ws.AspectRatio(),
			Near:     0.1,
			Far:      4 * m.cfg.extent,
		},
		swarm.OrbitCameraComponent{Radius: 5, Height: 1.5, Speed: float32(m.cfg.orbit)},
	)
}

func scatter(cfg config) instance.Group {
	// A square grid of instances, like the particle count it approximates.
	side := int(math.Sqrt(float64(cfg.count)))
	g := make(instance.Group, side*side)
	for i := range g {
		pos := [3]float32{
			(rand.Float32()*2 - 1) * cfg.extent,
			(rand.Float32()*2 - 1) * cfg.extent,
			(rand.Float32()*2 - 1) * cfg.extent,
		}
		color := [4]float32{1, 1, 1, 1}
		if cfg.rainbow {
			color = hue(pos, cfg.extent)
		}
		g[i] = instance.Record{Position: pos, Scale: 1, Color: color}
	}
	return g
}

func hue(pos [3]float32, extent float32) [4]float32 {
	h := float64((pos[0]/extent + 1) * 3) // [0, 6)
	x := float32(1 - math.Abs(math.Mod(h, 2)-1))
	switch int(h) % 6 {
	case 0:
		return [4]float32{1, x, 0, 1}
	case 1:
		return [4]float32{x, 1, 0, 1}
	case 2:
		return [4]float32{0, 1, x, 1}
	case 3:
		return [4]float32{0, x, 1, 1}
	case 4:
		return [4]float32{x, 0, 1, 1}
	default:
		return [4]float32{1, 0, x, 1}
	}
}

func main() {
	cfg := parseFlags()

	app := swarm.NewAppBuilder().
		UseModule(
			swarm.LoggingModule{Prefix: "swarm", Debug: cfg.debug},
			swarm.TimeModule{},
			swarm.PlatformWindowModule{Width: 1280, Height: 720, Title: "swarm"},
			swarm.WebGpuModule{},
			swarm.InputModule{},
			swarm.InstancingModule{
				MsaaSamples:     uint32(cfg.msaa),
				Workers:         cfg.workers,
				ValidateShaders: true,
			},
			swarm.OrbitCameraModule{},
			swarm.LifecycleModule{},
			swarmModule{cfg: cfg},
		).
		Build()

	app.Logger().Infof("spawning %d instances", cfg.count)
	app.Run()
}
