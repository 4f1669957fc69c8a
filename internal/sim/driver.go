package sim

import (
	"context"
	"fmt"

	"stepsim/internal/randx"
)

// State names the cycle driver's position in the growth/dilution state
// machine.
type State string

const (
	StateGrowing          State = "growing"
	StateDiluting         State = "diluting"
	StateTransferComplete State = "transfer_complete"
	StateFinished         State = "finished"
)

// Config enumerates everything a single run needs. All values arrive
// validated in-memory; the engine does no I/O of its own.
type Config struct {
	// MaxPopulationSize is the total population at which a growth cycle
	// ends and dilution occurs.
	MaxPopulationSize int64 `json:"max_population_size" yaml:"max_population_size"`
	// DilutionFactor divides MaxPopulationSize to give the bottleneck
	// size; the division must be exact.
	DilutionFactor int64 `json:"dilution_factor" yaml:"dilution_factor"`
	// Transfers is the number of growth-and-dilution cycles to run.
	Transfers int `json:"transfers" yaml:"transfers"`
	// Markers is the number of neutral marker lineages the initial
	// bottleneck is split across. Defaults to 1.
	Markers int   `json:"markers" yaml:"markers"`
	Seed    int64 `json:"seed" yaml:"seed"`

	// Per-replication mutation rates by category.
	BeneficialRate  float64 `json:"beneficial_rate" yaml:"beneficial_rate"`
	NeutralRate     float64 `json:"neutral_rate" yaml:"neutral_rate"`
	DeleteriousRate float64 `json:"deleterious_rate" yaml:"deleterious_rate"`

	// BeneficialMeanEffect is the ancestral mean beneficial effect size.
	BeneficialMeanEffect float64 `json:"beneficial_mean_effect" yaml:"beneficial_mean_effect"`
	// Deleterious effects are uniform fitness reductions in [Min, Max].
	DeleteriousMin float64 `json:"deleterious_min" yaml:"deleterious_min"`
	DeleteriousMax float64 `json:"deleterious_max" yaml:"deleterious_max"`
	// EpistasisStrength is the diminishing-returns strength; zero
	// disables epistasis entirely.
	EpistasisStrength float64 `json:"epistasis_strength" yaml:"epistasis_strength"`
	// FitnessFloor is the clamp applied when deleterious mutations would
	// otherwise drive fitness below it. Clamps are counted in the result.
	FitnessFloor float64 `json:"fitness_floor" yaml:"fitness_floor"`

	// TrackTrajectories enables per-lineage frequency recording for
	// lineages crossing TrajectoryThreshold.
	TrackTrajectories   bool    `json:"track_trajectories" yaml:"track_trajectories"`
	TrajectoryThreshold float64 `json:"trajectory_threshold" yaml:"trajectory_threshold"`
	// TrackMutations enables metagenomic per-mutation trajectory
	// recording.
	TrackMutations bool `json:"track_mutations" yaml:"track_mutations"`
	// SamplingFrequency records trajectory and metagenome data only every
	// k-th transfer. Defaults to 1.
	SamplingFrequency int `json:"sampling_frequency" yaml:"sampling_frequency"`
}

// withDefaults fills optional fields without touching required ones.
func (c Config) withDefaults() Config {
	if c.Markers == 0 {
		c.Markers = 1
	}
	if c.SamplingFrequency == 0 {
		c.SamplingFrequency = 1
	}
	return c
}

// Validate checks the configuration before any simulation state exists.
// All failures wrap ErrConfig.
func (c Config) Validate() error {
	if c.MaxPopulationSize <= 0 {
		return fmt.Errorf("%w: max population size must be > 0", ErrConfig)
	}
	if c.DilutionFactor < 2 {
		return fmt.Errorf("%w: dilution factor must be >= 2", ErrConfig)
	}
	if c.MaxPopulationSize%c.DilutionFactor != 0 {
		return fmt.Errorf("%w: max population size %d is not divisible by dilution factor %d",
			ErrConfig, c.MaxPopulationSize, c.DilutionFactor)
	}
	if c.Transfers <= 0 {
		return fmt.Errorf("%w: transfers must be > 0", ErrConfig)
	}
	if c.Markers < 0 {
		return fmt.Errorf("%w: markers must be >= 0", ErrConfig)
	}
	if int64(c.Markers) > c.MaxPopulationSize/c.DilutionFactor {
		return fmt.Errorf("%w: markers %d exceed bottleneck size %d",
			ErrConfig, c.Markers, c.MaxPopulationSize/c.DilutionFactor)
	}
	if c.BeneficialRate < 0 || c.NeutralRate < 0 || c.DeleteriousRate < 0 {
		return fmt.Errorf("%w: mutation rates must be >= 0", ErrConfig)
	}
	if c.BeneficialRate > 0 && c.BeneficialMeanEffect <= 0 {
		return fmt.Errorf("%w: beneficial mean effect must be > 0 when the beneficial rate is set", ErrConfig)
	}
	if c.DeleteriousMin < 0 || c.DeleteriousMax < c.DeleteriousMin {
		return fmt.Errorf("%w: deleterious effect range [%g, %g] is invalid",
			ErrConfig, c.DeleteriousMin, c.DeleteriousMax)
	}
	if c.DeleteriousMax > 1 {
		return fmt.Errorf("%w: deleterious effect max %g exceeds 1.0", ErrConfig, c.DeleteriousMax)
	}
	if c.EpistasisStrength < 0 {
		return fmt.Errorf("%w: epistasis strength must be >= 0", ErrConfig)
	}
	if c.FitnessFloor < 0 {
		return fmt.Errorf("%w: fitness floor must be >= 0", ErrConfig)
	}
	if c.TrajectoryThreshold < 0 || c.TrajectoryThreshold > 1 {
		return fmt.Errorf("%w: trajectory threshold must be in [0, 1]", ErrConfig)
	}
	if c.SamplingFrequency < 0 {
		return fmt.Errorf("%w: sampling frequency must be >= 0", ErrConfig)
	}
	return nil
}

// BottleneckSize is the population size each cycle starts from.
func (c Config) BottleneckSize() int64 {
	return c.MaxPopulationSize / c.DilutionFactor
}

// RunResult is everything a completed run hands back to the caller; nothing
// is written or rendered by the engine itself.
type RunResult struct {
	Config        Config            `json:"config"`
	PerTransfer   []TransferStats   `json:"per_transfer"`
	PerGeneration []GenerationStats `json:"per_generation"`
	Trajectories  []Trajectory      `json:"trajectories,omitempty"`
	Mutations     []MutationTrace   `json:"mutations,omitempty"`
	// Generations is the total number of growth steps executed.
	Generations int `json:"generations"`
	// ClampEvents counts deleterious draws resolved at the fitness floor.
	ClampEvents int64 `json:"clamp_events"`
}

// Driver owns one run's population, random source, and state machine. A
// driver is single-use: construct, Run once, read the result.
type Driver struct {
	cfg   Config
	rates [3]float64
	model *MutationModel
	src   *randx.Source

	reg     *Registry
	state   State
	tracker *TrajectoryTracker
	meta    *Metagenome
}

func NewDriver(cfg Config) (*Driver, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	invMean := 1.0
	if cfg.BeneficialMeanEffect > 0 {
		invMean = 1.0 / cfg.BeneficialMeanEffect
	}
	reg, err := NewRegistry(cfg.BottleneckSize(), cfg.Markers, invMean)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:   cfg,
		rates: [3]float64{cfg.BeneficialRate, cfg.NeutralRate, cfg.DeleteriousRate},
		model: &MutationModel{
			BeneficialMeanEffect: cfg.BeneficialMeanEffect,
			DeleteriousMin:       cfg.DeleteriousMin,
			DeleteriousMax:       cfg.DeleteriousMax,
			EpistasisStrength:    cfg.EpistasisStrength,
			FitnessFloor:         cfg.FitnessFloor,
		},
		src:   randx.New(cfg.Seed),
		reg:   reg,
		state: StateGrowing,
	}
	if cfg.TrackTrajectories {
		d.tracker = NewTrajectoryTracker(cfg.TrajectoryThreshold)
	}
	if cfg.TrackMutations {
		d.meta = NewMetagenome()
		// The marker split itself is the first tracked mutation set, so
		// marker trajectories appear in the metagenomic output.
		ancestor := Lineage{ID: 0, Fitness: 1.0}
		for i := 0; i < reg.Len(); i++ {
			d.meta.Register(reg.At(i), ancestor)
		}
	}
	return d, nil
}

// State reports the driver's current state-machine position.
func (d *Driver) State() State { return d.state }

// Run executes the configured number of transfers and returns the run's
// full summary. The context is checked at every transfer boundary and at
// every generation inside a cycle; a canceled run returns the context error
// with no partial result.
func (d *Driver) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{Config: d.cfg}

	d.recordTransfer(&result, 0)

	transfer := 0
	generation := 0
	for d.state != StateFinished {
		switch d.state {
		case StateGrowing:
			if err := ctx.Err(); err != nil {
				return RunResult{}, err
			}
			clamps, err := growGeneration(d.reg, d.model, d.rates, d.src, d.meta)
			if err != nil {
				return RunResult{}, err
			}
			result.ClampEvents += clamps
			generation++
			result.PerGeneration = append(result.PerGeneration, d.reg.generationStats(generation, transfer))
			if d.tracker != nil {
				d.tracker.Observe(generation, d.reg)
			}
			if d.reg.Total() >= d.cfg.MaxPopulationSize {
				d.state = StateDiluting
			}

		case StateDiluting:
			if err := d.reg.dilute(d.cfg.BottleneckSize(), d.src); err != nil {
				return RunResult{}, err
			}
			d.state = StateTransferComplete

		case StateTransferComplete:
			transfer++
			d.recordTransfer(&result, transfer)
			if transfer >= d.cfg.Transfers {
				d.state = StateFinished
			} else {
				d.state = StateGrowing
			}
		}
	}

	result.Generations = generation
	if d.tracker != nil {
		result.Trajectories = d.tracker.Records()
	}
	if d.meta != nil {
		result.Mutations = d.meta.Records()
	}
	return result, nil
}

func (d *Driver) recordTransfer(result *RunResult, transfer int) {
	result.PerTransfer = append(result.PerTransfer, d.reg.transferStats(transfer, d.cfg.Markers))
	if d.meta != nil && transfer%d.cfg.SamplingFrequency == 0 {
		d.meta.SetTransfer(transfer)
		d.meta.UpdateSizes(d.reg)
	}
}
