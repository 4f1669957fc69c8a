package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromJSONConfig(t *testing.T) {
	path := writeConfig(t, "run_config.json", `{
		"run_id": "run-json",
		"label": "lenski-lite",
		"max_population_size": 5000000,
		"dilution_factor": 100,
		"transfers": 50,
		"markers": 2,
		"seed": 77,
		"beneficial_rate": 0.0000001,
		"beneficial_mean_effect": 0.1,
		"epistasis_strength": 6.0,
		"track_trajectories": true,
		"trajectory_threshold": 0.05,
		"track_mutations": true,
		"sampling_frequency": 5
	}`)

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.RunID != "run-json" || req.Label != "lenski-lite" {
		t.Fatalf("unexpected identity fields: %+v", req)
	}
	if req.MaxPopulationSize != 5_000_000 || req.DilutionFactor != 100 || req.Transfers != 50 {
		t.Fatalf("unexpected regime fields: %+v", req)
	}
	if req.Markers != 2 || req.Seed != 77 {
		t.Fatalf("unexpected markers/seed: %+v", req)
	}
	if req.BeneficialRate != 1e-7 || req.BeneficialMeanEffect != 0.1 || req.EpistasisStrength != 6.0 {
		t.Fatalf("unexpected mutation fields: %+v", req)
	}
	if !req.TrackTrajectories || req.TrajectoryThreshold != 0.05 {
		t.Fatalf("unexpected trajectory fields: %+v", req)
	}
	if !req.TrackMutations || req.SamplingFrequency != 5 {
		t.Fatalf("unexpected metagenome fields: %+v", req)
	}
}

func TestLoadRunRequestFromYAMLConfig(t *testing.T) {
	path := writeConfig(t, "run_config.yaml", `
run_id: run-yaml
max_population_size: 2000
dilution_factor: 10
transfers: 5
markers: 2
seed: 606
deleterious_rate: 0.001
deleterious_min: 0.01
deleterious_max: 0.05
fitness_floor: 0.1
`)

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.RunID != "run-yaml" || req.MaxPopulationSize != 2000 || req.DilutionFactor != 10 {
		t.Fatalf("unexpected regime fields: %+v", req)
	}
	if req.Transfers != 5 || req.Markers != 2 || req.Seed != 606 {
		t.Fatalf("unexpected transfer fields: %+v", req)
	}
	if req.DeleteriousRate != 0.001 || req.DeleteriousMin != 0.01 || req.DeleteriousMax != 0.05 {
		t.Fatalf("unexpected deleterious fields: %+v", req)
	}
	if req.FitnessFloor != 0.1 {
		t.Fatalf("unexpected fitness floor: %g", req.FitnessFloor)
	}
}

func TestLoadRunRequestRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "run_config.toml", "seed = 1")
	if _, err := loadRunRequestFromConfig(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadRunRequestRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, "broken.json", `{"seed": `)
	if _, err := loadRunRequestFromConfig(path); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestOverrideFromFlagsAppliesOnlySetFlags(t *testing.T) {
	path := writeConfig(t, "base.json", `{"seed": 100, "transfers": 20, "markers": 4}`)
	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}

	seed := int64(999)
	transfers := 3
	values := map[string]any{
		"seed":      &seed,
		"transfers": &transfers,
	}
	overrideFromFlags(&req, map[string]bool{"seed": true}, values)

	if req.Seed != 999 {
		t.Fatalf("seed override not applied: %d", req.Seed)
	}
	if req.Transfers != 20 || req.Markers != 4 {
		t.Fatalf("unset flags must keep config values: %+v", req)
	}
}

func TestLoadOrDefaultRunRequestEmptyPath(t *testing.T) {
	req, err := loadOrDefaultRunRequest("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if req.Seed != 0 || req.Transfers != 0 {
		t.Fatalf("expected zero request, got %+v", req)
	}
}
