package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	stepapi "stepsim/pkg/stepsim"
)

// loadRunRequestFromConfig reads a run request from a JSON or YAML file,
// chosen by extension. Keys use the snake_case names of the engine config so
// a saved config.json artifact round-trips as an input config.
func loadRunRequestFromConfig(path string) (stepapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stepapi.RunRequest{}, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return stepapi.RunRequest{}, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return stepapi.RunRequest{}, fmt.Errorf("parse json config %s: %w", path, err)
		}
	default:
		return stepapi.RunRequest{}, fmt.Errorf("unsupported config extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}

	var req stepapi.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["label"]); ok {
		req.Label = v
	}
	if v, ok := asInt64(raw["max_population_size"]); ok {
		req.MaxPopulationSize = v
	}
	if v, ok := asInt64(raw["dilution_factor"]); ok {
		req.DilutionFactor = v
	}
	if v, ok := asInt(raw["transfers"]); ok {
		req.Transfers = v
	}
	if v, ok := asInt(raw["markers"]); ok {
		req.Markers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asFloat64(raw["beneficial_rate"]); ok {
		req.BeneficialRate = v
	}
	if v, ok := asFloat64(raw["neutral_rate"]); ok {
		req.NeutralRate = v
	}
	if v, ok := asFloat64(raw["deleterious_rate"]); ok {
		req.DeleteriousRate = v
	}
	if v, ok := asFloat64(raw["beneficial_mean_effect"]); ok {
		req.BeneficialMeanEffect = v
	}
	if v, ok := asFloat64(raw["deleterious_min"]); ok {
		req.DeleteriousMin = v
	}
	if v, ok := asFloat64(raw["deleterious_max"]); ok {
		req.DeleteriousMax = v
	}
	if v, ok := asFloat64(raw["epistasis_strength"]); ok {
		req.EpistasisStrength = v
	}
	if v, ok := asFloat64(raw["fitness_floor"]); ok {
		req.FitnessFloor = v
	}
	if v, ok := asBool(raw["track_trajectories"]); ok {
		req.TrackTrajectories = v
	}
	if v, ok := asFloat64(raw["trajectory_threshold"]); ok {
		req.TrajectoryThreshold = v
	}
	if v, ok := asBool(raw["track_mutations"]); ok {
		req.TrackMutations = v
	}
	if v, ok := asInt(raw["sampling_frequency"]); ok {
		req.SamplingFrequency = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (stepapi.RunRequest, error) {
	if configPath == "" {
		return stepapi.RunRequest{}, nil
	}
	return loadRunRequestFromConfig(configPath)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	v64, ok := asInt64(v)
	if !ok {
		return 0, false
	}
	return int(v64), true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// applyAllFlags builds the request entirely from flag values. Used when no
// config file is given, so flag defaults become the request defaults.
func applyAllFlags(req *stepapi.RunRequest, values map[string]any) {
	for name := range values {
		applyFlag(req, name, values)
	}
}

// overrideFromFlags applies only the flags the user set explicitly, layering
// them over a request loaded from a config file.
func overrideFromFlags(req *stepapi.RunRequest, set map[string]bool, values map[string]any) {
	for name := range values {
		if set[name] {
			applyFlag(req, name, values)
		}
	}
}

func applyFlag(req *stepapi.RunRequest, name string, values map[string]any) {
	switch name {
	case "run-id":
		req.RunID = *values[name].(*string)
	case "label":
		req.Label = *values[name].(*string)
	case "max-pop":
		req.MaxPopulationSize = *values[name].(*int64)
	case "dilution":
		req.DilutionFactor = *values[name].(*int64)
	case "transfers":
		req.Transfers = *values[name].(*int)
	case "markers":
		req.Markers = *values[name].(*int)
	case "seed":
		req.Seed = *values[name].(*int64)
	case "beneficial-rate":
		req.BeneficialRate = *values[name].(*float64)
	case "neutral-rate":
		req.NeutralRate = *values[name].(*float64)
	case "deleterious-rate":
		req.DeleteriousRate = *values[name].(*float64)
	case "beneficial-effect":
		req.BeneficialMeanEffect = *values[name].(*float64)
	case "deleterious-min":
		req.DeleteriousMin = *values[name].(*float64)
	case "deleterious-max":
		req.DeleteriousMax = *values[name].(*float64)
	case "epistasis":
		req.EpistasisStrength = *values[name].(*float64)
	case "fitness-floor":
		req.FitnessFloor = *values[name].(*float64)
	case "track-trajectories":
		req.TrackTrajectories = *values[name].(*bool)
	case "trajectory-threshold":
		req.TrajectoryThreshold = *values[name].(*float64)
	case "track-mutations":
		req.TrackMutations = *values[name].(*bool)
	case "sampling-frequency":
		req.SamplingFrequency = *values[name].(*int)
	}
}
