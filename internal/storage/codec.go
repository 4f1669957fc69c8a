package storage

import (
	"encoding/json"
	"errors"

	"stepsim/internal/model"
	"stepsim/internal/sim"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeTransferStats(stats []sim.TransferStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeTransferStats(data []byte) ([]sim.TransferStats, error) {
	var stats []sim.TransferStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func EncodeGenerationStats(stats []sim.GenerationStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeGenerationStats(data []byte) ([]sim.GenerationStats, error) {
	var stats []sim.GenerationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func EncodeTrajectories(trajectories []sim.Trajectory) ([]byte, error) {
	return json.Marshal(trajectories)
}

func DecodeTrajectories(data []byte) ([]sim.Trajectory, error) {
	var trajectories []sim.Trajectory
	if err := json.Unmarshal(data, &trajectories); err != nil {
		return nil, err
	}
	return trajectories, nil
}

func EncodeMutations(mutations []sim.MutationTrace) ([]byte, error) {
	return json.Marshal(mutations)
}

func DecodeMutations(data []byte) ([]sim.MutationTrace, error) {
	var mutations []sim.MutationTrace
	if err := json.Unmarshal(data, &mutations); err != nil {
		return nil, err
	}
	return mutations, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
