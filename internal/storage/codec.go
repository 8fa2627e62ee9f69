package storage

import (
	"encoding/json"
	"errors"
	"sort"

	"autopoiesis/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp new records are written with.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeExperiment(e model.ExperimentRecord) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeExperiment(data []byte) (model.ExperimentRecord, error) {
	var experiment model.ExperimentRecord
	if err := json.Unmarshal(data, &experiment); err != nil {
		return model.ExperimentRecord{}, err
	}
	if err := checkVersion(experiment.VersionedRecord); err != nil {
		return model.ExperimentRecord{}, err
	}
	return experiment, nil
}

func EncodeTrials(trials []model.TrialRecord) ([]byte, error) {
	return json.Marshal(trials)
}

func DecodeTrials(data []byte) ([]model.TrialRecord, error) {
	var trials []model.TrialRecord
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, err
	}
	for _, trial := range trials {
		if err := checkVersion(trial.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return trials, nil
}

func EncodeHistory(history []model.StepRecord) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeHistory(data []byte) ([]model.StepRecord, error) {
	var history []model.StepRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

// sortExperiments orders newest first, breaking ties by run id.
func sortExperiments(experiments []model.ExperimentRecord) {
	sort.Slice(experiments, func(i, j int) bool {
		if experiments[i].CreatedAtUTC == experiments[j].CreatedAtUTC {
			return experiments[i].RunID < experiments[j].RunID
		}
		return experiments[i].CreatedAtUTC > experiments[j].CreatedAtUTC
	})
}
