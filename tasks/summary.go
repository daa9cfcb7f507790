package tasks

import "maps"

// Summary keys.
const (
	KeyTrainAcc  = "train_acc"
	KeyValidAcc  = "valid_acc"
	KeyTrainMAP  = "train_map"
	KeyValidMAP  = "valid_map"
	KeyTotalTime = "total_time" // seconds
	KeyNumTrials = "num_trials" // trials that ran to completion
	KeyBestTrial = "best_trial"
)

// Summary maps metric names to values.
type Summary map[string]float64

// Get returns the value of key, or def when the summary doesn't hold it.
func (s Summary) Get(key string, def float64) float64 {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

// Clone returns a copy of s.
func (s Summary) Clone() Summary {
	if s == nil {
		return Summary{}
	}
	return maps.Clone(s)
}
