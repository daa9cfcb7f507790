// Package tasks implements the AutoML task runners.
//
// A runner is built from a Config, fitted on a dataset and then reports a
// Summary of the fit. ImageClassification fits folder datasets and reports
// valid_acc; ObjectDetection fits VOC datasets and reports valid_map. Both
// hold out part of the training data for validation and run up to
// num_trials hyperparameter trials, keeping the best model.
package tasks
