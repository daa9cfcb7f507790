// Package conformance runs task conformance scenarios.
//
// A scenario fetches a dataset, fits a task runner on it and requires the
// summary metric of the fit to be greater than a threshold (zero unless set).
// Datasets are shared fixtures: each location is fetched and loaded at most
// once per Harness and never modified afterwards.
//
// # Scenario Format
//
// Scenario files hold one or more YAML documents:
//
//	name: image_classification
//	description: "fit one trial on the shopee dataset"
//	task: image_classification
//	dataset: https://autogluon.s3.amazonaws.com/datasets/shopee-iet.zip
//	config:
//	  num_trials: 1
//	metric: valid_acc
//	threshold: 0
//
// The metric defaults to valid_acc for image_classification and to
// valid_map for object_detection. Unknown fields are rejected.
package conformance
