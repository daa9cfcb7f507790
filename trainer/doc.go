// Package trainer orchestrates hyperparameter trials. A Search enumerates
// trial points from a Space, runs an objective for each of them and keeps
// the best one.
package trainer
