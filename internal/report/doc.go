// Package report defines the domain model for the video report intake
// service: the Report entity, the fixed category set, submission
// validation, and the capability interfaces the pipeline is wired with.
package report
