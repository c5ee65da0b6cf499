// Package monitor runs the session poller.
//
// The Poller repeatedly lists the open tabs of a browser and hands them to
// a pipeline.BatchProcessor, one sweep at a time. A failed listing is
// retried after a fixed backoff; a successful sweep is followed by the poll
// interval. The loop ends when its context is cancelled, or immediately
// when an evaluation reports a contract violation between the feature
// extractor and the classifier.
package monitor
