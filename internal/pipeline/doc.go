// Package pipeline evaluates browser sessions through an ordered list of steps.
//
// One Pipeline is built per session. Its steps resolve the tab URL, filter
// browser-internal pages, consult the recheck cache and the whitelist,
// render and extract features, classify, and dispatch phishing verdicts.
// Each step may end the evaluation early by returning ErrSkip; any other
// error marks the evaluation as failed. Steps run strictly in order because
// each depends on what the previous one stored in the Evaluation.
//
// BatchProcessor runs one sweep: every listed session gets its own pipeline,
// at most a configured number run concurrently (errgroup), and a failure or
// panic in one session never affects another.
package pipeline
