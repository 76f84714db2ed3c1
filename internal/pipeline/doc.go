// Package pipeline runs ordered lists of steps over a frame.
//
// Each step receives the output of the previous one. Before a step runs its
// input is checked against the declared input schema, then the operation,
// its arguments and the input are fingerprinted and the computation goes
// through the shared cache, so a step already computed with the same inputs
// is never dispatched twice. The output schema is checked inside the job.
//
// A failed step stops the pipeline: its error is wrapped in a *StepFailure
// carrying the step index, the steps after it are skipped and the outputs of
// the steps before it remain available on the Result.
package pipeline
