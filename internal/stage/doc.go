// Package stage implements the numeric transformation stages of the
// no-transport lower-trophic-level model and exposes each as a kernel
// unit. Stage functions are tile-pure over the spatial dimensions:
// recursions run along time and cohort axes only, so a run split into
// latitude/longitude tiles produces the same fields as a whole-domain
// run.
package stage
