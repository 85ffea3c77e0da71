package build

var (
	// Name is the identity reported by the pipeline stage in its errors.
	Name = "tsfmt"
	// Version is overridden at link time.
	Version = "v0.0.1+dev"
)
