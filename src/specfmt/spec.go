// Package specfmt defines the declarative build specification the LLB
// Builder compiles. Authoring and parsing this from a project manifest is
// an out-of-core concern (spec.md §1 "Non-goals of the core"); this
// package only fixes the Go shape external collaborators hand the core.
package specfmt

// BuildSpec is the language-agnostic description of an image build: a
// build stage (packages/commands/caches) producing artifacts, and a
// runtime stage (packages/copies) that assembles the final image.
type BuildSpec struct {
	Build   BuildStage   `json:"build"`
	Runtime RuntimeStage `json:"runtime"`
}

// BuildStage describes how to produce build artifacts.
type BuildStage struct {
	// Packages are installed into the build base image before any command runs.
	Packages []string `json:"packages,omitempty"`
	// Commands run in order, each in the project context, sharing state with
	// the previous command's filesystem.
	Commands []string `json:"commands,omitempty"`
	// Env is merged into every command's environment (sorted at compile time).
	Env map[string]string `json:"env,omitempty"`
	// Cache lists absolute in-container paths that should be persistent
	// cache mounts across builds of this project (e.g. package manager
	// caches, incremental-compiler state).
	Cache []string `json:"cache,omitempty"`
}

// RuntimeStage describes how to assemble the final, minimal image.
type RuntimeStage struct {
	// Packages are installed into a clean root layered onto the runtime base.
	Packages []string `json:"packages,omitempty"`
	// Copy lists artifacts to transfer from the build result into the
	// runtime image.
	Copy []CopyEntry `json:"copy,omitempty"`
}

// CopyEntry names a single build-to-runtime artifact transfer.
type CopyEntry struct {
	From string `json:"from"`
	To   string `json:"to"`
}
