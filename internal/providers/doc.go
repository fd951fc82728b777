// Package providers defines the generation service contracts the asset
// producers consume: script planning, image rendering, speech synthesis
// and music composition. Providers never retry; failures surface as
// ProviderError and the orchestrator decides what happens next. The
// offline implementations produce deterministic placeholder artifacts.
package providers
