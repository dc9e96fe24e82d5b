package version

// Build holds the build identifier, injected with
// -ldflags "-X vce/pkg/version.Build=...". Default "dev".
var Build = "dev"
