package types

// Version is the gantry release version.
// Bump on release; commit hash is injected separately via ldflags.
const Version = "v0.2.0"
