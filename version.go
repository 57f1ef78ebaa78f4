package modelguard

// Version is the library version. Release builds may override it via
// -ldflags "-X github.com/ChiragNSundar/modelguard.Version=...".
var Version = "v0.3.0"
