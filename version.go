package gateway

// Version is reported by the CLI, the MCP server and the computed Server
// response header. Overridden at build time with -ldflags "-X".
var Version = "0.3.0"
