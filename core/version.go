package core

// Version is the engine version reported by the CLI and written to x:xmptk.
const Version = "0.3.0"
