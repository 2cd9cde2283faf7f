package common

var (
	// PackageName is used as the log service tag by the binaries.
	PackageName = "lit-quorum-client"

	// Version is set at build time via -ldflags.
	Version = "dev"

	// SDKVersion is reported to nodes in the X-Lit-SDK-Version header.
	SDKVersion = "8.0.0"
)
