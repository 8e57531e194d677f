package util

import (
	"runtime/debug"
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	GitHash   string `json:"gitHash"`
	GoVersion string `json:"goVersion"`
}

// GetBuildInfo reads version information embedded by the go toolchain
func GetBuildInfo() BuildInfo {
	result := BuildInfo{Version: "unknown", GitHash: "unknown", GoVersion: "unknown"}
	info, available := debug.ReadBuildInfo()
	if !available {
		return result
	}

	result.GoVersion = info.GoVersion
	if info.Main.Version != "" {
		result.Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			result.GitHash = setting.Value
			break
		}
	}
	return result
}

// ShortHash returns the first 7 characters of the git hash
func (b BuildInfo) ShortHash() string {
	if len(b.GitHash) <= 7 {
		return b.GitHash
	}
	return b.GitHash[:7]
}
