// Package version holds build information injected with -ldflags and renders it for the
// CLI and for outbound User-Agent headers.
package version

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Build information, set at link time:
//
//	go build -ldflags "-X unifiedai/internal/version.Version=0.2.0 -X unifiedai/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Name is the product name used in version strings and User-Agent headers.
const Name = "unifiedai"

// Info is the parsed build information.
type Info struct {
	Version   string          `json:"version"`
	GitCommit string          `json:"gitCommit"`
	BuildDate string          `json:"buildDate"`
	GoVersion string          `json:"goVersion"`
	Platform  string          `json:"platform"`
	SemVer    *semver.Version `json:"-"`
}

// GetInfo parses Version and collects the runtime details.
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}
	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SemVer:    sv,
	}, nil
}

// UserAgent returns "unifiedai/<major.minor.patch>", dropping build metadata.
func UserAgent() string {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return Name + "/" + Version
	}
	return fmt.Sprintf("%s/%d.%d.%d", Name, sv.Major(), sv.Minor(), sv.Patch())
}

// GetFormattedVersion returns a one-line summary such as
// "unifiedai v0.1.0, commit abc1234, built 2025-01-01".
func GetFormattedVersion() string {
	if err := ValidateVersion(); err != nil {
		return fmt.Sprintf("%s v%s (invalid version)", Name, Version)
	}

	parts := []string{fmt.Sprintf("%s v%s", Name, Version)}
	if known(GitCommit) {
		parts = append(parts, "commit "+shortCommit(GitCommit))
	}
	if known(BuildDate) {
		parts = append(parts, "built "+BuildDate)
	}
	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns one field per line for `unifiedai version --detailed`.
func GetDetailedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("%s v%s (error: %v)", Name, Version, err)
	}

	buildDate := info.BuildDate
	if t, err := GetBuildTime(); err == nil {
		buildDate = t.UTC().Format(time.RFC3339)
	}
	lines := []string{
		fmt.Sprintf("%s v%s", Name, info.Version),
		"Channel: " + Channel(),
		"Git Commit: " + info.GitCommit,
		"Build Date: " + buildDate,
	}
	if meta := info.SemVer.Metadata(); meta != "" {
		lines = append(lines, "Build Metadata: "+meta)
	}
	if pre := info.SemVer.Prerelease(); pre != "" {
		lines = append(lines, "Prerelease: "+pre)
	}
	lines = append(lines,
		"Go Version: "+info.GoVersion,
		"Platform: "+info.Platform,
	)
	return strings.Join(lines, "\n")
}

// ValidateVersion reports whether Version is a valid semantic version.
func ValidateVersion() error {
	if _, err := semver.NewVersion(Version); err != nil {
		return fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}
	return nil
}

// IsPrerelease reports whether Version carries a prerelease tag.
func IsPrerelease() bool {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return false
	}
	return sv.Prerelease() != ""
}

// IsDevelopment reports whether the binary was built without link-time build info.
func IsDevelopment() bool {
	return !known(GitCommit) || !known(BuildDate)
}

// Channel classifies the build as "development", "prerelease" or "release".
func Channel() string {
	switch {
	case IsDevelopment():
		return "development"
	case IsPrerelease():
		return "prerelease"
	default:
		return "release"
	}
}

// Satisfies reports whether Version meets a constraint such as ">= 0.1, < 1.0".
func Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint '%s': %w", constraint, err)
	}
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return false, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}
	return c.Check(sv), nil
}

// GetBuildTime parses BuildDate.
func GetBuildTime() (time.Time, error) {
	if !known(BuildDate) {
		return time.Time{}, fmt.Errorf("build date not available")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, BuildDate); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse build date '%s'", BuildDate)
}

func known(s string) bool {
	return s != "" && s != "unknown"
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
