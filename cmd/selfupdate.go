package cmd

import (
	"context"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the owner/name of the GitHub repository releases are published to.
// Release builds set it through SetReleaseRepo; without it self-update is unavailable.
var githubRepoSlug string

// SetReleaseRepo sets the GitHub repository self-update looks for releases in.
func SetReleaseRepo(slug string) {
	githubRepoSlug = slug
}

// release is what self-update needs to know about the latest published version.
type release struct {
	Version   string
	AssetURL  string
	AssetName string
	// UpToDate reports whether the running version is at least Version.
	UpToDate bool
}

// detectLatest returns nil when the repository has no release for this platform.
var detectLatest = func(ctx context.Context, slug, current string) (*release, error) {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(slug))
	if err != nil || !found {
		return nil, err
	}
	return &release{
		Version:   latest.Version(),
		AssetURL:  latest.AssetURL,
		AssetName: latest.AssetName,
		UpToDate:  latest.LessOrEqual(current),
	}, nil
}

var updateTo = func(ctx context.Context, rel *release) error {
	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	return selfupdate.UpdateTo(ctx, rel.AssetURL, rel.AssetName, exe)
}

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update agentctl to the latest version",
		Long: `Checks for the latest release of agentctl on GitHub and
replaces the running binary when a newer version is available.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	currentVersion := rootCmd.Version
	if currentVersion == "" || currentVersion == "dev" {
		return fmt.Errorf("cannot self-update a development version")
	}
	if githubRepoSlug == "" {
		return fmt.Errorf("self-update is not available: this build has no release repository")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	latest, err := detectLatest(ctx, githubRepoSlug, currentVersion)
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if latest == nil {
		return fmt.Errorf("latest version for %s could not be found in %s", currentVersion, githubRepoSlug)
	}

	if latest.UpToDate {
		fmt.Fprintf(out, "Current version (%s) is the latest\n", currentVersion)
		return nil
	}

	if err := updateTo(ctx, latest); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version)
	return nil
}
