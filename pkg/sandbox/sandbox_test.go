package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePath_WriteInsideProjectRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(Config{ProjectRoot: dir})

	resolved, err := cfg.ValidatePath(filepath.Join(dir, "file.go"), OpWrite)
	require.NoError(t, err)
	require.NotEmpty(t, resolved)
}

func TestValidatePath_WriteDenialOutsideSandbox(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(Config{ProjectRoot: dir, AllowedPaths: nil})

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	_, err = cfg.ValidatePath(filepath.Join(home, ".ssh", "authorized_keys"), OpWrite)
	require.Error(t, err)
	var pathErr *PathValidationError
	require.ErrorAs(t, err, &pathErr)
	require.Equal(t, OpWrite, pathErr.Operation)
}

func TestValidatePath_WriteAllowsExplicitlyAllowedPath(t *testing.T) {
	dir := t.TempDir()
	extra := t.TempDir()
	cfg := NewConfig(Config{ProjectRoot: dir, AllowedPaths: []string{extra}})

	_, err := cfg.ValidatePath(filepath.Join(extra, "out.txt"), OpWrite)
	require.NoError(t, err)
}

func TestValidatePath_ReadPermittedOutsideProtectedClusters(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(Config{ProjectRoot: dir})

	// /usr is neither explicitly allowed nor in the protected-read list, so
	// reads are permitted (needed for system binaries, headers, etc).
	_, err := cfg.ValidatePath("/usr/bin/env", OpRead)
	require.NoError(t, err)
}

func TestValidatePath_ReadDeniedInProtectedCluster(t *testing.T) {
	cfg := NewConfig(Config{ProjectRoot: t.TempDir()})
	readBlock, _ := sensitivePaths()
	if len(readBlock) == 0 {
		t.Skip("no protected read clusters defined for this platform")
	}
	_, err := cfg.ValidatePath(filepath.Join(readBlock[0], "someuser", "secret"), OpRead)
	require.Error(t, err)
}

func TestGenerateSeatbeltProfile_DeniesThenReallows(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(Config{ProjectRoot: dir})
	profile := cfg.GenerateSeatbeltProfile()

	require.Contains(t, profile, "(deny default)")
	require.Contains(t, profile, "(deny network*)")
	require.Contains(t, profile, dir)

	// Sensitive write clusters carry explicit deny clauses ahead of the
	// allow section, so the allows for project/temp dirs still win.
	require.NotEmpty(t, cfg.blockedWrite)
	for _, p := range cfg.blockedWrite {
		require.Contains(t, profile, "(deny file-write* (subpath \""+escapeSBPL(p)+"\"))")
	}
}

func TestGenerateSeatbeltProfile_AllowsNetworkWhenConfigured(t *testing.T) {
	cfg := NewConfig(Config{ProjectRoot: t.TempDir(), AllowNetwork: true})
	profile := cfg.GenerateSeatbeltProfile()
	require.Contains(t, profile, "(allow network*)")
}

func TestGetSandboxCommand_DryRun(t *testing.T) {
	cfg := NewConfig(Config{ProjectRoot: t.TempDir(), DryRun: true})
	wrapped, _, _, err := cfg.GetSandboxCommand("rm -rf /", "linux", nil)
	require.NoError(t, err)
	require.Contains(t, wrapped, "[DRY RUN]")
}

func TestGetSandboxCommand_SkipSandboxIsNoOp(t *testing.T) {
	cfg := NewConfig(Config{ProjectRoot: t.TempDir(), SkipSandbox: true})
	wrapped, _, _, err := cfg.GetSandboxCommand("echo hi", "plan9", nil)
	require.NoError(t, err)
	require.Equal(t, "echo hi", wrapped)
}

func TestGetSandboxCommand_UnsupportedPlatformFailsWithoutSkip(t *testing.T) {
	cfg := NewConfig(Config{ProjectRoot: t.TempDir()})
	_, _, _, err := cfg.GetSandboxCommand("echo hi", "plan9", nil)
	require.Error(t, err)
}

func TestBwrapCommand_BindsProjectAndAllowed(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(Config{ProjectRoot: dir})
	if err := RequireBwrap(); err != nil {
		t.Skip("bwrap not installed in this environment")
	}
	cmd, err := cfg.BwrapCommand("echo hi")
	require.NoError(t, err)
	require.Contains(t, cmd, "bwrap")
	require.Contains(t, cmd, dir)
}
