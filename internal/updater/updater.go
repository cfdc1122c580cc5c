package updater

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"plantcam/internal/logging"
	"plantcam/internal/services"
)

// Executor abstracts git invocation for testability.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args []string) (stdout, stderr []byte, err error)
}

// RepoStatus describes the checked-out code for the dashboard.
type RepoStatus struct {
	Branch         string
	LastCommitDate string
}

// Option configures the updater.
type Option func(*Updater)

// WithExecutor injects a custom executor (tests).
func WithExecutor(exec Executor) Option {
	return func(u *Updater) {
		if exec != nil {
			u.exec = exec
		}
	}
}

// Updater performs git-based self-updates of the running deployment.
type Updater struct {
	repoRoot   string
	gitBinary  string
	remoteName string
	mainBranch string
	logger     *slog.Logger
	exec       Executor
}

// New constructs an updater rooted at the deployment checkout.
func New(repoRoot, gitBinary, remoteName, mainBranch string, logger *slog.Logger, opts ...Option) *Updater {
	if logger == nil {
		logger = logging.NewNop()
	}
	if gitBinary == "" {
		gitBinary = "git"
	}
	if remoteName == "" {
		remoteName = "origin"
	}
	if mainBranch == "" {
		mainBranch = "main"
	}
	updater := &Updater{
		repoRoot:   repoRoot,
		gitBinary:  gitBinary,
		remoteName: remoteName,
		mainBranch: mainBranch,
		logger:     logging.WithComponent(logger, "updater"),
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(updater)
	}
	return updater
}

// parseCandidateBranches extracts deduplicated remote branch names, sorted,
// from `git branch -r --format=%(refname:short)` output. The remote HEAD
// alias and the main branch are excluded.
func parseCandidateBranches(remoteRaw, remoteName, mainBranch string) []string {
	prefix := remoteName + "/"
	seen := make(map[string]struct{})
	var names []string
	for _, rawRef := range strings.Split(remoteRaw, "\n") {
		clean := strings.TrimSpace(rawRef)
		if clean == "" || strings.HasSuffix(clean, "/HEAD") || !strings.HasPrefix(clean, prefix) {
			continue
		}
		branchName := strings.TrimPrefix(clean, prefix)
		if branchName == "" {
			continue
		}
		if branchName == mainBranch || branchName == remoteName {
			continue
		}
		if _, dup := seen[branchName]; dup {
			continue
		}
		seen[branchName] = struct{}{}
		names = append(names, branchName)
	}
	sort.Strings(names)
	return names
}

// selectUpdateBranch picks the branch to update to: stay on a feature branch
// while it still exists upstream, otherwise the first candidate, otherwise
// the main branch.
func selectUpdateBranch(currentBranch, mainBranch string, candidates []string, hasRemote bool) string {
	onFeature := currentBranch != mainBranch && currentBranch != "HEAD"
	if onFeature && hasRemote {
		return currentBranch
	}
	if onFeature && !hasRemote {
		return mainBranch
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return mainBranch
}

// Status reports the current branch and last commit date.
func (u *Updater) Status(ctx context.Context) (RepoStatus, error) {
	branch, err := u.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return RepoStatus{}, err
	}
	commitISO, err := u.git(ctx, "log", "-1", "--format=%cI")
	if err != nil {
		return RepoStatus{}, err
	}
	commitDate := commitISO
	if parsed, perr := time.Parse(time.RFC3339, commitISO); perr == nil {
		commitDate = parsed.Format("2006-01-02 15:04:05 -0700")
	}
	return RepoStatus{Branch: branch, LastCommitDate: commitDate}, nil
}

// Update fetches, selects a branch and hard-resets the checkout to it. The
// working tree is cleaned; any local changes on the device are discarded.
func (u *Updater) Update(ctx context.Context) (RepoStatus, error) {
	if _, err := u.git(ctx, "fetch", "--all", "--prune"); err != nil {
		return RepoStatus{}, err
	}
	current, err := u.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return RepoStatus{}, err
	}
	candidates, err := u.candidateBranches(ctx)
	if err != nil {
		return RepoStatus{}, err
	}
	hasRemote, err := u.remoteBranchExists(ctx, current)
	if err != nil {
		return RepoStatus{}, err
	}
	target := selectUpdateBranch(current, u.mainBranch, candidates, hasRemote)

	targetOnRemote, err := u.remoteBranchExists(ctx, target)
	if err != nil {
		return RepoStatus{}, err
	}
	if targetOnRemote {
		remoteRef := u.remoteName + "/" + target
		if _, err := u.git(ctx, "checkout", "-B", target, remoteRef); err != nil {
			return RepoStatus{}, err
		}
		if _, err := u.git(ctx, "reset", "--hard", remoteRef); err != nil {
			return RepoStatus{}, err
		}
	} else {
		if _, err := u.git(ctx, "checkout", "-f", target); err != nil {
			return RepoStatus{}, err
		}
		if _, err := u.git(ctx, "reset", "--hard", "HEAD"); err != nil {
			return RepoStatus{}, err
		}
	}
	if _, err := u.git(ctx, "clean", "-fd"); err != nil {
		return RepoStatus{}, err
	}

	u.logger.Info("update completed", logging.String("branch", target))
	return u.Status(ctx)
}

// Restart replaces the current process image with a fresh invocation of the
// same binary and arguments. Never returns on success.
func (u *Updater) Restart() error {
	executable, err := os.Executable()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "updater", "restart", "resolve executable", err)
	}
	u.logger.Info("restarting process", logging.String("executable", executable))
	if err := unix.Exec(executable, os.Args, os.Environ()); err != nil {
		return services.Wrap(services.ErrExternalTool, "updater", "restart", "exec replacement process", err)
	}
	return nil
}

func (u *Updater) candidateBranches(ctx context.Context) ([]string, error) {
	remoteRaw, err := u.git(ctx, "branch", "-r", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return parseCandidateBranches(remoteRaw, u.remoteName, u.mainBranch), nil
}

func (u *Updater) remoteBranchExists(ctx context.Context, branchName string) (bool, error) {
	refs, err := u.git(ctx, "ls-remote", "--heads", u.remoteName, branchName)
	if err != nil {
		return false, err
	}
	return refs != "", nil
}

func (u *Updater) git(ctx context.Context, args ...string) (string, error) {
	stdout, stderr, err := u.exec.Run(ctx, u.repoRoot, u.gitBinary, args)
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		return "", services.Wrap(services.ErrExternalTool, "updater",
			fmt.Sprintf("git %s", args[0]), detail, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
