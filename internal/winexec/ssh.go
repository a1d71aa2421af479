package winexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHOptions configures a remote PowerShell runner.
type SSHOptions struct {
	Host         string
	Port         int
	User         string
	UserFallback string
	KeyPath      string
	Timeout      time.Duration
}

// SSHRunner executes PowerShell on a remote Windows host running
// Win32-OpenSSH. Each Run opens a fresh session; maintenance batches are
// sequential so connection reuse buys nothing.
type SSHRunner struct {
	opts   SSHOptions
	signer ssh.Signer
}

// NewSSHRunner parses the private key up front so misconfiguration fails at
// construction, not mid-batch.
func NewSSHRunner(opts SSHOptions) (*SSHRunner, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, errors.New("ssh runner: host is required")
	}
	if strings.TrimSpace(opts.KeyPath) == "" {
		return nil, errors.New("ssh runner: key path is required")
	}
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}

	keyPath, err := expandPath(opts.KeyPath)
	if err != nil {
		return nil, err
	}
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh runner: read key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("ssh runner: parse key: %w", err)
	}

	return &SSHRunner{opts: opts, signer: signer}, nil
}

// Run implements Runner. The script is handed to the remote default shell,
// which on Win32-OpenSSH is cmd, so it is wrapped in a powershell invocation.
func (r *SSHRunner) Run(ctx context.Context, script string) (string, error) {
	cmd := "powershell -NoProfile -NonInteractive -Command " + quoteForRemote(script)

	out, err := r.runWithUser(ctx, r.opts.User, cmd)
	if err == nil {
		return out, nil
	}
	if r.opts.UserFallback != "" && r.opts.UserFallback != r.opts.User {
		out2, err2 := r.runWithUser(ctx, r.opts.UserFallback, cmd)
		if err2 == nil {
			return out2, nil
		}
		return out2, fmt.Errorf("ssh failed as %s and %s: %w", r.opts.User, r.opts.UserFallback, err2)
	}
	return out, err
}

func (r *SSHRunner) runWithUser(ctx context.Context, user, cmd string) (string, error) {
	addr := fmt.Sprintf("%s:%d", r.opts.Host, r.opts.Port)
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(r.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         r.opts.Timeout,
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return "", err
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer sess.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, runErr := sess.CombinedOutput(cmd)
		done <- result{out: string(b), err: runErr}
	}()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return "", ctx.Err()
	case res := <-done:
		return res.out, res.err
	}
}

// quoteForRemote wraps a script for cmd.exe transit: double quotes survive if
// escaped by doubling, which PowerShell then collapses.
func quoteForRemote(script string) string {
	return `"` + strings.ReplaceAll(script, `"`, `\"`) + `"`
}

func expandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("empty path")
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~"+string(os.PathSeparator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Clean(filepath.FromSlash(p)), nil
}
