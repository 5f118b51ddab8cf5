package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/hosts"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
	"git.home.luguber.info/inful/kitbuilder/internal/retry"
)

// DialOptions configures SSH connections to build hosts.
type DialOptions struct {
	// User is used when the host descriptor carries none.
	User string
	// KnownHosts enables host key verification against the given file.
	KnownHosts string
	Timeout    time.Duration
	Retry      retry.Policy
	// Echo receives the remote output of every command as it arrives.
	Echo io.Writer
}

// SSHRunner runs commands over a single SSH connection.
type SSHRunner struct {
	host   hosts.Descriptor
	client *ssh.Client
	// agent is the ssh-agent connection used for authentication, if any.
	agent io.Closer
	echo  io.Writer
}

// Dial connects to a build host, retrying transient failures per opts.Retry.
func Dial(ctx context.Context, d hosts.Descriptor, opts DialOptions) (*SSHRunner, error) {
	cfg, agentConn, err := clientConfig(d, opts)
	if err != nil {
		return nil, err
	}

	var client *ssh.Client
	onRetry := func(attempt int, err error) {
		slog.Warn("SSH connection failed, retrying",
			logfields.Host(d.Alias),
			logfields.Address(d.Address()),
			slog.Int("attempt", attempt),
			logfields.Error(err))
	}
	err = opts.Retry.Do(ctx, kerrors.IsRetryable, onRetry, func() error {
		c, derr := dialContext(ctx, d.DialAddress(), cfg, opts.Timeout)
		if derr != nil {
			return derr
		}
		client = c
		return nil
	})
	if err != nil {
		if agentConn != nil {
			_ = agentConn.Close()
		}
		b := kerrors.SSHError("failed to connect to build host").
			WithCause(err).
			WithContext("host", d.Alias).
			WithContext("address", d.Address())
		if !kerrors.IsRetryable(err) {
			b = b.Fatal().UserAction()
		}
		return nil, b.Build()
	}
	slog.Debug("Connected", logfields.Host(d.Alias), logfields.Address(d.Address()))
	return &SSHRunner{host: d, client: client, agent: agentConn, echo: opts.Echo}, nil
}

// dialContext opens one connection. Errors are classified: network failures
// are retryable, host key and authentication failures are not.
func dialContext(ctx context.Context, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, kerrors.SSHError("connection failed").WithCause(err).Build()
	}
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, classifyHandshake(err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func classifyHandshake(err error) error {
	var keyErr *knownhosts.KeyError
	if stderrors.As(err, &keyErr) {
		return kerrors.SSHError("host key verification failed").WithCause(err).Fatal().UserAction().Build()
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) || stderrors.Is(err, io.EOF) {
		return kerrors.SSHError("handshake interrupted").WithCause(err).Build()
	}
	return kerrors.SSHError("handshake failed").WithCause(err).Fatal().UserAction().Build()
}

// clientConfig builds the client configuration for d. The returned closer is
// the ssh-agent connection, nil when no agent is in use.
func clientConfig(d hosts.Descriptor, opts DialOptions) (*ssh.ClientConfig, io.Closer, error) {
	user := d.User
	if user == "" {
		user = opts.User
	}

	var auth []ssh.AuthMethod
	if d.KeyFile != "" {
		signer, err := loadSigner(d.KeyFile)
		if err != nil {
			return nil, nil, kerrors.SSHError("failed to load identity file").
				WithCause(err).
				WithContext("host", d.Alias).
				WithContext("path", d.KeyFile).
				Fatal().
				UserAction().
				Build()
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	var agentConn net.Conn
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			agentConn = conn
			auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			slog.Debug("SSH agent unavailable", logfields.Path(sock), logfields.Error(err))
		}
	}
	fail := func(err error) (*ssh.ClientConfig, io.Closer, error) {
		if agentConn != nil {
			_ = agentConn.Close()
		}
		return nil, nil, err
	}
	if len(auth) == 0 {
		return fail(kerrors.SSHError("no SSH credentials available (set IdentityFile or run an agent)").
			WithContext("host", d.Alias).
			Fatal().
			UserAction().
			Build())
	}

	hostKey := ssh.InsecureIgnoreHostKey() // #nosec G106 -- verification is opt-in via ssh.known_hosts
	if opts.KnownHosts != "" {
		cb, err := knownhosts.New(opts.KnownHosts)
		if err != nil {
			return fail(kerrors.ConfigError("failed to read known_hosts").
				WithCause(err).
				WithContext("path", opts.KnownHosts).
				Build())
		}
		hostKey = cb
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         opts.Timeout,
	}
	return cfg, agentConn, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	// #nosec G304 -- identity file comes from the user's ssh config
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(pem)
}

// Host returns the alias of the connected host.
func (r *SSHRunner) Host() string { return r.host.Alias }

// Run executes cmd in a new session and returns its standard output.
func (r *SSHRunner) Run(ctx context.Context, cmd Command) (string, error) {
	line := cmd.String()
	var stdout, stderr bytes.Buffer
	err := r.session(ctx, line, r.tee(&stdout), r.tee(&stderr))
	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return stdout.String(), &CommandError{
				Host:       r.host.Alias,
				Command:    line,
				ExitStatus: exitErr.ExitStatus(),
				Stderr:     stderr.String(),
			}
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// Get streams remotePath into localPath through "cat". The file is written
// to a .part sibling and renamed once complete.
func (r *SSHRunner) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return 0, err
	}
	part := localPath + ".part"
	// #nosec G304 -- local path is rendered from validated templates
	f, err := os.Create(part)
	if err != nil {
		return 0, err
	}
	counter := &countingWriter{w: f}
	var stderr bytes.Buffer
	line := Shell("", "cat", "--", remotePath).String()
	runErr := r.session(ctx, line, counter, &stderr)
	closeErr := f.Close()
	if runErr != nil {
		_ = os.Remove(part)
		var exitErr *ssh.ExitError
		if stderrors.As(runErr, &exitErr) {
			return 0, &CommandError{Host: r.host.Alias, Command: line, ExitStatus: exitErr.ExitStatus(), Stderr: stderr.String()}
		}
		return 0, runErr
	}
	if closeErr != nil {
		_ = os.Remove(part)
		return 0, closeErr
	}
	if err := os.Rename(part, localPath); err != nil {
		_ = os.Remove(part)
		return 0, err
	}
	return counter.n, nil
}

// Close closes the connection and the agent socket.
func (r *SSHRunner) Close() error {
	err := r.client.Close()
	if r.agent != nil {
		err = stderrors.Join(err, r.agent.Close())
	}
	return err
}

func (r *SSHRunner) session(ctx context.Context, line string, stdout, stderr io.Writer) error {
	sess, err := r.client.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	sess.Stdout = stdout
	sess.Stderr = stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(line) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGTERM)
		_ = sess.Close()
		<-done
		return ctx.Err()
	}
}

func (r *SSHRunner) tee(buf *bytes.Buffer) io.Writer {
	if r.echo == nil {
		return buf
	}
	return io.MultiWriter(buf, r.echo)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
