// Package hosts resolves build host names through the user's SSH config.
package hosts

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// DefaultPort is used when neither the SSH config nor the name carries one.
const DefaultPort = "22"

// Descriptor holds the connection parameters of one build host.
type Descriptor struct {
	Alias    string
	Hostname string
	User     string
	Port     string
	KeyFile  string
}

// Address renders the host the way fabric host strings read: [user@]host[:port].
func (d Descriptor) Address() string {
	addr := d.Hostname
	if d.User != "" {
		addr = d.User + "@" + addr
	}
	if d.Port != "" {
		addr = addr + ":" + d.Port
	}
	return addr
}

// DialAddress is the host:port pair used to open the TCP connection.
func (d Descriptor) DialAddress() string {
	port := d.Port
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(d.Hostname, port)
}

// Resolver looks host aliases up in an SSH client configuration file.
type Resolver struct {
	path string
	cfg  *ssh_config.Config
}

// NewResolver parses the SSH config at path. A missing file yields a
// resolver that returns every name unchanged; an unreadable or malformed
// file is an error.
func NewResolver(path string) (*Resolver, error) {
	r := &Resolver{path: path}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, kerrors.ConfigError("unreadable ssh config").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, kerrors.ConfigError("malformed ssh config").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	r.cfg = cfg
	return r, nil
}

// Resolve expands HostName, User, Port and IdentityFile for name. Names
// without a matching entry resolve to themselves with no key file.
func (r *Resolver) Resolve(name string) (Descriptor, error) {
	d := Descriptor{Alias: name, Hostname: name}
	if r.cfg == nil {
		return d, nil
	}

	lookup := func(key string) (string, error) {
		v, err := r.cfg.Get(name, key)
		if err != nil {
			return "", kerrors.ConfigError("ssh config lookup failed").
				WithCause(err).
				WithContext("host", name).
				WithContext("key", key).
				Build()
		}
		return strings.TrimSpace(v), nil
	}

	hostname, err := lookup("HostName")
	if err != nil {
		return Descriptor{}, err
	}
	if hostname != "" {
		d.Hostname = hostname
	}
	if d.User, err = lookup("User"); err != nil {
		return Descriptor{}, err
	}
	if d.Port, err = lookup("Port"); err != nil {
		return Descriptor{}, err
	}
	key, err := lookup("IdentityFile")
	if err != nil {
		return Descriptor{}, err
	}
	if key != "" {
		d.KeyFile = expandUser(key)
	}
	return d, nil
}

func expandUser(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
